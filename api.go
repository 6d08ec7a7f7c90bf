package cacheguard

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/cacheguard/codec"
	"github.com/unkn0wn-root/cacheguard/near"
	st "github.com/unkn0wn-root/cacheguard/store"
)

// Loader produces the value for a missing key. It may be expensive
// (typically a database query); cacheguard guarantees at most one
// invocation per key per miss episode.
type Loader[V any] func(ctx context.Context) (V, error)

// Decision is the outcome of one RateLimit call. Denied is a normal
// result, not an error.
type Decision struct {
	Allowed    bool
	Count      int64         // post-increment counter value
	Remaining  int64         // events left in the window; 0 when denied
	RetryAfter time.Duration // time until the window resets; 0 when allowed
}

// Guard is the high-level, store-agnostic façade. V is the caller's value
// type. Serialization is handled by a pluggable Codec[V].
type Guard[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Cache entries
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// GetOrLoad returns the cached value or populates it via loader,
	// coalescing concurrent callers (in-process and across processes).
	// ttl == 0 uses Options.DefaultTTL.
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader Loader[V]) (V, error)

	// RateLimit records one event for identity within a fixed window
	// anchored at the identity's first event. Bursts of up to 2x limit
	// are possible across a window boundary; accepted approximation.
	RateLimit(ctx context.Context, identity string, limit int64, window time.Duration) (Decision, error)

	// Transact runs body inside an optimistic transaction watching keys.
	// Mutations queued on the Tx commit atomically iff no watched key
	// changed; conflicts are retried with jittered backoff up to
	// Options.TxAttempts, then surface as ErrTxConflict.
	Transact(ctx context.Context, keys []string, body func(tx *Tx[V]) error) error
}

// Options tune the guard. Only Namespace, Store and Codec are required;
// others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions, e.g. "jobs", "session"
	Store     st.Store
	Codec     c.Codec[V]

	Near   near.Near // optional process-local hot tier; nil disables
	Logger Logger    // if nil, NopLogger is used
	Hooks  Hooks     // if nil, NopHooks is used

	DefaultTTL   time.Duration // entries; 0 => 10m
	LockTTL      time.Duration // population locks; 0 => 10s
	PollInterval time.Duration // foreign-lock wait poll; 0 => 50ms
	NearTTL      time.Duration // hot tier entries; 0 => 30s
	TxAttempts   int           // optimistic commit attempts; 0 => 5
	TxBackoff    time.Duration // initial retry backoff; 0 => 10ms
	Disabled     bool          // bypass mode: reads miss, loads go straight to the loader
}

func New[V any](opts Options[V]) (Guard[V], error) {
	return newGuard[V](opts)
}
