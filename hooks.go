package cacheguard

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The guard calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the guard on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A population lock was held by another process; this caller polls.
	LoadContended(key string)

	// The loader returned an error; the lock was released, nothing cached.
	LoaderFailed(key string, err error)

	// A waiter gave up after the lock TTL bound.
	LoadTimedOut(key string, waited time.Duration)

	// An event was denied; count is the post-increment value.
	RateLimited(identity string, count, limit int64)

	// One optimistic commit attempt lost the race (will be retried if
	// attempts remain).
	TxConflict(attempt int)

	// The transaction gave up after exhausting attempts.
	TxAborted(keys []string, attempts int)

	// A store round-trip failed.
	StoreError(op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) LoadContended(string)                {}
func (NopHooks) LoaderFailed(string, error)          {}
func (NopHooks) LoadTimedOut(string, time.Duration)  {}
func (NopHooks) RateLimited(string, int64, int64)    {}
func (NopHooks) TxConflict(int)                      {}
func (NopHooks) TxAborted([]string, int)             {}
func (NopHooks) StoreError(string, error)            {}
