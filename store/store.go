// Package store defines the key-value abstraction used by cacheguard.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended
// or appended metadata, no re-encoding, no mutation). All methods must be
// safe for concurrent use; the store is shared across processes and the
// guard never assumes exclusive access outside its own key prefixes.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned by Update when a watched key changed between the
// watch being established and the commit attempt. The attempt left no
// partial state; the caller may retry.
var ErrConflict = errors.New("store: optimistic transaction conflict")

// Mutation is one write queued for atomic commit by Update.
type Mutation struct {
	Key    string
	Value  []byte
	TTL    time.Duration // <= 0 means no expiry
	Delete bool          // when set, Value and TTL are ignored
}

// Snapshot reads key values inside an Update attempt, after the watch was
// established. Reads through a Snapshot do not extend the watched set.
type Snapshot interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Store is a minimal byte store with TTLs plus the atomic primitives the
// guard builds on: set-if-absent locks, server-side counter windows, and
// optimistic watched commits.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key is absent. Returns true when the
	// write happened.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// DelIfEqual removes key only when its current value equals value.
	// Used for owner-checked lock release: a caller must never delete a
	// lock it does not hold.
	DelIfEqual(ctx context.Context, key string, value []byte) (bool, error)

	// IncrWindow atomically increments the counter at key and, when the
	// increment created the key, sets its expiry to window in the same
	// server-side step. Returns the post-increment value and the time
	// left until the key expires.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)

	// Expire sets the TTL of an existing key. Returns false when the key
	// does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Update performs one optimistic attempt: watch keys, run fn with a
	// Snapshot of the store, then commit the returned mutations
	// atomically iff no watched key changed. A detected change returns
	// ErrConflict with nothing applied; an fn error aborts with nothing
	// applied and is returned verbatim.
	Update(ctx context.Context, watched []string, fn func(ctx context.Context, snap Snapshot) ([]Mutation, error)) error

	// Close releases resources.
	Close(ctx context.Context) error
}
