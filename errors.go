package cacheguard

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is checks. Concrete errors returned by the guard
// wrap one of these plus the underlying cause.
var (
	// ErrStoreUnavailable: the key-value store could not be reached or
	// returned a transport/server error. Never retried automatically;
	// a consumer service typically degrades to its authoritative source.
	ErrStoreUnavailable = errors.New("cacheguard: store unavailable")

	// ErrLoaderFailed: the caller-supplied loader returned an error.
	// No cache entry is written so subsequent callers retry the load.
	ErrLoaderFailed = errors.New("cacheguard: loader failed")

	// ErrLoadTimeout: a waiter on a foreign population lock exceeded
	// LockTTL plus one poll interval without the entry appearing.
	ErrLoadTimeout = errors.New("cacheguard: load wait timed out")

	// ErrTxConflict: optimistic commit lost the race on every attempt.
	ErrTxConflict = errors.New("cacheguard: transaction conflict")
)

// StoreError wraps a store round-trip failure with its operation and key.
type StoreError struct {
	Op  string // "get", "set", "lock", "unlock", "incr", "del"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// LoadError wraps a loader failure for a key.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoaderFailed, e.Err} }

// WaitError reports how long a waiter polled before giving up.
type WaitError struct {
	Key    string
	Waited time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("waited %s for %q without the entry appearing", e.Waited, e.Key)
}

func (e *WaitError) Unwrap() error { return ErrLoadTimeout }

// ConflictError reports an exhausted optimistic transaction.
type ConflictError struct {
	Keys     []string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction on %v aborted after %d attempts", e.Keys, e.Attempts)
}

func (e *ConflictError) Unwrap() error { return ErrTxConflict }
