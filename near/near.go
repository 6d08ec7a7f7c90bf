// Package near defines the optional process-local hot tier consulted
// before the remote store on reads. A near hit skips one store round-trip
// for keys this process recently loaded or wrote.
//
// The tier is strictly best-effort: misses, evictions and rejected writes
// are all fine, and it is never consulted for rate limiting, locks or
// transactions. Entries carry a short TTL (Options.NearTTL); the guard
// drops them on Delete and on transaction commits touching their keys, so
// staleness is bounded by NearTTL even across replicas.
package near

import "time"

// Near is a minimal byte cache. Implementations must be safe for
// concurrent use and byte-for-byte transparent.
type Near interface {
	// Get returns (value, true) on hit; (nil, false) on miss.
	Get(key string) ([]byte, bool)

	// Set stores value with the given TTL. Best-effort; implementations
	// may drop the write under pressure.
	Set(key string, value []byte, ttl time.Duration)

	// Del removes a key (best-effort).
	Del(key string)

	// Close releases resources.
	Close() error
}
