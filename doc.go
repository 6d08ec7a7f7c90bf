// Package cacheguard implements a store-agnostic caching façade with TTLs,
// stampede-safe single-flight population, atomic fixed-window rate limiting,
// and optimistic (watch-based) transactions with bounded retry.
//
// Components:
//   - store.Store: the external key-value system (Redis in production,
//     store/local for tests and single-process setups).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - near.Near: optional process-local hot tier consulted before the store.
//
// Keys (owned by cacheguard; foreign writes under these prefixes may be
// treated as corruption by strict wire validation and deleted):
//
//	entry:<ns>:<key>      - cached values
//	lock:<ns>:<key>       - single-flight population locks
//	rate:<ns>:<identity>  - rate-limit window counters
//
// Miss pattern:
//
//	v, err := guard.GetOrLoad(ctx, k, 0, func(ctx context.Context) (User, error) {
//	    return readUserFromDB(ctx, k) // runs once per key per miss episode
//	})
package cacheguard
