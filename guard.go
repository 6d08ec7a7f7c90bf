package cacheguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/cacheguard/codec"
	"github.com/unkn0wn-root/cacheguard/internal/util"
	"github.com/unkn0wn-root/cacheguard/internal/wire"
	"github.com/unkn0wn-root/cacheguard/near"
	st "github.com/unkn0wn-root/cacheguard/store"
)

const (
	defaultEntryTTL = 10 * time.Minute
	defaultLockTTL  = 10 * time.Second
	defaultPoll     = 50 * time.Millisecond
	defaultNearTTL  = 30 * time.Second
	defaultTxTries  = 5
	defaultTxWait   = 10 * time.Millisecond
)

type guard[V any] struct {
	ns    string
	store st.Store
	codec c.Codec[V]
	near  near.Near
	log   Logger
	hooks Hooks

	enabled bool

	defaultTTL   time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
	nearTTL      time.Duration
	txAttempts   int
	txBackoff    time.Duration

	// in-flight load registry; at most one load per key per process
	flight singleflight.Group
}

func newGuard[V any](opts Options[V]) (*guard[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("cacheguard: store is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("cacheguard: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("cacheguard: namespace is required")
	}

	g := &guard[V]{
		ns:      opts.Namespace,
		store:   opts.Store,
		codec:   opts.Codec,
		near:    opts.Near,
		enabled: !opts.Disabled,
	}

	// defaults
	g.log = coalesce[Logger](opts.Logger, NopLogger{})
	g.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	g.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultEntryTTL)
	g.lockTTL = coalesce[time.Duration](opts.LockTTL, defaultLockTTL)
	g.pollInterval = coalesce[time.Duration](opts.PollInterval, defaultPoll)
	g.nearTTL = coalesce[time.Duration](opts.NearTTL, defaultNearTTL)
	g.txAttempts = coalesce[int](opts.TxAttempts, defaultTxTries)
	g.txBackoff = coalesce[time.Duration](opts.TxBackoff, defaultTxWait)

	return g, nil
}

func (g *guard[V]) Enabled() bool { return g.enabled }

func (g *guard[V]) Close(ctx context.Context) error {
	// Close near tier first (best effort)
	if g.near != nil {
		_ = g.near.Close()
	}
	if g.store != nil {
		return g.store.Close(ctx)
	}
	return nil
}

func (g *guard[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !g.enabled {
		return zero, false, nil
	}
	return g.lookup(ctx, key)
}

func (g *guard[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !g.enabled {
		return nil
	}
	if ttl == 0 {
		ttl = g.defaultTTL
	}
	payload, err := g.codec.Encode(value)
	if err != nil {
		return err
	}
	raw := wire.EncodeValue(payload)
	k := util.EntryKey(g.ns, key)
	if err := g.store.Set(ctx, k, raw, ttl); err != nil {
		g.hooks.StoreError("set", err)
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	if g.near != nil {
		g.near.Set(k, raw, g.nearTTL)
	}
	return nil
}

func (g *guard[V]) Delete(ctx context.Context, key string) error {
	if !g.enabled {
		return nil
	}
	k := util.EntryKey(g.ns, key)
	if g.near != nil {
		g.near.Del(k)
	}
	if err := g.store.Del(ctx, k); err != nil {
		g.hooks.StoreError("del", err)
		return &StoreError{Op: "del", Key: key, Err: err}
	}
	return nil
}

func (g *guard[V]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader Loader[V]) (V, error) {
	var zero V
	if !g.enabled {
		return loader(ctx) // bypass mode: straight to the source
	}
	if ttl == 0 {
		ttl = g.defaultTTL
	}

	if v, ok, err := g.lookup(ctx, key); err != nil {
		return zero, err
	} else if ok {
		return v, nil
	}

	// Process-local callers for the same key coalesce here; the flight
	// runs detached from the first caller's context so one cancellation
	// cannot fail every waiter. The lock TTL bounds it instead.
	ch := g.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.lockTTL+2*g.pollInterval)
		defer cancel()
		return g.loadMiss(fctx, key, ttl, loader)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// loadMiss is the single flight body: acquire the population lock and run
// the loader, or wait out a foreign owner.
func (g *guard[V]) loadMiss(ctx context.Context, key string, ttl time.Duration, loader Loader[V]) (V, error) {
	var zero V

	// the entry may have appeared while this flight was queued
	if v, ok, err := g.lookup(ctx, key); err != nil {
		return zero, err
	} else if ok {
		return v, nil
	}

	lockKey := util.LockKey(g.ns, key)
	token := []byte(uuid.NewString())
	acquired, err := g.store.SetNX(ctx, lockKey, token, g.lockTTL)
	if err != nil {
		g.hooks.StoreError("lock", err)
		return zero, &StoreError{Op: "lock", Key: key, Err: err}
	}
	if !acquired {
		// another process owns the miss episode; wait for its write
		g.hooks.LoadContended(key)
		g.log.Debug("population lock contended", Fields{"key": key})
		return g.awaitEntry(ctx, key)
	}

	v, lerr := loader(ctx)
	if lerr != nil {
		// release immediately so the next caller retries; cache nothing
		g.unlock(ctx, lockKey, token)
		g.hooks.LoaderFailed(key, lerr)
		return zero, &LoadError{Key: key, Err: lerr}
	}

	payload, err := g.codec.Encode(v)
	if err != nil {
		g.unlock(ctx, lockKey, token)
		return zero, err
	}
	raw := wire.EncodeValue(payload)
	k := util.EntryKey(g.ns, key)
	if err := g.store.Set(ctx, k, raw, ttl); err != nil {
		g.unlock(ctx, lockKey, token)
		g.hooks.StoreError("set", err)
		return zero, &StoreError{Op: "set", Key: key, Err: err}
	}
	if g.near != nil {
		g.near.Set(k, raw, g.nearTTL)
	}
	g.unlock(ctx, lockKey, token)
	return v, nil
}

// unlock releases the population lock iff this caller still owns it.
// A lock that already expired and was re-acquired elsewhere is left alone.
func (g *guard[V]) unlock(ctx context.Context, lockKey string, token []byte) {
	if _, err := g.store.DelIfEqual(ctx, lockKey, token); err != nil {
		// the lock TTL will clear it
		g.hooks.StoreError("unlock", err)
		g.log.Warn("lock release failed; TTL will expire it", Fields{"lock": lockKey, "err": err})
	}
}

// awaitEntry polls for the entry written by a foreign lock owner, bounded
// by the lock TTL plus one poll interval.
func (g *guard[V]) awaitEntry(ctx context.Context, key string) (V, error) {
	var zero V
	bound := g.lockTTL + g.pollInterval
	deadline := time.Now().Add(bound)

	t := time.NewTicker(g.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			g.hooks.LoadTimedOut(key, bound)
			return zero, &WaitError{Key: key, Waited: bound}
		case <-t.C:
		}
		v, ok, err := g.lookup(ctx, key)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
		if time.Now().After(deadline) {
			g.hooks.LoadTimedOut(key, bound)
			return zero, &WaitError{Key: key, Waited: bound}
		}
	}
}

func (g *guard[V]) RateLimit(ctx context.Context, identity string, limit int64, window time.Duration) (Decision, error) {
	if !g.enabled {
		return Decision{Allowed: true, Remaining: limit}, nil
	}
	k := util.RateKey(g.ns, identity)
	n, left, err := g.store.IncrWindow(ctx, k, window)
	if err != nil {
		g.hooks.StoreError("incr", err)
		return Decision{}, &StoreError{Op: "incr", Key: identity, Err: err}
	}

	d := Decision{Count: n}
	if n <= limit {
		d.Allowed = true
		d.Remaining = limit - n
		return d, nil
	}
	d.RetryAfter = left
	g.hooks.RateLimited(identity, n, limit)
	g.log.Debug("rate limit exceeded", Fields{"identity": identity, "count": n, "limit": limit})
	return d, nil
}

func (g *guard[V]) Transact(ctx context.Context, keys []string, body func(tx *Tx[V]) error) error {
	watched := make([]string, len(keys))
	for i, k := range keys {
		watched[i] = util.EntryKey(g.ns, k)
	}

	attempt := 0
	var mutated []string
	op := func() error {
		attempt++
		err := g.store.Update(ctx, watched, func(ctx context.Context, snap st.Snapshot) ([]st.Mutation, error) {
			tx := &Tx[V]{g: g, ctx: ctx, snap: snap}
			if err := body(tx); err != nil {
				return nil, err
			}
			mutated = tx.mutatedKeys()
			return tx.muts, nil
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, st.ErrConflict):
			g.hooks.TxConflict(attempt)
			return err // retryable
		default:
			return backoff.Permanent(err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.txBackoff
	bo.RandomizationFactor = 0.5
	bo.MaxInterval = time.Second

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(g.txAttempts-1)), ctx))
	if err == nil {
		if g.near != nil {
			for _, k := range mutated {
				g.near.Del(k)
			}
		}
		g.log.Debug("transaction committed", Fields{"keys": keys, "attempts": attempt})
		return nil
	}
	if errors.Is(err, st.ErrConflict) {
		g.hooks.TxAborted(keys, attempt)
		return &ConflictError{Keys: keys, Attempts: attempt}
	}
	return err
}

// lookup reads an entry through the near tier and the store, self-healing
// bytes that fail strict wire validation or value decoding.
func (g *guard[V]) lookup(ctx context.Context, key string) (V, bool, error) {
	var zero V
	k := util.EntryKey(g.ns, key)

	if g.near != nil {
		if raw, ok := g.near.Get(k); ok {
			if v, ok := g.decodeNear(k, raw); ok {
				return v, true, nil
			}
		}
	}

	raw, ok, err := g.store.Get(ctx, k)
	if err != nil {
		g.hooks.StoreError("get", err)
		return zero, false, &StoreError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return zero, false, nil
	}

	payload, err := wire.DecodeValue(raw)
	if err != nil {
		_ = g.store.Del(ctx, k) // self-heal corrupt
		g.hooks.SelfHeal(k, "corrupt")
		return zero, false, nil
	}
	v, err := g.codec.Decode(payload)
	if err != nil {
		_ = g.store.Del(ctx, k) // self-heal
		g.hooks.SelfHeal(k, "value_decode")
		return zero, false, nil
	}
	if g.near != nil {
		g.near.Set(k, raw, g.nearTTL)
	}
	return v, true, nil
}

func (g *guard[V]) decodeNear(storageKey string, raw []byte) (V, bool) {
	var zero V
	payload, err := wire.DecodeValue(raw)
	if err != nil {
		g.near.Del(storageKey)
		return zero, false
	}
	v, err := g.codec.Decode(payload)
	if err != nil {
		g.near.Del(storageKey)
		return zero, false
	}
	return v, true
}
