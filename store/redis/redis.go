// Package redis implements store.Store on top of go-redis. The atomic
// pieces the guard depends on run server-side: counter windows as a Lua
// script (INCR and the expiry set in one step, so a crash between the two
// can never leave an unbounded counter), owner-checked lock release as a
// Lua script, and watched commits as WATCH + MULTI/EXEC.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	st "github.com/unkn0wn-root/cacheguard/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// incrWindow: INCR, set window expiry only on creation, report time left.
var incrWindow = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {n, ttl}
`)

// delIfEqual: delete only when the caller still owns the value.
var delIfEqual = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ st.Store = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // non-positive TTLs mean "no expiry" per store contract
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0
	}
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *Redis) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *Redis) DelIfEqual(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := delIfEqual.Run(ctx, s.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrWindow.Run(ctx, s.rdb, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("incr window: unexpected reply shape %v", res)
	}
	n, ok1 := res[0].(int64)
	pttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("incr window: unexpected reply types %T/%T", res[0], res[1])
	}
	var left time.Duration
	if pttl > 0 {
		left = time.Duration(pttl) * time.Millisecond
	}
	return n, left, nil
}

func (s *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.Expire(ctx, key, ttl).Result()
}

type txSnapshot struct{ tx *goredis.Tx }

func (sn txSnapshot) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := sn.tx.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Redis) Update(ctx context.Context, watched []string, fn func(context.Context, st.Snapshot) ([]st.Mutation, error)) error {
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		muts, err := fn(ctx, txSnapshot{tx: tx})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			for _, m := range muts {
				if m.Delete {
					p.Del(ctx, m.Key)
					continue
				}
				ttl := m.TTL
				if ttl <= 0 {
					ttl = 0
				}
				p.Set(ctx, m.Key, m.Value, ttl)
			}
			return nil
		})
		return err
	}, watched...)
	if errors.Is(err, goredis.TxFailedErr) {
		return st.ErrConflict
	}
	return err
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
