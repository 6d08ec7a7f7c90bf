// Package local is an in-process store.Store for tests, development and
// single-process deployments. TTLs are enforced lazily on access; watch
// semantics are implemented with per-key version counters, so Update
// behaves like the remote store's watched commit without a server.
package local

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"

	st "github.com/unkn0wn-root/cacheguard/store"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Local struct {
	mu   sync.Mutex
	now  func() time.Time
	m    map[string]entry
	vers map[string]uint64
}

var _ st.Store = (*Local)(nil)

func New() *Local { return NewWithClock(time.Now) }

// NewWithClock injects the time source. Tests use it to elapse TTLs
// without sleeping.
func NewWithClock(now func() time.Time) *Local {
	return &Local{
		now:  now,
		m:    make(map[string]entry),
		vers: make(map[string]uint64),
	}
}

// liveLocked returns the value at key, purging it first when expired.
// Expiry counts as a modification for watch purposes. Callers hold mu.
func (s *Local) liveLocked(key string) ([]byte, bool) {
	e, ok := s.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && !s.now().Before(e.exp) {
		delete(s.m, key)
		s.vers[key]++
		return nil, false
	}
	return e.v, true
}

func (s *Local) setLocked(key string, value []byte, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.m[key] = entry{v: value, exp: exp}
	s.vers[key]++
}

func (s *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.liveLocked(key)
	return v, ok, nil
}

func (s *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl)
	return nil
}

func (s *Local) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveLocked(key); ok {
		return false, nil
	}
	s.setLocked(key, value, ttl)
	return true, nil
}

func (s *Local) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; ok {
		delete(s.m, key)
		s.vers[key]++
	}
	return nil
}

func (s *Local) DelIfEqual(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.liveLocked(key)
	if !ok || !bytes.Equal(v, value) {
		return false, nil
	}
	delete(s.m, key)
	s.vers[key]++
	return true, nil
}

func (s *Local) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, ok := s.liveLocked(key)
	var n int64 = 1
	exp := now.Add(window)
	if ok {
		prev, err := strconv.ParseInt(string(v), 10, 64)
		if err == nil {
			n = prev + 1
		}
		exp = s.m[key].exp // window anchored at the first event
	}
	s.m[key] = entry{v: []byte(strconv.FormatInt(n, 10)), exp: exp}
	s.vers[key]++

	var left time.Duration
	if !exp.IsZero() {
		left = exp.Sub(now)
	}
	return n, left, nil
}

func (s *Local) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.liveLocked(key)
	if !ok {
		return false, nil
	}
	s.setLocked(key, v, ttl)
	return true, nil
}

type snapshot struct{ s *Local }

func (sn snapshot) Get(_ context.Context, key string) ([]byte, bool, error) {
	sn.s.mu.Lock()
	defer sn.s.mu.Unlock()
	v, ok := sn.s.liveLocked(key)
	return v, ok, nil
}

func (s *Local) Update(ctx context.Context, watched []string, fn func(context.Context, st.Snapshot) ([]st.Mutation, error)) error {
	s.mu.Lock()
	observed := make(map[string]uint64, len(watched))
	for _, k := range watched {
		s.liveLocked(k) // settle pending expiry before recording the version
		observed[k] = s.vers[k]
	}
	s.mu.Unlock()

	// fn runs without the lock; it may be arbitrarily slow.
	muts, err := fn(ctx, snapshot{s})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range watched {
		s.liveLocked(k)
		if s.vers[k] != observed[k] {
			return st.ErrConflict
		}
	}
	for _, m := range muts {
		if m.Delete {
			if _, ok := s.m[m.Key]; ok {
				delete(s.m, m.Key)
				s.vers[m.Key]++
			}
			continue
		}
		s.setLocked(m.Key, m.Value, m.TTL)
	}
	return nil
}

func (s *Local) Close(context.Context) error { return nil }

// TTL reports the remaining life of key; ok=false when the key is absent
// or has no expiry. Intended for tests and diagnostics.
func (s *Local) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveLocked(key); !ok {
		return 0, false
	}
	e := s.m[key]
	if e.exp.IsZero() {
		return 0, false
	}
	return e.exp.Sub(s.now()), true
}
