package local

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	st "github.com/unkn0wn-root/cacheguard/store"
)

// testClock is a mutable time source shared with the store under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSetGetTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	s := NewWithClock(clk.Now)

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("get: ok=%v v=%q", ok, v)
	}
	if ttl, ok := s.TTL("k"); !ok || ttl != time.Minute {
		t.Fatalf("ttl=%v ok=%v, want 1m", ttl, ok)
	}

	clk.Advance(59 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("key expired early")
	}
	clk.Advance(2 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("key should have expired")
	}

	// No TTL means no expiry.
	if err := s.Set(ctx, "p", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	clk.Advance(1000 * time.Hour)
	if _, ok, _ := s.Get(ctx, "p"); !ok {
		t.Fatalf("no-TTL key should persist")
	}
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	s := NewWithClock(clk.Now)

	ok, err := s.SetNX(ctx, "lock", []byte("a"), time.Second)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}
	ok, err = s.SetNX(ctx, "lock", []byte("b"), time.Second)
	if err != nil || ok {
		t.Fatalf("second SetNX should lose: ok=%v err=%v", ok, err)
	}
	if v, _, _ := s.Get(ctx, "lock"); string(v) != "a" {
		t.Fatalf("holder overwritten: %q", v)
	}

	// After expiry the key is free again.
	clk.Advance(2 * time.Second)
	ok, err = s.SetNX(ctx, "lock", []byte("b"), time.Second)
	if err != nil || !ok {
		t.Fatalf("SetNX after expiry: ok=%v err=%v", ok, err)
	}
}

func TestDelIfEqual(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "lock", []byte("owner-1"), 0); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.DelIfEqual(ctx, "lock", []byte("owner-2")); ok {
		t.Fatalf("foreign owner must not delete the lock")
	}
	if _, ok, _ := s.Get(ctx, "lock"); !ok {
		t.Fatalf("lock vanished after mismatched delete")
	}
	if ok, _ := s.DelIfEqual(ctx, "lock", []byte("owner-1")); !ok {
		t.Fatalf("owner delete should succeed")
	}
	if _, ok, _ := s.Get(ctx, "lock"); ok {
		t.Fatalf("lock should be gone")
	}
	// Absent key: no-op, not an error.
	if ok, err := s.DelIfEqual(ctx, "lock", []byte("owner-1")); ok || err != nil {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}
}

func TestIncrWindow(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	s := NewWithClock(clk.Now)

	n, left, err := s.IncrWindow(ctx, "rate", time.Minute)
	if err != nil || n != 1 || left != time.Minute {
		t.Fatalf("first incr: n=%d left=%v err=%v", n, left, err)
	}

	// The window stays anchored at the first event.
	clk.Advance(30 * time.Second)
	n, left, err = s.IncrWindow(ctx, "rate", time.Minute)
	if err != nil || n != 2 || left != 30*time.Second {
		t.Fatalf("second incr: n=%d left=%v err=%v", n, left, err)
	}

	// Expiry resets the counter and re-anchors the window.
	clk.Advance(31 * time.Second)
	n, left, err = s.IncrWindow(ctx, "rate", time.Minute)
	if err != nil || n != 1 || left != time.Minute {
		t.Fatalf("post-expiry incr: n=%d left=%v err=%v", n, left, err)
	}
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	s := NewWithClock(clk.Now)

	if ok, _ := s.Expire(ctx, "missing", time.Second); ok {
		t.Fatalf("Expire on absent key should report false")
	}

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Expire(ctx, "k", time.Second); !ok {
		t.Fatalf("Expire on present key should report true")
	}
	clk.Advance(2 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("key should have expired after Expire")
	}
}

func TestUpdateCommitsWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}
	err := s.Update(ctx, []string{"a"}, func(ctx context.Context, snap st.Snapshot) ([]st.Mutation, error) {
		v, ok, err := snap.Get(ctx, "a")
		if err != nil || !ok {
			t.Fatalf("snap get: ok=%v err=%v", ok, err)
		}
		return []st.Mutation{
			{Key: "a", Value: append(v, '!')},
			{Key: "b", Value: []byte("new"), TTL: time.Minute},
		}, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v, _, _ := s.Get(ctx, "a"); string(v) != "1!" {
		t.Fatalf("a=%q", v)
	}
	if v, _, _ := s.Get(ctx, "b"); string(v) != "new" {
		t.Fatalf("b=%q", v)
	}
}

func TestUpdateConflictsOnWatchedWrite(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}
	err := s.Update(ctx, []string{"a"}, func(ctx context.Context, snap st.Snapshot) ([]st.Mutation, error) {
		// concurrent writer touches the watched key before commit
		if err := s.Set(ctx, "a", []byte("2"), 0); err != nil {
			return nil, err
		}
		return []st.Mutation{{Key: "a", Value: []byte("mine")}}, nil
	})
	if !errors.Is(err, st.ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict", err)
	}
	// Nothing applied.
	if v, _, _ := s.Get(ctx, "a"); string(v) != "2" {
		t.Fatalf("a=%q, conflicting commit must not apply", v)
	}
}

func TestUpdateConflictsOnWatchedDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}
	err := s.Update(ctx, []string{"a"}, func(ctx context.Context, snap st.Snapshot) ([]st.Mutation, error) {
		if err := s.Del(ctx, "a"); err != nil {
			return nil, err
		}
		return []st.Mutation{{Key: "a", Value: []byte("mine")}}, nil
	})
	if !errors.Is(err, st.ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict", err)
	}
}

func TestUpdateUnwatchedWriteDoesNotConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Update(ctx, []string{"a"}, func(ctx context.Context, snap st.Snapshot) ([]st.Mutation, error) {
		if err := s.Set(ctx, "unrelated", []byte("x"), 0); err != nil {
			return nil, err
		}
		return []st.Mutation{{Key: "a", Value: []byte("ok")}}, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v, _, _ := s.Get(ctx, "a"); string(v) != "ok" {
		t.Fatalf("a=%q", v)
	}
}

func TestUpdateFnErrorAborts(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := errors.New("body failed")
	err := s.Update(ctx, []string{"a"}, func(context.Context, st.Snapshot) ([]st.Mutation, error) {
		return []st.Mutation{{Key: "a", Value: []byte("x")}}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want fn error", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("fn error must not apply mutations")
	}
}

func TestUpdateWatchedExpiryConflicts(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	s := NewWithClock(clk.Now)

	if err := s.Set(ctx, "a", []byte("1"), time.Second); err != nil {
		t.Fatal(err)
	}
	err := s.Update(ctx, []string{"a"}, func(context.Context, st.Snapshot) ([]st.Mutation, error) {
		clk.Advance(2 * time.Second) // the watched key expires mid-transaction
		return []st.Mutation{{Key: "a", Value: []byte("mine")}}, nil
	})
	if !errors.Is(err, st.ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict on watched expiry", err)
	}
}
