// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/cacheguard"
//	"github.com/unkn0wn-root/cacheguard/codec"
//	asynchook "github.com/unkn0wn-root/cacheguard/hooks/async"
//	"github.com/unkn0wn-root/cacheguard/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery:  10, // sample logs: ~every 10th self-heal
//	    ContendedEvery: 1,  // log every lock contention
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	guard, _ := cacheguard.New[User](cacheguard.Options[User]{
//	    Namespace: "app:prod:user",
//	    Store:     redisStore,
//	    Codec:     codec.JSON[User]{},
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/cacheguard"
)

type Hooks struct {
	inner cacheguard.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ cacheguard.Hooks = (*Hooks)(nil)

func New(inner cacheguard.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)       { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) LoadContended(k string)     { h.try(func() { h.inner.LoadContended(k) }) }
func (h *Hooks) TxConflict(attempt int)     { h.try(func() { h.inner.TxConflict(attempt) }) }
func (h *Hooks) LoaderFailed(k string, err error) {
	h.try(func() { h.inner.LoaderFailed(k, err) })
}
func (h *Hooks) LoadTimedOut(k string, waited time.Duration) {
	h.try(func() { h.inner.LoadTimedOut(k, waited) })
}
func (h *Hooks) RateLimited(id string, count, limit int64) {
	h.try(func() { h.inner.RateLimited(id, count, limit) })
}
func (h *Hooks) TxAborted(keys []string, attempts int) {
	h.try(func() { h.inner.TxAborted(keys, attempts) })
}
func (h *Hooks) StoreError(op string, err error) {
	h.try(func() { h.inner.StoreError(op, err) })
}
