package ristretto

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cacheguard/near"
)

// Tier adapts Ristretto as a near tier. Admission is asynchronous and
// cost-based; a Set may be dropped, which the near contract allows.
type Tier struct {
	c *rc.Cache
}

var _ near.Near = (*Tier)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Tier, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Tier{c: c}, nil
}

func (t *Tier) Get(key string) ([]byte, bool) {
	v, ok := t.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		// drop unexpected entry shape
		t.c.Del(key)
		return nil, false
	}
	return b, true
}

func (t *Tier) Set(key string, value []byte, ttl time.Duration) {
	t.c.SetWithTTL(key, value, int64(len(value)), ttl)
}

func (t *Tier) Del(key string) {
	t.c.Del(key)
}

func (t *Tier) Close() error {
	t.c.Wait()
	t.c.Close()
	return nil
}

// Metrics exposes Ristretto's counters for applications that want them
// (not part of the near.Near contract).
func (t *Tier) Metrics() *rc.Metrics { return t.c.Metrics }
