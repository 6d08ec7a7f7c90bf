package bigcache

import (
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/cacheguard/near"
)

// Tier adapts BigCache as a near tier. BigCache has no per-entry TTL;
// LifeWindow bounds the life of every entry, so configure it at or below
// the guard's NearTTL.
type Tier struct {
	c *bc.BigCache
}

var _ near.Near = (*Tier)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Tier, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Tier{c: c}, nil
}

func (t *Tier) Get(key string) ([]byte, bool) {
	b, err := t.c.Get(key)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (t *Tier) Set(key string, value []byte, _ time.Duration) {
	// per-entry TTL unsupported; LifeWindow governs expiry
	_ = t.c.Set(key, value)
}

func (t *Tier) Del(key string) {
	_ = t.c.Delete(key)
}

func (t *Tier) Close() error { return t.c.Close() }
