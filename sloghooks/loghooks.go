package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/cacheguard"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery  uint64
	ContendedEvery uint64
	RateLimitEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	contendedCtr atomic.Uint64
	rateCtr      atomic.Uint64
}

var _ cacheguard.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("cacheguard.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) LoadContended(key string) {
	if h.l == nil || !sample(h.opts.ContendedEvery, &h.contendedCtr) {
		return
	}
	h.l.Debug("cacheguard.load_contended",
		"key", h.redact(key))
}

func (h *Hooks) LoaderFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cacheguard.loader_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) LoadTimedOut(key string, waited time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("cacheguard.load_timed_out",
		"key", h.redact(key),
		"waited", waited)
}

func (h *Hooks) RateLimited(identity string, count, limit int64) {
	if h.l == nil || !sample(h.opts.RateLimitEvery, &h.rateCtr) {
		return
	}
	h.l.Info("cacheguard.rate_limited",
		"identity", h.redact(identity),
		"count", count,
		"limit", limit)
}

func (h *Hooks) TxConflict(attempt int) {
	if h.l == nil {
		return
	}
	h.l.Debug("cacheguard.tx_conflict",
		"attempt", attempt)
}

func (h *Hooks) TxAborted(keys []string, attempts int) {
	if h.l == nil {
		return
	}
	redacted := make([]string, len(keys))
	for i, k := range keys {
		redacted[i] = h.redact(k)
	}
	h.l.Error("cacheguard.tx_aborted",
		"keys", redacted,
		"attempts", attempts)
}

func (h *Hooks) StoreError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cacheguard.store_error",
		"op", op,
		"err", err)
}
