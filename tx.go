package cacheguard

import (
	"context"
	"time"

	"github.com/unkn0wn-root/cacheguard/internal/util"
	"github.com/unkn0wn-root/cacheguard/internal/wire"
	st "github.com/unkn0wn-root/cacheguard/store"
)

// Tx is the handle a Transact body works with: snapshot reads plus queued
// mutations. Mutations become visible only if the commit succeeds; a body
// error or a watched-key conflict discards them all.
//
// A Tx is only valid for the duration of one body invocation. Bodies run
// once per commit attempt and must therefore be idempotent apart from
// their Tx calls.
type Tx[V any] struct {
	g    *guard[V]
	ctx  context.Context
	snap st.Snapshot
	muts []st.Mutation
}

// Get reads key through the transaction's snapshot. Reads are not limited
// to the watched keys, but only watched keys guard the commit. Bytes that
// fail wire validation are reported as absent; the transaction stays
// read-only until it applies, so no self-heal delete happens here.
func (tx *Tx[V]) Get(key string) (V, bool, error) {
	var zero V
	k := util.EntryKey(tx.g.ns, key)
	raw, ok, err := tx.snap.Get(tx.ctx, k)
	if err != nil {
		tx.g.hooks.StoreError("get", err)
		return zero, false, &StoreError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return zero, false, nil
	}
	payload, err := wire.DecodeValue(raw)
	if err != nil {
		return zero, false, nil
	}
	v, err := tx.g.codec.Decode(payload)
	if err != nil {
		return zero, false, nil
	}
	return v, true, nil
}

// Set queues a write of value at key. ttl == 0 uses the guard's default.
func (tx *Tx[V]) Set(key string, value V, ttl time.Duration) error {
	if ttl == 0 {
		ttl = tx.g.defaultTTL
	}
	payload, err := tx.g.codec.Encode(value)
	if err != nil {
		return err
	}
	tx.muts = append(tx.muts, st.Mutation{
		Key:   util.EntryKey(tx.g.ns, key),
		Value: wire.EncodeValue(payload),
		TTL:   ttl,
	})
	return nil
}

// Delete queues removal of key.
func (tx *Tx[V]) Delete(key string) {
	tx.muts = append(tx.muts, st.Mutation{
		Key:    util.EntryKey(tx.g.ns, key),
		Delete: true,
	})
}

func (tx *Tx[V]) mutatedKeys() []string {
	if len(tx.muts) == 0 {
		return nil
	}
	out := make([]string, 0, len(tx.muts))
	for _, m := range tx.muts {
		out = append(out, m.Key)
	}
	return out
}
