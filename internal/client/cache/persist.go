package cache

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

// persist writes snap, taken at revision rev of generation gen, to the store.
// A snapshot older than the last one written, or taken before a Clear, is
// skipped. Failures are logged and counted; memory stays authoritative.
func (c *Cache) persist(ctx context.Context, gen, rev uint64, snap entitlements.Snapshot, writeFlags bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.RLock()
	cleared := c.generation != gen
	c.mu.RUnlock()
	if cleared || rev <= c.persistedRev {
		return
	}

	key := SnapshotKey(c.namespace)
	b, err := c.codec.Encode(snap)
	if err != nil {
		c.metrics.persistFailed()
		c.logger.Error(ctx, "failed to encode entitlement snapshot", "error", err)
		return
	}
	if err := c.store.Set(ctx, key, b); err != nil {
		c.metrics.persistFailed()
		c.logger.Warn(ctx, "failed to persist entitlement snapshot", "key", key, "error", err)
		return
	}
	c.persistedRev = rev

	if writeFlags && snap.Status != nil {
		c.writeFlags(ctx, snap.Status)
	}
}

// writeFlags mirrors the per-tab booleans of the aggregate status for callers
// that still read them directly. Callers hold persistMu.
func (c *Cache) writeFlags(ctx context.Context, st *entitlements.AggregateStatus) {
	for _, tab := range entitlements.Tabs() {
		key := FlagKey(c.namespace, tab)
		if err := c.store.Set(ctx, key, []byte(strconv.FormatBool(st.HasTab(tab)))); err != nil {
			c.metrics.persistFailed()
			c.logger.Warn(ctx, "failed to write compatibility flag", "key", key, "error", err)
		}
	}
}

// CompatibilityFlag reads a mirrored per-tab boolean back from the store.
// Absent or unreadable flags read as false.
func (c *Cache) CompatibilityFlag(ctx context.Context, tab entitlements.TabID) bool {
	b, err := c.store.Get(ctx, FlagKey(c.namespace, tab))
	if err != nil || b == nil {
		return false
	}
	v, err := strconv.ParseBool(string(b))
	return err == nil && v
}
