// Package cache implements the entitlement cache: the client's single source of
// truth for which subscriptions a user holds and which tabs they unlock.
//
// Every key (the aggregate status and one entry per tab) runs its own
// EMPTY → FETCHING → FRESH → STALE cycle with a fixed five minute TTL.
// Concurrent refreshes of one key share a single call to the entitlement
// source. Fetch methods never return errors: a failed refresh is logged and
// the last known value (possibly nil) is served. The in-memory snapshot is
// authoritative; the durable copy is written after every successful refresh
// and is best effort.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/dmitrijs2005/dairykeeper/internal/logging"
	"github.com/dmitrijs2005/dairykeeper/internal/timex"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// TTL is how long a fetched value is served without a refresh.
	TTL = 5 * time.Minute

	// DefaultFetchTimeout bounds a single refresh and every wait on it.
	DefaultFetchTimeout = 20 * time.Second

	// AnonymousNamespace is used when no user can be determined.
	AnonymousNamespace = "anonymous"
)

// Source is the remote Entitlement Source the cache refreshes from.
type Source interface {
	GetAggregateStatus(ctx context.Context) (*entitlements.AggregateStatus, error)
	GetTabEntitlement(ctx context.Context, tab entitlements.TabID) (*entitlements.TabEntitlement, error)
}

// Store is the durable key-value store the snapshot is persisted to.
// Get returns (nil, nil) for an absent key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SnapshotKey is the store key holding the serialized snapshot of namespace.
func SnapshotKey(namespace string) string {
	return "entitlements/snapshot/" + namespace
}

// FlagKey is the store key of the per-tab compatibility flag of namespace.
func FlagKey(namespace string, tab entitlements.TabID) string {
	return "entitlements/flags/" + namespace + "/" + tab.String()
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock used for stamps and TTL checks.
func WithClock(c timex.Clock) Option { return func(x *Cache) { x.clock = c } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logging.Logger) Option { return func(x *Cache) { x.logger = l } }

// WithCodec sets how the snapshot is serialized; the default is plain JSON.
func WithCodec(c Codec) Option { return func(x *Cache) { x.codec = c } }

// WithMetrics enables the cache collectors. A nil Metrics records nothing.
func WithMetrics(m *Metrics) Option { return func(x *Cache) { x.metrics = m } }

// WithFetchTimeout sets the refresh bound; non-positive values are ignored.
func WithFetchTimeout(d time.Duration) Option {
	return func(x *Cache) {
		if d > 0 {
			x.fetchTimeout = d
		}
	}
}

// WithNamespace scopes the persisted keys to one user.
func WithNamespace(ns string) Option {
	return func(x *Cache) {
		if ns != "" {
			x.namespace = ns
		}
	}
}

// Cache holds the entitlement snapshot of one user. It is safe for
// concurrent use.
type Cache struct {
	source       Source
	store        Store
	codec        Codec
	clock        timex.Clock
	logger       logging.Logger
	metrics      *Metrics
	fetchTimeout time.Duration
	namespace    string

	group singleflight.Group

	mu         sync.RWMutex
	snap       entitlements.Snapshot
	generation uint64
	revision   uint64
	inflight   map[Key]int

	// persistMu orders every write and delete against the store.
	persistMu    sync.Mutex
	persistedRev uint64
}

// New builds a cache that refreshes from source and persists to store.
// It starts empty; call InitializeFromStorage to restore a saved snapshot.
func New(source Source, store Store, opts ...Option) *Cache {
	c := &Cache{
		source:       source,
		store:        store,
		codec:        JSONCodec{},
		clock:        timex.SystemClock{},
		logger:       logging.Nop{},
		fetchTimeout: DefaultFetchTimeout,
		namespace:    AnonymousNamespace,
		inflight:     make(map[Key]int),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("module", "entitlement_cache")
	return c
}

// Namespace returns the user namespace of the persisted keys.
func (c *Cache) Namespace() string {
	return c.namespace
}

func (c *Cache) fresh(at time.Time, now time.Time) bool {
	return !at.IsZero() && now.Sub(at) < TTL
}

// FetchStatus returns the aggregate status, refreshing it when empty or stale.
// On a failed refresh it returns the last known value, or nil.
func (c *Cache) FetchStatus(ctx context.Context) *entitlements.AggregateStatus {
	return fetch(ctx, c, KeyStatus, statusSlot{}, c.source.GetAggregateStatus)
}

// FetchTabData returns the entitlement of tab, refreshing it when empty or
// stale. Unknown tabs yield nil without any I/O.
func (c *Cache) FetchTabData(ctx context.Context, tab entitlements.TabID) *entitlements.TabEntitlement {
	if !tab.Valid() {
		c.logger.Debug(ctx, "ignoring unknown tab", "tab", tab)
		return nil
	}
	return fetch(ctx, c, TabKey(tab), tabSlot{tab: tab}, func(ctx context.Context) (*entitlements.TabEntitlement, error) {
		return c.source.GetTabEntitlement(ctx, tab)
	})
}

// PreloadAll fetches the aggregate status, then every tab concurrently.
func (c *Cache) PreloadAll(ctx context.Context) {
	c.FetchStatus(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, tab := range entitlements.Tabs() {
		g.Go(func() error {
			c.FetchTabData(gctx, tab)
			return nil
		})
	}
	_ = g.Wait()
}

// HasTabAccess answers from memory only. A per-tab entry wins regardless of
// its freshness, then the aggregate status; with neither it returns false.
func (c *Cache) HasTabAccess(tab entitlements.TabID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.snap.PerTab[tab]; ok && e != nil {
		return e.HasValidSubscription()
	}
	if c.snap.Status != nil {
		return c.snap.Status.HasTab(tab)
	}
	return false
}

// State reports where key is in its refresh cycle.
func (c *Cache) State(key Key) State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.inflight[key] > 0 {
		return StateFetching
	}
	at, ok := c.stampLocked(key)
	switch {
	case !ok:
		return StateEmpty
	case c.fresh(at, c.clock.Now()):
		return StateFresh
	default:
		return StateStale
	}
}

func (c *Cache) stampLocked(key Key) (time.Time, bool) {
	if key == KeyStatus {
		if c.snap.Status == nil {
			return time.Time{}, false
		}
		return c.snap.StatusFetchedAt, true
	}
	tab, ok := key.Tab()
	if !ok {
		return time.Time{}, false
	}
	e, ok := c.snap.PerTab[tab]
	if !ok || e == nil {
		return time.Time{}, false
	}
	return e.LastFetched, true
}

// Snapshot returns a deep copy of the in-memory state.
func (c *Cache) Snapshot() entitlements.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// Clear resets every key to EMPTY and removes the persisted snapshot and
// compatibility flags. Refreshes already in flight do not write their results
// back. Storage failures are logged.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	c.snap = entitlements.Snapshot{}
	c.mu.Unlock()

	c.metrics.cleared()

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	keys := []string{SnapshotKey(c.namespace)}
	for _, tab := range entitlements.Tabs() {
		keys = append(keys, FlagKey(c.namespace, tab))
	}
	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			c.metrics.persistFailed()
			c.logger.Warn(ctx, "failed to delete persisted entitlement data", "key", k, "error", err)
		}
	}
	c.logger.Info(ctx, "entitlement cache cleared")
}

// InitializeFromStorage restores the persisted snapshot if it was written less
// than one TTL ago. Each entry keeps its own stamp, so some keys may come back
// stale. Entries older than what memory already holds are ignored. Undecodable
// snapshots are discarded.
func (c *Cache) InitializeFromStorage(ctx context.Context) {
	key := SnapshotKey(c.namespace)

	b, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "failed to read persisted entitlements", "key", key, "error", err)
		return
	}
	if b == nil {
		c.logger.Debug(ctx, "no persisted entitlements", "key", key)
		return
	}

	snap, err := c.codec.Decode(b)
	if err != nil {
		c.logger.Warn(ctx, "discarding persisted entitlements", "key", key, "error", err)
		return
	}

	now := c.clock.Now()
	if snap.LastFetched.After(now) || !c.fresh(snap.LastFetched, now) {
		c.logger.Debug(ctx, "persisted entitlements too old", "last_fetched", snap.LastFetched)
		return
	}

	c.mu.Lock()
	adopted := 0
	if snap.Status != nil && !snap.StatusFetchedAt.After(now) && snap.StatusFetchedAt.After(c.stampOr(KeyStatus)) {
		c.snap.Status = snap.Status
		c.snap.StatusFetchedAt = snap.StatusFetchedAt
		adopted++
	}
	for tab, e := range snap.PerTab {
		if e == nil || !tab.Valid() || e.LastFetched.After(now) {
			continue
		}
		if !e.LastFetched.After(c.stampOr(TabKey(tab))) {
			continue
		}
		e.Tab = tab
		e.Normalize(now)
		if c.snap.PerTab == nil {
			c.snap.PerTab = make(map[entitlements.TabID]*entitlements.TabEntitlement)
		}
		c.snap.PerTab[tab] = e
		adopted++
	}
	if adopted > 0 {
		if snap.LastFetched.After(c.snap.LastFetched) {
			c.snap.LastFetched = snap.LastFetched
		}
		c.revision++
	}
	c.mu.Unlock()

	c.logger.Info(ctx, "restored persisted entitlements", "entries", adopted)
}

// stampOr returns the stamp of key or the zero time. Callers hold c.mu.
func (c *Cache) stampOr(key Key) time.Time {
	at, _ := c.stampLocked(key)
	return at
}

// slot reads and writes one key of the snapshot. Callers hold c.mu.
type slot[T any] interface {
	get(s *entitlements.Snapshot) (T, time.Time, bool)
	set(s *entitlements.Snapshot, v T, at time.Time)
	prepare(v T, now time.Time) (T, error)
	clone(v T) T
}

func fetch[T any](ctx context.Context, c *Cache, key Key, sl slot[T], call func(context.Context) (T, error)) T {
	c.mu.RLock()
	v, at, ok := sl.get(&c.snap)
	gen := c.generation
	busy := c.inflight[key] > 0
	if ok && c.fresh(at, c.clock.Now()) {
		v = sl.clone(v)
		c.mu.RUnlock()
		c.metrics.hit(key)
		return v
	}
	c.mu.RUnlock()

	c.metrics.miss(key)
	if busy {
		c.metrics.joined(key)
	}

	flight := fmt.Sprintf("%s#%d", key, gen)
	ch := c.group.DoChan(flight, func() (any, error) {
		return refresh(ctx, c, key, gen, sl, call)
	})

	timer := time.NewTimer(c.fetchTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.Err != nil {
			return current(c, sl)
		}
		return sl.clone(r.Val.(T))
	case <-ctx.Done():
		c.logger.Debug(ctx, "stopped waiting for refresh", "key", key, "error", ctx.Err())
		return current(c, sl)
	case <-timer.C:
		c.group.Forget(flight)
		c.logger.Warn(ctx, "refresh did not finish in time", "key", key, "timeout", c.fetchTimeout)
		return current(c, sl)
	}
}

// refresh is the body of one flight.
func refresh[T any](ctx context.Context, c *Cache, key Key, gen uint64, sl slot[T], call func(context.Context) (T, error)) (any, error) {
	c.mu.Lock()
	if c.generation == gen {
		if v, at, ok := sl.get(&c.snap); ok && c.fresh(at, c.clock.Now()) {
			c.mu.Unlock()
			return v, nil
		}
	}
	c.inflight[key]++
	c.mu.Unlock()
	c.metrics.flightStarted()

	defer func() {
		c.mu.Lock()
		c.inflight[key]--
		if c.inflight[key] <= 0 {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
		c.metrics.flightDone()
	}()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	started := time.Now()
	v, err := call(fctx)
	took := time.Since(started)
	now := c.clock.Now()
	if err == nil {
		v, err = sl.prepare(v, now)
	}
	if err != nil {
		result := resultError
		if errors.Is(fctx.Err(), context.DeadlineExceeded) {
			result = resultTimeout
		}
		c.metrics.refreshed(key, result, took)
		c.logger.Warn(ctx, "entitlement refresh failed", "key", key, "result", result, "error", err)
		return nil, err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.metrics.refreshed(key, resultDiscarded, took)
		c.logger.Debug(ctx, "dropping refresh started before clear", "key", key)
		return v, nil
	}
	sl.set(&c.snap, sl.clone(v), now)
	c.snap.LastFetched = now
	c.revision++
	rev := c.revision
	snap := c.snap.Clone()
	c.mu.Unlock()

	c.metrics.refreshed(key, resultOK, took)
	c.logger.Debug(ctx, "entitlements refreshed", "key", key, "took", took)

	c.persist(ctx, gen, rev, snap, key == KeyStatus)
	return v, nil
}

// current returns a copy of the last known value of a key, or its zero value.
func current[T any](c *Cache, sl slot[T]) T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, _, _ := sl.get(&c.snap)
	return sl.clone(v)
}
