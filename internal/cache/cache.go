package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"news-radar/internal/storage"
)

const evictTimeout = 5 * time.Second

// Entry is a cached value with its lifetime.
type Entry[V any] struct {
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Tag       string    `json:"tag,omitempty"`
}

func (e Entry[V]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats describes the current cache contents.
type Stats struct {
	Name    string    `json:"name"`
	Total   int       `json:"total"`
	Valid   int       `json:"valid"`
	Expired int       `json:"expired"`
	Oldest  time.Time `json:"oldest,omitempty"`
	Newest  time.Time `json:"newest,omitempty"`
	Hits    int64     `json:"hits"`
	Misses  int64     `json:"misses"`
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl time.Duration
	tag string
}

// WithTTL replaces the cache default TTL for one entry.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = d }
}

// WithTag records where an entry came from.
func WithTag(tag string) SetOption {
	return func(o *setOptions) { o.tag = tag }
}

// Cache is a key/value store with a per-instance default TTL, held in a
// go-cache instance and mirrored write-through to a storage.Store. Expiry is
// judged against the entry's ExpiresAt on the cache clock, so an entry is
// never returned once now >= ExpiresAt. Evictions reach the store through
// the go-cache eviction hook. Values are shared with callers and must be
// treated as read-only.
type Cache[V any] struct {
	name  string
	ttl   time.Duration
	store storage.Store
	now   func() time.Time

	// mu orders memory and store mutations for the same key.
	mu    sync.Mutex
	items *gocache.Cache

	// dropping holds keys removed by Delete, whose store delete is done
	// by the caller with its own context.
	dropping sync.Map

	hits   atomic.Int64
	misses atomic.Int64
}

// New builds a cache named name (also its storage namespace) and loads the
// persisted entries that have not yet expired. store may be nil for a
// memory-only cache. Expired entries are removed by Cleanup, usually from
// the sweeper worker, so no janitor goroutine is started.
func New[V any](ctx context.Context, name string, ttl time.Duration, store storage.Store, opts ...Option) (*Cache[V], error) {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache %s: ttl must be positive", name)
	}
	c := &Cache[V]{
		name:  name,
		ttl:   ttl,
		store: store,
		now:   o.now,
		items: gocache.New(ttl, 0),
	}
	c.items.OnEvicted(c.evicted)
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache[V]) load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	recs, err := c.store.Load(ctx, c.name)
	if err != nil {
		return fmt.Errorf("cache %s: load: %w", c.name, err)
	}
	now := c.now()
	discarded := 0
	for _, rec := range recs {
		var e Entry[V]
		if err := json.Unmarshal(rec.Data, &e); err != nil || e.expired(now) {
			discarded++
			if err := c.store.Delete(ctx, c.name, rec.Key); err != nil {
				slog.Warn("cache: delete on load failed", "cache", c.name, "key", rec.Key, "error", err)
			}
			continue
		}
		c.items.Set(rec.Key, e, e.ExpiresAt.Sub(now))
	}
	slog.Debug("cache: loaded", "cache", c.name, "entries", c.items.ItemCount(), "discarded", discarded, "ttl", c.ttl)
	return nil
}

// Get returns the value for key. Expired entries are evicted and reported
// as a miss.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	e, ok := c.GetEntry(ctx, key)
	return e.Value, ok
}

// GetEntry is Get with the entry metadata.
func (c *Cache[V]) GetEntry(ctx context.Context, key string) (Entry[V], bool) {
	e, ok := c.lookup(key)
	if !ok {
		c.misses.Add(1)
		return Entry[V]{}, false
	}
	c.hits.Add(1)
	return e, true
}

// Has reports whether a fresh entry exists without touching hit counters.
func (c *Cache[V]) Has(ctx context.Context, key string) bool {
	_, ok := c.lookup(key)
	return ok
}

func (c *Cache[V]) lookup(key string) (Entry[V], bool) {
	v, _, found := c.items.GetWithExpiration(key)
	if !found {
		return Entry[V]{}, false
	}
	e, ok := v.(Entry[V])
	if !ok {
		return Entry[V]{}, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		c.items.Delete(key)
		c.mu.Unlock()
		return Entry[V]{}, false
	}
	return e, true
}

// Set stores value under key with expiry now + ttl. The in-memory entry is
// always updated; a returned error means the durable mirror failed.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, opts ...SetOption) error {
	so := setOptions{ttl: c.ttl}
	for _, fn := range opts {
		fn(&so)
	}
	if so.ttl <= 0 {
		so.ttl = c.ttl
	}
	now := c.now()
	e := Entry[V]{Value: value, CreatedAt: now, ExpiresAt: now.Add(so.ttl), Tag: so.tag}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Set(key, e, so.ttl)
	if c.store == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache %s: encode %s: %w", c.name, key, err)
	}
	if err := c.store.Put(ctx, c.name, storage.Record{Key: key, Data: data, ExpiresAt: e.ExpiresAt}); err != nil {
		return fmt.Errorf("cache %s: persist %s: %w", c.name, key, err)
	}
	return nil
}

// Delete removes key from memory and storage.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropping.Store(key, struct{}{})
	c.items.Delete(key)
	c.dropping.Delete(key)
	if c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, c.name, key); err != nil {
		return fmt.Errorf("cache %s: delete %s: %w", c.name, key, err)
	}
	return nil
}

// Cleanup evicts every expired entry and returns how many were removed.
func (c *Cache[V]) Cleanup(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.items.ItemCount()
	c.items.DeleteExpired()
	now := c.now()
	for k, it := range c.items.Items() {
		if e, ok := it.Object.(Entry[V]); !ok || e.expired(now) {
			c.items.Delete(k)
		}
	}
	return before - c.items.ItemCount(), nil
}

// evicted mirrors a go-cache eviction to the store. It runs after go-cache
// has released its lock and must not take mu.
func (c *Cache[V]) evicted(key string, _ any) {
	if c.store == nil {
		return
	}
	if _, ok := c.dropping.Load(key); ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), evictTimeout)
	defer cancel()
	if err := c.store.Delete(ctx, c.name, key); err != nil {
		slog.Warn("cache: evict failed", "cache", c.name, "key", key, "error", err)
	}
}

// Stats returns a snapshot of entry counts and hit/miss counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	total := c.items.ItemCount()
	items := c.items.Items()
	st := Stats{Name: c.name, Total: total, Expired: total - len(items), Hits: c.hits.Load(), Misses: c.misses.Load()}
	for _, it := range items {
		e, ok := it.Object.(Entry[V])
		if !ok {
			continue
		}
		if e.expired(now) {
			st.Expired++
		} else {
			st.Valid++
		}
		if st.Oldest.IsZero() || e.CreatedAt.Before(st.Oldest) {
			st.Oldest = e.CreatedAt
		}
		if e.CreatedAt.After(st.Newest) {
			st.Newest = e.CreatedAt
		}
	}
	return st
}
