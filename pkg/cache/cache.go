// Package cache is a bounded in-memory response cache with per-entry TTL
// and least-recently-used eviction.
//
// Expiry is lazy: an entry is checked only when it is read, so an expired
// entry keeps its slot until it is touched or pushed out by LRU pressure.
// A value is never served more than ttl after it was stored.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starcourier/starcourier/pkg/models"
)

// Defaults used by the API client.
const (
	DefaultMaxEntries = 100
	DefaultTTL        = 5 * time.Minute
)

type entry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// Cache is a TTL-LRU cache safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	order   *list.List // front = least recently used
	items   map[K]*list.Element
	hits    atomic.Int64
	misses  atomic.Int64
	evicted atomic.Int64
	expired atomic.Int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Cache holding at most maxSize entries for ttl each.
// Non-positive arguments fall back to the defaults.
func New[K comparable, V any](maxSize int, ttl time.Duration, opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     o.now,
		order:   list.New(),
		items:   make(map[K]*list.Element),
	}
}

// Get returns the value for key if present and fresh. A stale entry is
// removed and reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.removeElement(el)
		c.expired.Add(1)
		c.misses.Add(1)
		return zero, false
	}
	c.order.MoveToBack(el)
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key as the most recently used entry.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.storedAt = now
		c.order.MoveToBack(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.removeElement(oldest)
			c.evicted.Add(1)
		}
	}
	c.items[key] = c.order.PushBack(&entry[K, V]{key: key, value: value, storedAt: now})
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[K]*list.Element)
}

// Len returns the number of stored entries, including stale ones not yet touched.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// TTL returns the configured time-to-live.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Stats returns cache performance metrics.
func (c *Cache[K, V]) Stats() models.CacheStats {
	return models.CacheStats{
		Entries:  int64(c.Len()),
		Capacity: int64(c.maxSize),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Evicted:  c.evicted.Load(),
		Expired:  c.expired.Load(),
	}
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
}
