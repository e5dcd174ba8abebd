// Package cache memoizes analysis results by content hash with LRU
// eviction. Because the rule pipeline is deterministic, a hit is always
// safe to reuse without re-checking. Rule-set changes (dictionary edits,
// Lua rule reloads) bump the cache epoch, which invalidates every entry
// computed under the previous rule set.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the default maximum number of entries.
const DefaultCapacity = 200

// Hash is a content hash of an analysis unit's text.
type Hash uint64

// HashText computes the FNV-1a hash of text, length-prefixed to reduce
// collision probability.
func HashText(s string) Hash {
	h := fnv.New64a()
	length := uint64(len(s))
	h.Write([]byte{
		byte(length), byte(length >> 8), byte(length >> 16), byte(length >> 24),
		byte(length >> 32), byte(length >> 40), byte(length >> 48), byte(length >> 56),
	})
	h.Write([]byte(s))
	return Hash(h.Sum64())
}

type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// ResultCache is a content-hash to value memo with LRU eviction. V is the
// cached result type (the engine stores finding slices). The zero value is
// not usable; construct with New.
type ResultCache[V any] struct {
	mu       sync.Mutex
	entries  map[Hash]*entry[V]
	capacity int
	epoch    uint64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Option configures a ResultCache.
type Option[V any] func(*ResultCache[V])

// WithCapacity sets the maximum number of entries.
func WithCapacity[V any](n int) Option[V] {
	return func(c *ResultCache[V]) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// New creates an empty cache.
func New[V any](opts ...Option[V]) *ResultCache[V] {
	c := &ResultCache[V]{
		entries:  make(map[Hash]*entry[V]),
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for hash and refreshes its recency.
func (c *ResultCache[V]) Get(h Hash) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[h]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	e.lastAccess = time.Now()
	c.hits.Add(1)
	return e.value, true
}

// Set stores a value, evicting the least-recently-accessed entry when the
// cache is over capacity.
func (c *ResultCache[V]) Set(h Hash, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[h] = &entry[V]{value: v, lastAccess: time.Now()}
	for len(c.entries) > c.capacity {
		c.evictOldest()
	}
}

// Invalidate removes a single entry.
func (c *ResultCache[V]) Invalidate(h Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, h)
}

// BumpEpoch invalidates every entry. Called when the rule set changes,
// since cached results are only valid under the rule set that produced
// them.
func (c *ResultCache[V]) BumpEpoch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[Hash]*entry[V])
}

// Epoch returns the current rule-set epoch.
func (c *ResultCache[V]) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Len returns the number of cached entries.
func (c *ResultCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the least-recently-accessed entry. Caller holds the
// lock.
func (c *ResultCache[V]) evictOldest() {
	var oldest Hash
	var oldestAt time.Time
	first := true
	for h, e := range c.entries {
		if first || e.lastAccess.Before(oldestAt) {
			oldest = h
			oldestAt = e.lastAccess
			first = false
		}
	}
	if !first {
		delete(c.entries, oldest)
		c.evictions.Add(1)
	}
}

// Stats holds cache counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache[V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Size:      size,
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
