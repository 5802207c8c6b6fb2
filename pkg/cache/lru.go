// Package cache provides the bounded in-memory object caches owned by each
// repository handle.
package cache

import "sync"

// node links cached values in recency order around a sentinel.
type node[K comparable, V any] struct {
	key   K
	value V
	size  int64
	newer *node[K, V]
	older *node[K, V]
}

// LRU is a least-recently-used cache bounded by the total size of its values.
// Values larger than the whole budget are never stored.
type LRU[K comparable, V any] struct {
	mu     sync.Mutex
	index  map[K]*node[K, V]
	ring   node[K, V] // ring.older is the most recent entry, ring.newer the stalest.
	budget int64
	used   int64
	sizeOf func(V) int64

	hits, misses, evictions int64
}

// Stats is a snapshot of an LRU's counters and occupancy.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// HitRate returns Hits over all lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if lookups := s.Hits + s.Misses; lookups > 0 {
		return float64(s.Hits) / float64(lookups)
	}

	return 0
}

// NewLRU creates a cache holding at most maxSize bytes as measured by sizeOf.
// A non-positive maxSize disables caching: every Get misses and Put is a no-op.
func NewLRU[K comparable, V any](maxSize int64, sizeOf func(V) int64) *LRU[K, V] {
	c := &LRU[K, V]{budget: maxSize, sizeOf: sizeOf}
	c.reset()

	return c
}

// Get returns the value cached under key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.index[key]
	if !ok {
		c.misses++

		var zero V

		return zero, false
	}

	c.hits++
	c.detach(n)
	c.pushRecent(n)

	return n.value, true
}

// Put caches value under key, evicting the stalest entries until it fits.
func (c *LRU[K, V]) Put(key K, value V) {
	size := c.sizeOf(value)
	if c.budget <= 0 || size > c.budget {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.index[key]
	if ok {
		c.used -= n.size
		c.detach(n)
	} else {
		n = &node[K, V]{key: key}
		c.index[key] = n
	}

	n.value, n.size = value, size
	c.used += size
	c.pushRecent(n)

	for c.used > c.budget {
		stale := c.ring.newer
		c.detach(stale)
		delete(c.index, stale.key)
		c.used -= stale.size
		c.evictions++
	}
}

// Clear drops every entry. Counters survive.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
}

// Stats returns a snapshot of the counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Entries:     len(c.index),
		CurrentSize: c.used,
		MaxSize:     c.budget,
	}
}

func (c *LRU[K, V]) reset() {
	c.index = make(map[K]*node[K, V])
	c.ring.newer, c.ring.older = &c.ring, &c.ring
	c.used = 0
}

// pushRecent links n as the most recent entry.
func (c *LRU[K, V]) pushRecent(n *node[K, V]) {
	head := &c.ring
	n.older, n.newer = head.older, head
	head.older.newer = n
	head.older = n
}

func (c *LRU[K, V]) detach(n *node[K, V]) {
	n.newer.older = n.older
	n.older.newer = n.newer
	n.newer, n.older = nil, nil
}
