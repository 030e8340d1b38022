// Package cache implements the bounded LRU cache (C7): a doubly-linked
// list plus hash map giving O(1) get/put/peek/delete, evicting by count
// (MaxEntries) and optionally by running byte total (MaxBytes). The
// locking discipline (one Mutex guarding the whole struct) is
// generalized from the teacher's sketch/filter structures
// (internal/memory/advanced_structures.go); the eviction-event and
// hit/miss/byte metrics shape is grounded on the pack's semantic-cache
// reference (services/gateway/caching).
package cache

import (
	"container/list"
	"sync"
)

// Sizer computes the byte footprint of a cached value, used for the
// optional memory budget.
type Sizer[V any] func(V) int

// Eviction describes one entry leaving the cache, for emission to the
// observability bus. Config.OnEvict is called synchronously while the
// cache lock is held: a slow listener delays the Put that triggered the
// eviction, and a panicking listener propagates to that Put's caller.
type Eviction[K comparable] struct {
	Key         K
	Bytes       int
	RemainingN  int
	RemainingBytes int
}

// Config configures a Cache.
type Config[K comparable, V any] struct {
	MaxEntries int
	MaxBytes   int // 0 disables the byte budget
	Size       Sizer[V]
	OnEvict    func(Eviction[K])
}

type entry[K comparable, V any] struct {
	key   K
	value V
	bytes int
}

// Metrics is a point-in-time snapshot of cache activity.
type Metrics struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Entries     int
	Bytes       int
	HitRate     float64
}

// Cache is a generic, bounded, thread-safe LRU.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	cfg   Config[K, V]
	ll    *list.List
	items map[K]*list.Element

	hits, misses, evictions int64
	bytes                   int
}

// New builds a Cache. cfg.Size may be nil, in which case every entry
// counts as zero bytes and the byte budget is inert.
func New[K comparable, V any](cfg Config[K, V]) *Cache[K, V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1
	}
	if cfg.Size == nil {
		cfg.Size = func(V) int { return 0 }
	}
	return &Cache[K, V]{
		cfg:   cfg,
		ll:    list.New(),
		items: make(map[K]*list.Element),
	}
}

// Get returns the value for key and moves it to the most-recently-used
// position, or (zero, false) on a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	return el.Value.(*entry[K, V]).value, true
}

// Peek returns the value for key without affecting its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return el.Value.(*entry[K, V]).value, true
}

// Put inserts or updates key, moving it to the most-recently-used
// position, then evicts from the tail until both budgets are satisfied.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.cfg.Size(value)
	if el, ok := c.items[key]; ok {
		old := el.Value.(*entry[K, V])
		c.bytes += size - old.bytes
		old.value = value
		old.bytes = size
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&entry[K, V]{key: key, value: value, bytes: size})
		c.items[key] = el
		c.bytes += size
	}
	c.evictLocked()
}

func (c *Cache[K, V]) evictLocked() {
	for len(c.items) > c.cfg.MaxEntries || (c.cfg.MaxBytes > 0 && c.bytes > c.cfg.MaxBytes) {
		tail := c.ll.Back()
		if tail == nil {
			return
		}
		ev := tail.Value.(*entry[K, V])
		c.ll.Remove(tail)
		delete(c.items, ev.key)
		c.bytes -= ev.bytes
		c.evictions++
		if c.cfg.OnEvict != nil {
			c.cfg.OnEvict(Eviction[K]{Key: ev.key, Bytes: ev.bytes, RemainingN: len(c.items), RemainingBytes: c.bytes})
		}
	}
}

// Delete removes key, if present, returning whether it existed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	ev := el.Value.(*entry[K, V])
	c.ll.Remove(el)
	delete(c.items, key)
	c.bytes -= ev.bytes
	return true
}

// Clear empties the cache without emitting eviction events.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[K]*list.Element)
	c.bytes = 0
}

// Len returns the current entry count.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Metrics returns a snapshot of hit/miss/eviction counters.
func (c *Cache[K, V]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Metrics{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.items),
		Bytes:     c.bytes,
		HitRate:   rate,
	}
}
