package cache

import "sync"

// Cache is a process-wide memoization of computed results keyed by string.
// There is no per-entry expiry: every mutation of the underlying data is
// expected to call ClearAll. An optional entry bound guards against
// unbounded growth; when the bound is hit the whole map is flushed, since
// whole-map invalidation is already the granularity of this cache.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]V
	maxEntries int
}

// Invalidator is the mutation-side view of the cache.
type Invalidator interface {
	ClearAll()
}

// New returns a cache bounded to maxEntries. A non-positive bound means
// unbounded.
func New[V any](maxEntries int) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]V),
		maxEntries: maxEntries,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.entries = make(map[string]V)
		}
	}
	c.entries[key] = value
}

func (c *Cache[V]) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]V)
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
