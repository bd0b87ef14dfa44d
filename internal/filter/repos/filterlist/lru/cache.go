package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
)

// DefaultSize is the decision cache capacity used by the daemon.
const DefaultSize = 512

// newLRU is swapped in tests to exercise constructor failures.
var newLRU = func(size int, onEvict func(domain.CacheKey, bool)) (*lru.Cache[domain.CacheKey, bool], error) {
	return lru.NewWithEvict(size, onEvict)
}

// Cache is an LRU-backed decision cache. The underlying cache is internally
// locked; counters are atomic. A Cache built with size <= 0 is disabled: it
// always misses and tracks no metrics.
type Cache struct {
	lru       *lru.Cache[domain.CacheKey, bool]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a Cache with the given capacity. If size <= 0, the returned
// cache is disabled.
func New(size int) (*Cache, error) {
	if size <= 0 {
		return &Cache{}, nil
	}

	c := &Cache{capacity: size}
	// Evictions include Purge-induced ones.
	cache, err := newLRU(size, func(domain.CacheKey, bool) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return c, nil
}

// Get looks up a decision. A hit refreshes the entry's recency.
func (c *Cache) Get(key domain.CacheKey) (bool, bool) {
	if c.lru == nil {
		return false, false
	}
	if val, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return val, true
	}
	c.misses.Add(1)
	return false, false
}

// Put stores a decision, moving an existing key to most-recently-used.
func (c *Cache) Put(key domain.CacheKey, blocked bool) {
	if c.lru != nil {
		c.lru.Add(key, blocked)
	}
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *Cache) Purge() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

// Stats returns cumulative counters and current occupancy.
func (c *Cache) Stats() filterlist.CacheStats {
	return filterlist.CacheStats{
		Capacity:  c.capacity,
		Size:      c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
