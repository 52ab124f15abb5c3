package layout

import (
	"sync"
	"sync/atomic"
)

type cacheKey struct {
	preset        string
	width, height int
}

// GeometryCache memoizes geometries by requested preset and terminal size.
// It is safe for concurrent use.
type GeometryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]Geometry
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewGeometryCache creates an empty cache.
func NewGeometryCache() *GeometryCache {
	return &GeometryCache{entries: make(map[cacheKey]Geometry)}
}

// Get returns a copy of the cached geometry.
func (c *GeometryCache) Get(name string, width, height int) (Geometry, bool) {
	c.mu.RLock()
	g, ok := c.entries[cacheKey{name, width, height}]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return Geometry{}, false
	}
	c.hits.Add(1)
	return g.Clone(), true
}

// Put stores a copy of g.
func (c *GeometryCache) Put(name string, width, height int, g Geometry) {
	c.mu.Lock()
	c.entries[cacheKey{name, width, height}] = g.Clone()
	c.mu.Unlock()
}

// Invalidate drops every entry.
func (c *GeometryCache) Invalidate() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *GeometryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation.
func (c *GeometryCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
