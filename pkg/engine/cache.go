package engine

import (
	"sync"

	"github.com/yourusername/salvo/internal/grid"
	"github.com/yourusername/salvo/internal/gridcode"
)

// DefaultCacheSize is the density cache size of the default configuration.
const DefaultCacheSize = 1 << 12

// densityEntry stores one cached unskewed density map
type densityEntry struct {
	key    string
	values []float64
}

// cacheNode holds primary and secondary entries for two-way associative cache
type cacheNode struct {
	primary   densityEntry
	secondary densityEntry
}

// DensityCache memoises unskewed density maps keyed by the Miss layout of
// a grid. The skew pass is applied by the caller on a copy, so cached
// values are never mutated and the cache may be shared between games and
// Monte Carlo workers.
//
// A cache serves one board size and fleet; neither is part of the key. The
// first engine built on a cache binds it and later engines share it only
// when both match.
type DensityCache struct {
	entries  []cacheNode
	size     uint32
	hashMask uint32

	boardSize int
	fleet     Fleet

	// Statistics
	lookups uint64
	hits    uint64
	adds    uint64

	mu sync.RWMutex
}

// NewDensityCache creates a cache with the given size.
// Size will be adjusted to the nearest power of 2 (minimum 2).
func NewDensityCache(size uint32) *DensityCache {
	if size > 1<<24 {
		size = 1 << 24
	}
	p := uint32(2)
	for p < size {
		p <<= 1
	}
	size = p

	return &DensityCache{
		entries:  make([]cacheNode, size/2),
		size:     size,
		hashMask: (size / 2) - 1,
	}
}

// bind ties the cache to a board size and fleet. It reports false when the
// cache is already bound to a different pair.
func (c *DensityCache) bind(boardSize int, fleet Fleet) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fleet == nil {
		c.boardSize = boardSize
		c.fleet = fleet.Clone()
		return true
	}
	if c.boardSize != boardSize || len(c.fleet) != len(fleet) {
		return false
	}
	for i := range fleet {
		if c.fleet[i] != fleet[i] {
			return false
		}
	}
	return true
}

// Size returns the cache capacity.
func (c *DensityCache) Size() uint32 { return c.size }

// Flush clears all entries from the cache
func (c *DensityCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		c.entries[i] = cacheNode{}
	}
	c.lookups = 0
	c.hits = 0
	c.adds = 0
}

// hash computes the slot for a key (FNV-1a)
func (c *DensityCache) hash(key string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return h & c.hashMask
}

// Lookup returns a copy of the cached values for key.
func (c *DensityCache) Lookup(key string) ([]float64, bool) {
	slot := c.hash(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups++
	node := &c.entries[slot]

	if node.primary.values != nil && node.primary.key == key {
		c.hits++
		return append([]float64(nil), node.primary.values...), true
	}
	if node.secondary.values != nil && node.secondary.key == key {
		c.hits++
		node.primary, node.secondary = node.secondary, node.primary
		return append([]float64(nil), node.primary.values...), true
	}
	return nil, false
}

// Add stores a copy of values under key
func (c *DensityCache) Add(key string, values []float64) {
	slot := c.hash(key)
	entry := densityEntry{key: key, values: append([]float64(nil), values...)}

	c.mu.Lock()
	defer c.mu.Unlock()

	node := &c.entries[slot]
	node.secondary = node.primary
	node.primary = entry
	c.adds++
}

// Density returns the unskewed density map for g, computing and caching it
// on a miss. The returned map is owned by the caller.
func (c *DensityCache) Density(g *grid.Grid, fleet Fleet) DensityMap {
	key := gridcode.MissKey(g)
	if v, ok := c.Lookup(key); ok {
		return DensityMap{Size: g.Size(), Values: v}
	}
	d := ComputeDensity(g, fleet)
	c.Add(key, d.Values)
	return d
}

// Stats returns cache statistics
func (c *DensityCache) Stats() (lookups, hits, adds uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookups, c.hits, c.adds
}

// HitRate returns the cache hit rate as a percentage
func (c *DensityCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lookups == 0 {
		return 0
	}
	return float64(c.hits) / float64(c.lookups) * 100
}
