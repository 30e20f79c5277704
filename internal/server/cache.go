package server

import (
	"sync"
	"sync/atomic"
	"time"
)

// SceneCache is a concurrent-safe LRU cache of encoded scenes with TTL
// expiration.
type SceneCache struct {
	mu         sync.Mutex
	entries    map[string]*sceneCacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64

	now func() time.Time
}

type sceneCacheEntry struct {
	contentType string
	data        []byte
	createdAt   time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewSceneCache creates a cache with the given capacity and TTL. A capacity
// below one disables caching.
func NewSceneCache(maxEntries int, ttl time.Duration) *SceneCache {
	return &SceneCache{
		entries:    make(map[string]*sceneCacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns a cached body and its content type. ok is false on miss or
// expiration.
func (c *SceneCache) Get(key string) (data []byte, contentType string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[key]
	if !found {
		c.misses.Add(1)
		return nil, "", false
	}
	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, "", false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.data, entry.contentType, true
}

// Put stores a body, evicting the oldest entries when at capacity.
func (c *SceneCache) Put(key, contentType string, data []byte) {
	if c.maxEntries < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &sceneCacheEntry{contentType: contentType, data: data, createdAt: c.now()}
	if _, ok := c.entries[key]; ok {
		c.entries[key] = entry
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Stats returns cache performance statistics.
func (c *SceneCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *SceneCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
