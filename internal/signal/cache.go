package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache defaults.
const (
	DefaultCacheTTL     = 60 * time.Second
	DefaultCacheMaxSize = 10000
)

// cacheEntry holds one detection result with its access frequency.
type cacheEntry struct {
	signals     []Signal
	timestamp   time.Time
	accessCount int64
}

// Cache is a bounded TTL+frequency cache mapping (path, content fingerprint)
// keys to detected signals. Eviction removes the entry with the lowest
// accessCount when full - frequency-based, deliberately not LRU: a hot entry
// survives even if it was inserted long before a cold one.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int

	hits      int64
	misses    int64
	evictions int64
}

// NewCache creates a cache with the given TTL and capacity. Zero values get
// defaults.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// CacheKey derives the cache key for a path and content: the path joined with
// the first 16 hex chars of the content's SHA-256 fingerprint.
func CacheKey(path, content string) string {
	sum := sha256.Sum256([]byte(content))
	return path + ":" + hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached signals for key and whether a live entry exists.
// A stored empty result is still a hit; presence and emptiness are distinct.
// An entry older than the TTL counts as a miss and is deleted on read. Every
// hit increments the entry's access count.
func (c *Cache) Get(key string) ([]Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Since(e.timestamp) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.accessCount++
	c.hits++
	return e.signals, true
}

// Set stores signals under key. When at capacity and the key is new, the
// single entry with the lowest access count is evicted first.
func (c *Cache) Set(key string, signals []Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictColdest()
	}
	c.entries[key] = &cacheEntry{
		signals:   signals,
		timestamp: time.Now(),
	}
}

// evictColdest removes the entry with the lowest access count.
// Caller must hold c.mu.
func (c *Cache) evictColdest() {
	var coldKey string
	coldCount := int64(-1)
	for k, e := range c.entries {
		if coldCount < 0 || e.accessCount < coldCount {
			coldKey = k
			coldCount = e.accessCount
		}
	}
	if coldKey != "" {
		delete(c.entries, coldKey)
		c.evictions++
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats returns current cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:      len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
