package cache

import (
	"sync"
	"time"
)

// TTLCache is an in-memory cache with per-entry expiry and LRU eviction
// once maxEntries is reached
type TTLCache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry[V]
	maxEntries int
	stats      Stats
	now        func() time.Time
}

type cacheEntry[V any] struct {
	value    V
	expires  time.Time
	accessed time.Time
}

// Stats are cumulative counters since the last Clear
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// HitRatio returns hits over lookups, zero before the first lookup
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// NewTTLCache creates a new TTL cache; maxEntries <= 0 means unbounded
func NewTTLCache[V any](maxEntries int) *TTLCache[V] {
	return &TTLCache[V]{
		entries:    make(map[string]*cacheEntry[V]),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetClock replaces the time source (for testing)
func (c *TTLCache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get retrieves a value if present and not expired. Expired entries are
// dropped on read.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return zero, false
	}
	now := c.now()
	if !now.Before(entry.expires) {
		delete(c.entries, key)
		c.stats.Misses++
		return zero, false
	}

	entry.accessed = now
	c.stats.Hits++
	return entry.value, true
}

// Set stores a value with TTL
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	now := c.now()
	c.entries[key] = &cacheEntry[V]{value: value, expires: now.Add(ttl), accessed: now}
}

// Delete removes one key
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries and resets statistics
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry[V])
	c.stats = Stats{}
}

// Stats returns cache performance statistics
func (c *TTLCache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// evictLRU removes the least recently used entry (caller must hold write lock)
func (c *TTLCache[V]) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessed.Before(oldest) {
			oldestKey, oldest = key, entry.accessed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}
