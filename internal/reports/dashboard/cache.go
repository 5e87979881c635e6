package dashboard

import (
	"sync"
	"time"
)

// Cache is an in-memory TTL cache for computed aggregates
type Cache[V any] struct {
	data    map[string]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	stop    sync.Once

	// generation advances on every Delete and Clear
	generation uint64

	hits   int64
	misses int64
}

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewCache creates a cache whose entries live for ttl. Expired entries are
// swept every cleanupInterval until Stop is called.
func NewCache[V any](ttl, cleanupInterval time.Duration) *Cache[V] {
	c := &Cache[V]{
		data:    make(map[string]cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
		cleanup: time.NewTicker(cleanupInterval),
		done:    make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Get retrieves an unexpired value
func (c *Cache[V]) Get(key string) (V, bool) {
	value, ok, _ := c.lookup(key)
	return value, ok
}

// Set stores a value for the cache TTL
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{value: value, expiration: c.now().Add(c.ttl)}
}

// Delete removes a value
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.generation++
}

// Clear removes every value
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry[V])
	c.generation++
}

// GetOrSet returns the cached value for key, computing and storing it on a miss.
// Errors are not cached. A value is not stored if Delete or Clear ran while it
// was being computed, since it may predate the invalidation.
func (c *Cache[V]) GetOrSet(key string, compute func() (V, error)) (V, error) {
	value, ok, generation := c.lookup(key)
	if ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == generation {
		c.data[key] = cacheEntry[V]{value: value, expiration: c.now().Add(c.ttl)}
	}
	return value, nil
}

func (c *Cache[V]) lookup(key string) (V, bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok || c.now().After(entry.expiration) {
		c.misses++
		var zero V
		return zero, false, c.generation
	}
	c.hits++
	return entry.value, true, c.generation
}

// Stats returns hit and miss counters
func (c *Cache[V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{Size: len(c.data), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Stop stops the cleanup goroutine
func (c *Cache[V]) Stop() {
	c.stop.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}

func (c *Cache[V]) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}
