package cache

// Package cache provides a TTL cache for tool results.
//
// Responsibilities:
//   - Cache successful tool invocations (avoid redundant backend calls)
//   - Expire entries after a configurable TTL
//   - Track hit/miss counts
//
// Cache Key Strategy:
//   - Tool name + serialized parameters → hash (fixed-size keys)
//   - Computed by the tool broker, not by callers
//
// Invalidation:
//   - TTL expiration (lazy on Get, plus background sweep)
//   - Manual Clear (reset endpoint, tests)
//
// Metrics data goes stale quickly, so the default TTL is short; caching
// can be disabled entirely via configuration.

import (
	"sync"
	"time"
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Cache defines the interface for tool result caching.
type Cache interface {
	// Get retrieves a cached value by key.
	Get(key string) (any, bool)

	// Set stores a value with the given TTL. Zero TTL means never expire.
	Set(key string, value any, ttl time.Duration)

	// Delete removes a key from the cache.
	Delete(key string)

	// Clear removes all entries.
	Clear()

	// GetStats returns cache statistics.
	GetStats() Stats

	// Close stops the background sweeper.
	Close() error
}

type item struct {
	value     any
	expiresAt time.Time // zero means never
}

// memoryCache implements Cache with a mutex-guarded map.
type memoryCache struct {
	mu     sync.RWMutex
	items  map[string]item
	hits   uint64
	misses uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an in-memory TTL cache with a background sweeper.
func New(sweepInterval time.Duration) Cache {
	c := &memoryCache{
		items:  make(map[string]item),
		stopCh: make(chan struct{}),
	}
	if sweepInterval > 0 {
		c.wg.Add(1)
		go c.sweeper(sweepInterval)
	}
	return c
}

func (c *memoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if ok && !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		c.Delete(key)
		ok = false
	}

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	return it.value, true
}

func (c *memoryCache) Set(key string, value any, ttl time.Duration) {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item{value: value, expiresAt: expires}
	c.mu.Unlock()
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]item)
	c.mu.Unlock()
}

func (c *memoryCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.items)}
}

func (c *memoryCache) Close() error {
	close(c.stopCh)
	c.wg.Wait()
	return nil
}

func (c *memoryCache) sweeper(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, it := range c.items {
				if !it.expiresAt.IsZero() && now.After(it.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
