package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps values in process memory with per-key expiry
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if val, found := c.cache.Get(key); found {
		data := val.([]byte)
		out := make([]byte, len(data))
		copy(out, data)
		return out, true, nil
	}
	return nil, false, nil
}

// Set stores a copy of value with the given TTL (0 = default TTL)
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	data := make([]byte, len(value))
	copy(data, value)
	c.cache.Set(key, data, ttl)
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Clear removes all values from the cache
func (c *MemoryCache) Clear(context.Context) error {
	c.cache.Flush()
	return nil
}

// Len returns the number of unexpired items
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
