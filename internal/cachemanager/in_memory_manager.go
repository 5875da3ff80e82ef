// Package cachemanager wraps go-cache with typed accessors.
package cachemanager

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/omniedit/internal/log"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// NewInMemoryCacheManager creates an in-memory cache. Zero durations fall
// back to the package defaults.
func NewInMemoryCacheManager[V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[V] {
	if defaultExpiration <= 0 {
		defaultExpiration = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &InMemoryCacheManager[V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// InMemoryCacheManager is the go-cache backed CacheManager.
type InMemoryCacheManager[V any] struct {
	useCase string
	cache   *gocache.Cache
}

var _ CacheManager[int] = (*InMemoryCacheManager[int])(nil)

// Get retrieves an item from the cache by its key
func (c *InMemoryCacheManager[V]) Get(key string) (V, bool) {
	var zeroValue V

	value, found := c.cache.Get(key)
	if !found {
		return zeroValue, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)
		return zeroValue, false
	}

	log.Debug(log.CatCache, "cache hit", "cache", c.useCase, "key", key)
	return v, true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *InMemoryCacheManager[V]) Set(key string, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

func (c *InMemoryCacheManager[V]) Delete(keys ...string) {
	for _, key := range keys {
		c.cache.Delete(key)
	}
}

func (c *InMemoryCacheManager[V]) Flush() {
	c.cache.Flush()
}

// Len counts items, including expired ones not yet cleaned up.
func (c *InMemoryCacheManager[V]) Len() int {
	return c.cache.ItemCount()
}
