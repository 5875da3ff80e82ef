package cachemanager

import "time"

// CacheManager is a typed, TTL based key/value cache.
type CacheManager[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(keys ...string)
	Flush()
	Len() int
}
