// Package cache wraps ristretto with typed values and collapsed fetches.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// Config holds runtime configuration for a cache.
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

// Cache is an in-memory TTL cache. Every entry costs 1, so MaxCost bounds
// the number of entries.
type Cache[V any] struct {
	store *ristretto.Cache[string, V]
	group singleflight.Group
	ttl   time.Duration
}

// New creates a cache. Zero sizes fall back to small defaults.
func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 10_000
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 1_000
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("cache ttl must be non-negative")
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &Cache[V]{store: store, ttl: cfg.TTL}, nil
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Set stores value and waits until it is visible to Get.
func (c *Cache[V]) Set(key string, value V) bool {
	ok := c.store.SetWithTTL(key, value, 1, c.ttl)
	c.store.Wait()
	return ok
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.store.Del(key)
}

// GetOrFetch returns the cached value or runs fetch once per key across
// concurrent callers, caching its result on success.
func (c *Cache[V]) GetOrFetch(key string, fetch func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return val.(V), nil
}

// Close releases cache resources.
func (c *Cache[V]) Close() {
	c.store.Close()
}
