// Package cache provides caching utilities for the model service.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/alfredjeanlab/modelbase/internal/model"
)

// LoadFunc fetches a model scheme by name from the backing store.
type LoadFunc func(ctx context.Context, name string) (*model.ModelScheme, error)

// ModelCache provides thread-safe LRU caching for model schemes keyed by
// model name. Concurrent misses for the same name share one load.
//
// Cached schemes are shared between callers and must not be mutated.
// A nil *ModelCache is valid and caches nothing.
type ModelCache struct {
	cache lruCache
	group singleflight.Group
	// gen is bumped by every Put and invalidation so that a load that raced
	// with one does not repopulate the cache with a stale scheme.
	gen atomic.Uint64
}

// lruCache is the part of lru.Cache and expirable.LRU the model cache uses.
type lruCache interface {
	Add(name string, m *model.ModelScheme) bool
	Get(name string) (*model.ModelScheme, bool)
	Remove(name string) bool
	Purge()
	Len() int
}

// NewModelCache creates a cache of at most maxItems schemes. With a positive
// ttl, entries expire that long after they were added, which bounds how stale
// a scheme written by another process can get.
func NewModelCache(maxItems int, ttl time.Duration) (*ModelCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("model cache size must be positive, got %d", maxItems)
	}
	if ttl > 0 {
		return &ModelCache{cache: expirable.NewLRU[string, *model.ModelScheme](maxItems, nil, ttl)}, nil
	}
	c, err := lru.New[string, *model.ModelScheme](maxItems)
	if err != nil {
		return nil, err
	}
	return &ModelCache{cache: c}, nil
}

// Get returns the scheme for name, calling load on a miss.
// Errors from load are returned as is and never cached.
func (c *ModelCache) Get(ctx context.Context, name string, load LoadFunc) (*model.ModelScheme, error) {
	if c == nil {
		return load(ctx, name)
	}
	if m, ok := c.cache.Get(name); ok {
		return m, nil
	}
	gen := c.gen.Load()
	v, err, _ := c.group.Do(name, func() (any, error) {
		m, err := load(ctx, name)
		if err != nil {
			return nil, err
		}
		if c.gen.Load() == gen {
			c.cache.Add(name, m)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ModelScheme), nil
}

// Put stores a scheme the caller just wrote. Loads still in flight for the
// same name are kept from overwriting it.
func (c *ModelCache) Put(m *model.ModelScheme) {
	if c == nil {
		return
	}
	c.gen.Add(1)
	c.cache.Add(m.Name(), m)
}

// Invalidate drops the cached scheme for name.
func (c *ModelCache) Invalidate(name string) {
	if c == nil {
		return
	}
	c.gen.Add(1)
	c.cache.Remove(name)
}

// Purge empties the cache.
func (c *ModelCache) Purge() {
	if c == nil {
		return
	}
	c.gen.Add(1)
	c.cache.Purge()
}

// Len returns the current number of items in the cache.
func (c *ModelCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
