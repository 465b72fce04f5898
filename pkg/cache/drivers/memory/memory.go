// Package memory is an in-process cache driver backed by an expirable LRU.
package memory

import (
	"context"
	"slices"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/cache"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultSize = 10_000

var _ cache.Cache = (*Cache)(nil)

// Cache is safe for concurrent use. Entries expire after the TTL given to New
// and the least recently used entry is evicted once Size is reached.
type Cache struct {
	lru *expirable.LRU[string, []byte]
}

// New returns a cache holding at most size entries for ttl each. A size of
// zero uses DefaultSize.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	return slices.Clone(v), nil
}

func (c *Cache) Put(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, slices.Clone(value))
	return nil
}

func (c *Cache) Remove(_ context.Context, key string) ([]byte, error) {
	v, ok := c.lru.Peek(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	c.lru.Remove(key)
	return v, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return c.lru.Len() }
