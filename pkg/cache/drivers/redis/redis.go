// Package redis is a distributed cache driver backed by go-redis.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/cache"
	goredis "github.com/redis/go-redis/v9"
)

var (
	_ cache.Cache  = (*Cache)(nil)
	_ cache.Pinger = (*Cache)(nil)
)

// Cache stores every key under Prefix with the same TTL.
type Cache struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New wraps an existing client. A zero ttl stores entries without expiry,
// which should only be used for authorization info.
func New(client goredis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	return v, err
}

func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

// Remove uses GETDEL so the read and delete are a single round trip.
func (c *Cache) Remove(ctx context.Context, key string) ([]byte, error) {
	v, err := c.client.GetDel(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	return v, err
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
