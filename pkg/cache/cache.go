// Package cache defines the contract between realm cache handlers and a cache
// store. Drivers own expiry and concurrent-access safety.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned when a key is absent or has expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a byte-oriented key/value store with driver-enforced TTL.
type Cache interface {
	// Get returns the value stored under key or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Remove deletes key and returns the value it held, or ErrMiss.
	Remove(ctx context.Context, key string) ([]byte, error)
}

// Pinger is implemented by drivers backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
