// Package cache is the L2 bean cache. Beans are stored as JSON property
// values under "bean:<BeanName>:<id>" in a memory or redis backend.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value, returning ErrCacheMiss when absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every value under the backend prefix
	Clear(ctx context.Context) error

	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL applies when Set is called without a ttl
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
	// SweepInterval is how often the memory backend removes expired items
	SweepInterval time.Duration
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    5 * time.Minute,
		Prefix:        "ebean:",
		SweepInterval: time.Minute,
	}
}

// ErrCacheMiss is returned when a key is not in the cache
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss reports whether err is a cache miss
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
