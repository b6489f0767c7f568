package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryCache is an in-process cache with TTL support
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]item
	config Config
	cancel context.CancelFunc
}

type item struct {
	value      []byte
	expiration time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryCache creates a memory cache with the default configuration
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates a memory cache and starts its expiry sweep
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemoryCache{
		items:  make(map[string]item),
		config: config,
		cancel: cancel,
	}
	if config.SweepInterval > 0 {
		go mc.sweep(ctx, config.SweepInterval)
	}
	return mc
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullKey := m.config.Prefix + key

	m.mu.RLock()
	it, ok := m.items[fullKey]
	m.mu.RUnlock()

	if !ok || it.expired(time.Now()) {
		if ok {
			m.mu.Lock()
			delete(m.items, fullKey)
			m.mu.Unlock()
		}
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return it.value, nil
}

// Set stores a value. A negative ttl stores without expiry.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiration = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[m.config.Prefix+key] = it
	m.mu.Unlock()
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.items, m.config.Prefix+key)
	m.mu.Unlock()
	return nil
}

// Clear removes all values under the prefix
func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if strings.HasPrefix(k, m.config.Prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

// Exists checks if an unexpired key is present
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if IsCacheMiss(err) {
		return false, nil
	}
	return err == nil, err
}

// Len returns the number of stored items, including expired ones not yet swept
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the expiry sweep
func (m *MemoryCache) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *MemoryCache) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.removeExpired(now)
		}
	}
}

func (m *MemoryCache) removeExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, it := range m.items {
		if it.expired(now) {
			delete(m.items, k)
		}
	}
}
