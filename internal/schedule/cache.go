package schedule

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache stores derived integers such as daily capacity.
type Cache interface {
	Get(ctx context.Context, key string) (int, bool, error)
	Set(ctx context.Context, key string, value int, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
	// Incr atomically increments a counter that never expires.
	Incr(ctx context.Context, key string) (int64, error)
}

type cacheEntry struct {
	value     int
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. It is only correct when a single
// instance serves every schedule mutation.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return 0, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value int, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *MemoryCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	e.value++
	c.entries[key] = e
	return int64(e.value), nil
}
