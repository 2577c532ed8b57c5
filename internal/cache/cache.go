// Package cache provides a small read-through cache for the global unread
// count the client recomputes on every refresh. Chat page counts are not
// cached. Redis is the primary backend; an in-memory map takes over when
// Redis is unreachable so the service degrades rather than fails.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds staleness for entries that miss an invalidation (for
// example when a process dies between a write and the invalidate call).
const DefaultTTL = 60 * time.Second

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = fmt.Errorf("cache miss")

// Service is the interface both cache implementations satisfy.
type Service interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// UnreadKey is the cache key for a user's global unread count.
func UnreadKey(userID int64) string {
	return fmt.Sprintf("unread:%d", userID)
}

// ---------------------------------------------------------------------------
// In-memory implementation (fallback)
// ---------------------------------------------------------------------------

// MemoryCache is the fallback used when Redis is unavailable.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
}

type memoryEntry struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.RLock()
	entry, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiration) {
		if ok {
			c.mu.Lock()
			delete(c.store, key)
			c.mu.Unlock()
		}
		return ErrCacheMiss
	}
	return json.Unmarshal(entry.value, dest)
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.store[key] = memoryEntry{value: data, expiration: time.Now().Add(expiration)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.store, key)
	}
	c.mu.Unlock()
	return nil
}

// Sweep drops expired entries. Redis expires keys itself; the memory cache
// relies on a periodic sweep to keep the map from growing without bound.
func (c *MemoryCache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.store {
		if now.After(entry.expiration) {
			delete(c.store, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Close() error {
	return nil
}

// ---------------------------------------------------------------------------
// Redis implementation (primary)
// ---------------------------------------------------------------------------

// RedisCache stores entries in Redis with per-key TTLs.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already-pinged Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
