package cache

import (
	"context"
	"time"
)

// layeredMemoryTTL bounds how long an L1 entry may lag behind Redis.
const layeredMemoryTTL = 30 * time.Second

// LayeredCache puts a process-local MemoryCache in front of Redis. Writes go
// through to Redis first; reads that miss memory and hit Redis repopulate
// the memory layer with a short TTL of their own.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
}

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		mem:   NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redis: redisCache,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	memTTL := expiration
	if memTTL <= 0 || memTTL > layeredMemoryTTL {
		memTTL = layeredMemoryTTL
	}
	_ = lc.mem.Set(ctx, key, value, memTTL)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := lc.redis.Get(ctx, key, dest); err != nil {
		return err
	}

	// repopulate memory with the value, never the caller's pointer
	if sp, ok := dest.(*string); ok {
		_ = lc.mem.Set(ctx, key, *sp, layeredMemoryTTL)
	}
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return lc.redis.MGet(ctx, keys...)
}

// Close releases the memory layer. The Redis connection is shared and owned
// by the app lifecycle, not the layered wrapper.
func (lc *LayeredCache) Close() error {
	return lc.mem.Close()
}
