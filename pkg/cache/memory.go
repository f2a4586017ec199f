package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    interface{}
	expireAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryCache implements Service in process memory with LRU eviction. It is
// the L1 of LayeredCache; entries without an expiration fall back to a
// bounded retention so the map cannot pin stale data for days.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryEntry
	access  map[string]time.Time
	maxSize int
	stopCh  chan struct{}
	once    sync.Once
}

const memoryDefaultRetention = time.Hour

// NewMemoryCache creates an in-memory cache and starts its cleanup loop.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryEntry),
		access:  make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		stopCh:  make(chan struct{}),
	}

	go mc.cleanupLoop(cfg.CleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.data) >= mc.maxSize {
		mc.evictOldestLocked()
	}

	if expiration <= 0 {
		expiration = memoryDefaultRetention
	}
	now := time.Now()
	mc.data[key] = &memoryEntry{value: value, expireAt: now.Add(expiration)}
	mc.access[key] = now
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.data[key]
	if !ok {
		return ErrCacheMiss
	}
	if entry.expired(time.Now()) {
		delete(mc.data, key)
		delete(mc.access, key)
		return ErrCacheMiss
	}
	mc.access[key] = time.Now()

	switch d := dest.(type) {
	case *string:
		if s, ok := entry.value.(string); ok {
			*d = s
			return nil
		}
	case *interface{}:
		*d = entry.value
		return nil
	}
	// a typed dest that does not match the stored value reads as a miss
	return ErrCacheMiss
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	results := make(map[string]string)
	for _, key := range keys {
		if entry, ok := mc.data[key]; ok && !entry.expired(now) {
			if s, ok := entry.value.(string); ok {
				results[key] = s
			}
		}
	}
	return results, nil
}

func (mc *MemoryCache) evictOldestLocked() {
	var oldestKey string
	oldestAt := time.Now()
	for key, at := range mc.access {
		if at.Before(oldestAt) {
			oldestAt = at
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}

func (mc *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopCh:
			return
		case <-ticker.C:
		}

		now := time.Now()
		mc.mu.Lock()
		for key, entry := range mc.data {
			if entry.expired(now) {
				delete(mc.data, key)
				delete(mc.access, key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the cleanup loop. Safe to call more than once.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stopCh) })
	return nil
}
