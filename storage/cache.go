package storage

import (
	"context"
	"fmt"
	"sync"

	"domus/config"
)

// PageCache stores raw page bytes by canonical URL path. There is no eviction
// and no TTL; a Put for an existing key overwrites it.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, content []byte) error
}

// MemoryPageCache is a process-local PageCache.
type MemoryPageCache struct {
	mu    sync.RWMutex
	pages map[string][]byte
}

// NewMemoryPageCache returns an empty in-process cache.
func NewMemoryPageCache() *MemoryPageCache {
	return &MemoryPageCache{pages: make(map[string][]byte)}
}

func (c *MemoryPageCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.pages[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), content...), true, nil
}

func (c *MemoryPageCache) Put(_ context.Context, key string, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = append([]byte(nil), content...)
	return nil
}

func (c *MemoryPageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// OpenPageCache builds the cache selected by cfg.Backend. The returned close
// func releases the underlying connection.
func OpenPageCache(ctx context.Context, cfg *config.CacheConfig) (PageCache, func() error, error) {
	switch cfg.Backend {
	case "", "sqlite":
		c, err := NewSQLitePageCache(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite page cache: %w", err)
		}
		return c, c.Close, nil
	case "redis":
		c := NewRedisPageCache(cfg)
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return c, c.Close, nil
	case "memory":
		return NewMemoryPageCache(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
