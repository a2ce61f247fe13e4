package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"domus/config"
)

// RedisPageCache keeps pages in Redis without expiry.
type RedisPageCache struct {
	rc     *redis.Client
	prefix string
}

// NewRedisPageCache returns a cache on the Redis instance named by cfg. The
// connection is made lazily; use Ping to check it.
func NewRedisPageCache(cfg *config.CacheConfig) *RedisPageCache {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisPageCache{rc: rc, prefix: cfg.RedisPrefix}
}

func NewRedisPageCacheFromClient(rc *redis.Client, prefix string) *RedisPageCache {
	return &RedisPageCache{rc: rc, prefix: prefix}
}

func (c *RedisPageCache) Ping(ctx context.Context) error {
	return c.rc.Ping(ctx).Err()
}

func (c *RedisPageCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rc.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisPageCache) Put(ctx context.Context, key string, content []byte) error {
	return c.rc.Set(ctx, c.prefix+key, content, 0).Err()
}

func (c *RedisPageCache) Close() error {
	return c.rc.Close()
}
