package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores lookup results as strings.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
}

// RedisCache is a Cache on a Redis server.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache connects lazily to addr; keys are stored under prefix.
func NewRedisCache(addr, password string, db int, prefix string) *RedisCache {
	return &RedisCache{
		rdb:    redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		prefix: prefix,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (c *RedisCache) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, val, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
