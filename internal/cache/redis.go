// Package cache provides a small Redis wrapper used for hot read paths such
// as the rank threshold table. All callers treat a nil cache or a Redis
// failure as a miss and fall back to the database.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection options. Only Addr is mandatory.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache wraps a go-redis client with the handful of operations the
// engine needs.
type RedisCache struct {
	client *redis.Client
}

// New initialises a Redis client from config and verifies connectivity.
func New(ctx context.Context, cfg Config) (*RedisCache, error) {
	opts := &redis.Options{Addr: cfg.Addr}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	cache := &RedisCache{client: redis.NewClient(opts)}
	if err := cache.client.Ping(ctx).Err(); err != nil {
		_ = cache.client.Close()
		return nil, err
	}
	return cache, nil
}

// NewFromClient wraps an existing client, primarily for tests with miniredis.
func NewFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached value for key, or ("", false) on a miss or error.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || err != nil {
		return "", false
	}
	return value, true
}

// Set stores value under key with the provided TTL. Errors are swallowed:
// the cache is advisory.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, key, value, ttl).Err()
}

// Del removes a key, used to invalidate after writes.
func (c *RedisCache) Del(ctx context.Context, key string) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, key).Err()
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
