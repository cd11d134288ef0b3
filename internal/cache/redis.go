package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON-encoded values in Redis so several server
// instances share one snapshot. Entries expire through Redis TTLs.
type RedisCache[T any] struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

var _ Cache[int] = (*RedisCache[int])(nil)

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisCache creates a cache whose keys live under prefix.
func NewRedisCache[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, prefix: prefix, ttl: ttl, timeout: 3 * time.Second}
}

func (c *RedisCache[T]) key(k string) string { return c.prefix + k }

// Get returns the cached value. Redis errors count as a miss so a cache
// outage falls through to the source.
func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Redis cache read failed", "component", "cache", "key", key, "error", err)
		}
		return zero, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.WarnContext(ctx, "Redis cache entry undecodable, dropping", "component", "cache", "key", key, "error", err)
		c.Delete(ctx, key)
		return zero, false
	}
	return out, true
}

// Set stores data with the cache TTL.
func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(ctx, "Redis cache encode failed", "component", "cache", "key", key, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache write failed", "component", "cache", "key", key, "error", err)
	}
}

// Delete removes key.
func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache delete failed", "component", "cache", "key", key, "error", err)
	}
}

// Size counts the keys under the cache prefix.
func (c *RedisCache[T]) Size(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache scan failed", "component", "cache", "error", err)
	}
	return n
}
