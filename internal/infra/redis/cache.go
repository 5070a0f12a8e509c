package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Commander is the subset of go-redis commands used here. It is satisfied
// by *redis.Client, *redis.ClusterClient and redis.UniversalClient.
type Commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Cache is a string key-value store with per-key expiry.
type Cache struct {
	cmd Commander
}

// NewCache creates a Cache on top of a Redis client.
func NewCache(cmd Commander) *Cache {
	return &Cache{cmd: cmd}
}

// Get returns the value stored at key. A missing key is not an error.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s failed: %w", key, err)
	}
	return val, true, nil
}

// Set stores value at key for ttl. A ttl of zero keeps the key forever.
func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.cmd.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s failed: %w", key, err)
	}
	return nil
}

// Del removes key.
func (c *Cache) Del(ctx context.Context, key string) error {
	if err := c.cmd.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s failed: %w", key, err)
	}
	return nil
}
