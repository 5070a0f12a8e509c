// Package retry bounds how many times a failed operation may be retried,
// using an expiring key-value cache to count attempts.
package retry

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long an attempt counter lives when no TTL is given.
const DefaultTTL = 300 * time.Second

// Cache is the key-value store backing the counter.
type Cache interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Config holds retry settings.
type Config struct {
	MaxAttempts int           `yaml:"max_attempts"`
	TTL         time.Duration `yaml:"ttl"`
}

// Counter counts failed attempts per operation key.
type Counter struct {
	cache       Cache
	maxAttempts int
	ttl         time.Duration
}

// NewCounter creates a Counter. MaxAttempts below 1 is raised to 1.
func NewCounter(cache Cache, cfg Config) *Counter {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Counter{
		cache:       cache,
		maxAttempts: cfg.MaxAttempts,
		ttl:         cfg.TTL,
	}
}

// MaxAttempts returns the configured limit.
func (c *Counter) MaxAttempts() int {
	return c.maxAttempts
}

// RetryOperation records one more failed attempt of key and reports whether
// the caller may retry. A missing, non-numeric or non-positive counter counts
// as attempt 1, so the first failure is stored as 2. Once the stored count reaches the
// limit the key is removed and false is returned.
//
// The read and the write are separate round trips; two deliveries of the same
// message racing here can under-count.
func (c *Counter) RetryOperation(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	value, _, err := c.GetCacheByKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read retry attempts for %s: %w", key, err)
	}

	attempts := parseAttempts(value)

	if attempts >= c.maxAttempts {
		if err := c.DeleteCache(ctx, key); err != nil {
			return false, fmt.Errorf("failed to reset retry attempts for %s: %w", key, err)
		}
		return false, nil
	}

	if err := c.SetCache(ctx, key, strconv.Itoa(attempts+1), ttl); err != nil {
		return false, fmt.Errorf("failed to store retry attempts for %s: %w", key, err)
	}
	return true, nil
}

// GetCacheByKey returns the raw cached value.
func (c *Counter) GetCacheByKey(ctx context.Context, key string) (string, bool, error) {
	return c.cache.Get(ctx, key)
}

// SetCache stores value under key.
func (c *Counter) SetCache(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.cache.Set(ctx, key, value, ttl)
}

// DeleteCache removes key.
func (c *Counter) DeleteCache(ctx context.Context, key string) error {
	return c.cache.Del(ctx, key)
}

// parseAttempts reads a stored counter. Values that are not a positive number
// count as 1; values beyond math.MaxInt32 are clamped so they stay above any
// configured limit.
func parseAttempts(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || f < 1 {
		return 1
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
