// Package cache stores computed page summaries in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-eda/utils"
)

const keyPrefix = "loan-eda"

// RedisCache wraps redis.Client. A nil *RedisCache is valid and behaves as
// an always-empty cache, so callers need no branches when Redis is off.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *utils.Logger
}

// NewRedisCache connects to addr and returns nil when Redis cannot be
// reached; the server then computes every summary on demand.
func NewRedisCache(addr, password string, ttl time.Duration, logger *utils.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("[cache] Failed to connect to Redis at %s: %v", addr, err)
		_ = client.Close()
		return nil
	}

	logger.Info("[cache] Connected to Redis at %s (ttl %v)", addr, ttl)
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Key builds the cache key of one page summary. runID scopes entries to one
// table build, so a rebuild never serves stale summaries.
func Key(runID, page, filterKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, runID, page, filterKey)
}

// Get decodes the value at key into dest. It reports false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value at key with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
