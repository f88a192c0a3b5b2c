// Package cache keeps recently read remote progress records in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studytrail/internal/config"
)

// ErrCacheMiss is returned when the requested key is not cached
var ErrCacheMiss = errors.New("cache: key not found")

const progressPrefix = "studytrail:progress:"

// ProgressCache caches serialized progress records by username
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient connects to Redis and checks the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewProgressCache creates a cache whose entries expire after ttl
func NewProgressCache(client *redis.Client, ttl time.Duration) *ProgressCache {
	return &ProgressCache{client: client, ttl: ttl}
}

// Get returns the cached record for username, or ErrCacheMiss
func (c *ProgressCache) Get(ctx context.Context, username string) ([]byte, error) {
	data, err := c.client.Get(ctx, progressKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return data, nil
}

// Set caches the record for username
func (c *ProgressCache) Set(ctx context.Context, username string, payload []byte) error {
	if err := c.client.Set(ctx, progressKey(username), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// SetNX caches the record for username only when nothing is cached yet and
// reports whether it was stored
func (c *ProgressCache) SetNX(ctx context.Context, username string, payload []byte) (bool, error) {
	stored, err := c.client.SetNX(ctx, progressKey(username), payload, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache setnx: %w", err)
	}
	return stored, nil
}

// Invalidate drops the cached record for username
func (c *ProgressCache) Invalidate(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, progressKey(username)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func progressKey(username string) string {
	return progressPrefix + username
}
