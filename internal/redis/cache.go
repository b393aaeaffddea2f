package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// CapacityCache keeps derived schedule numbers in Redis so every API
// instance sees the same invalidations.
type CapacityCache struct {
	client *redis.Client
}

func NewCapacityCache(client *redis.Client) *CapacityCache {
	return &CapacityCache{client: client}
}

func (c *CapacityCache) Get(ctx context.Context, key string) (int, bool, error) {
	v, err := c.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (c *CapacityCache) Set(ctx context.Context, key string, value int, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *CapacityCache) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s*: %w", prefix, err)
	}

	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("delete %s*: %w", prefix, err)
		}
	}
	return nil
}

func (c *CapacityCache) Incr(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return v, nil
}
