package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "blacklist:ip:"

// MaxBlacklistTTL caps how long a permanent entry stays cached before the
// store is consulted again.
const MaxBlacklistTTL = 24 * time.Hour

// RedisBlacklistCache keeps positive blacklist lookups in Redis.
type RedisBlacklistCache struct {
	client *redis.Client
}

// NewRedisBlacklistCache creates a cache on an existing client.
func NewRedisBlacklistCache(client *redis.Client) *RedisBlacklistCache {
	return &RedisBlacklistCache{client: client}
}

func blacklistKey(ip string) string {
	return blacklistKeyPrefix + ip
}

// Contains reports whether ip has a live cached entry.
func (c *RedisBlacklistCache) Contains(ctx context.Context, ip string) (bool, error) {
	n, err := c.client.Exists(ctx, blacklistKey(ip)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Add caches ip for ttl. A zero or negative ttl, or one above MaxBlacklistTTL,
// is stored with MaxBlacklistTTL.
func (c *RedisBlacklistCache) Add(ctx context.Context, ip string, ttl time.Duration) error {
	if ttl <= 0 || ttl > MaxBlacklistTTL {
		ttl = MaxBlacklistTTL
	}
	if err := c.client.Set(ctx, blacklistKey(ip), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Remove evicts ip.
func (c *RedisBlacklistCache) Remove(ctx context.Context, ip string) error {
	if err := c.client.Del(ctx, blacklistKey(ip)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
