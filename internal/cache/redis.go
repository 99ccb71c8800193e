package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// keyPrefix namespaces every key this service writes.
const keyPrefix = "scalysis:"

// RedisCache implements Cache using Redis.
// Used as the Pro tier cache and as L2 in two-phase caching.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a new Redis cache and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client, e.g. a cluster client.
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, storeID string, key string) ([]byte, error) {
	if storeID == "" {
		return nil, ErrStoreRequired
	}

	fullKey := c.makeKey(storeID, key)
	val, err := c.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, storeID string, key string, value []byte, ttl time.Duration) error {
	if storeID == "" {
		return ErrStoreRequired
	}

	fullKey := c.makeKey(storeID, key)
	return c.client.Set(ctx, fullKey, value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, storeID string, key string) error {
	if storeID == "" {
		return ErrStoreRequired
	}

	fullKey := c.makeKey(storeID, key)
	return c.client.Del(ctx, fullKey).Err()
}

// GetCurve retrieves the store's cached curve.
func (c *RedisCache) GetCurve(ctx context.Context, storeID string) (*domain.CachedCurve, error) {
	return getCurve(ctx, c, storeID)
}

// SetCurve caches the store's curve.
func (c *RedisCache) SetCurve(ctx context.Context, storeID string, curve *domain.CachedCurve, ttl time.Duration) error {
	return setCurve(ctx, c, storeID, curve, ttl)
}

// InvalidateCurve drops the store's cached curve.
func (c *RedisCache) InvalidateCurve(ctx context.Context, storeID string) error {
	return c.Delete(ctx, storeID, curveKey)
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) makeKey(storeID, key string) string {
	return keyPrefix + storeID + ":" + key
}
