package cachekit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache abstracts the handful of Redis commands DistLock, L2Cache, and
// commitmgr.redisCommitManager need, grounded on SOP's own Cache interfaces
// (in_red_ck/redis/redis.go's Cache, backed in production by a real client
// and in tests by common/mocks/mock_redis.go's map-backed fake): SOP never
// lets its business logic talk to *redis.Client directly for exactly this
// reason. cachekit/testcache provides the fake counterpart here.
type Cache interface {
	// Get returns key's value. found is false, with an empty value and a
	// nil error, if key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set writes key unconditionally. expiration <= 0 means no expiry.
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	// SetNX writes key only if absent, returning whether it claimed it.
	SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Incr atomically increments key (treated as absent-is-zero) and
	// returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// SAdd adds member to the set at key.
	SAdd(ctx context.Context, key, member string) error
	// SRem removes member from the set at key.
	SRem(ctx context.Context, key, member string) error
	// SMembers returns every member of the set at key.
	SMembers(ctx context.Context, key string) ([]string, error)
}

// redisCache adapts a *redis.Client to Cache.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already-configured go-redis client as a Cache.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

// NewRedisClient dials addr (with optional password/db) and returns it as a
// Cache, the constructor most callers use instead of building a
// *redis.Client and wrapping it themselves.
func NewRedisClient(addr, password string, db int) Cache {
	return NewRedisCache(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *redisCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *redisCache) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, expiration).Result()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *redisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *redisCache) SAdd(ctx context.Context, key, member string) error {
	return c.client.SAdd(ctx, key, member).Err()
}

func (c *redisCache) SRem(ctx context.Context, key, member string) error {
	return c.client.SRem(ctx, key, member).Err()
}

func (c *redisCache) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.client.SMembers(ctx, key).Result()
}
