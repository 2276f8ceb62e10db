package cachekit

import (
	"context"
	"time"
)

// L2Cache is a Cache-backed distributed cache for hot tuples, grounded on
// SOP's cache/redis.go Connection.Get/Set pair, narrowed to raw bytes:
// TellDB's callers already hold a Tuple's serialized form (a store record's
// Fields), so there is no struct to JSON-marshal the way SOP's
// SetStruct/GetStruct do for arbitrary values.
//
// L2Cache is purely a performance layer. TableCache never trusts an L2Cache
// hit over a store read at commit time; a miss or a transport error here
// degrades to a store fetch, never a correctness failure.
type L2Cache struct {
	cache Cache
	ttl   time.Duration
}

// NewL2Cache wraps cache. Entries expire after ttl; ttl <= 0 means no
// expiration.
func NewL2Cache(cache Cache, ttl time.Duration) *L2Cache {
	return &L2Cache{cache: cache, ttl: ttl}
}

// Get returns the cached bytes for key, and false if absent or on any
// cache error (callers treat both identically: fall through to the store).
func (c *L2Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, found, err := c.cache.Get(ctx, key)
	if err != nil || !found {
		return nil, false
	}
	return []byte(v), true
}

// Set caches value under key. Errors are not fatal to the caller — see the
// L2Cache doc comment — so Set's error is informational only.
func (c *L2Cache) Set(ctx context.Context, key string, value []byte) error {
	return c.cache.Set(ctx, key, string(value), c.ttl)
}

// Delete evicts key, used when a write-back changes or removes a row that
// might be cached.
func (c *L2Cache) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}
