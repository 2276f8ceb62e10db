// Package testcache is an in-memory stand-in for cachekit.Cache, grounded
// on SOP's common/mocks/mock_redis.go: a plain map-backed fake behind the
// same interface a real Redis client satisfies, so commitmgr, DistLock, and
// L2Cache exercise their real logic in tests without a live Redis instance.
// It lives in its own regular (non-_test.go) package, the same reason
// btreebackend/testindex does: Go cannot import one package's _test.go file
// from another package's tests, and this fake is shared by cachekit's own
// tests and commitmgr's.
package testcache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Stone1973/telldb/cachekit"
)

// Cache is a mutex-guarded, map-backed fake satisfying cachekit.Cache.
// Expiration is accepted but never enforced, matching the mock's own
// "ignore TTL" behavior for GetEx in mock_redis.go.
type Cache struct {
	mu      sync.Mutex
	strings map[string]string
	sets    map[string]map[string]struct{}
}

var _ cachekit.Cache = (*Cache)(nil)

// New returns an empty fake cache.
func New() *Cache {
	return &Cache{
		strings: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.strings[key]
	return v, ok, nil
}

func (c *Cache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strings[key] = value
	return nil
}

func (c *Cache) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.strings[key]; ok {
		return false, nil
	}
	c.strings[key] = value
	return true, nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.strings, key)
	delete(c.sets, key)
	return nil
}

func (c *Cache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var v int64
	if s, ok := c.strings[key]; ok {
		v, _ = strconv.ParseInt(s, 10, 64)
	}
	v++
	c.strings[key] = strconv.FormatInt(v, 10)
	return v, nil
}

func (c *Cache) SAdd(_ context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (c *Cache) SRem(_ context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (c *Cache) SMembers(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.sets[key]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members, nil
}
