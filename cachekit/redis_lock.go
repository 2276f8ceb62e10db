package cachekit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Stone1973/telldb"
)

// DistLock is a distributed lock over a Cache, grounded on SOP's
// adapters/redis/locker.go (SetNX-then-verify ownership) but trimmed to the
// single-key case: TellDB only ever needs to lock one shared resource at a
// time (the schema catalog during a DDL change, or the CommitManager's
// writer-set bookkeeping), never SOP's multi-key "lock this whole batch of
// B-tree nodes" case.
//
// One DistLock can be shared by many concurrent callers contending for the
// same or different keys: each Lock call stakes a fresh random token
// (unlike a fixed per-instance owner ID, which would let two unrelated
// Lock calls from the same DistLock instance both believe they hold a key
// only one of them actually acquired) and only Unlock calls that trace
// back to the specific Lock call that won release it.
type DistLock struct {
	cache Cache

	mu     sync.Mutex
	tokens map[string]string
}

// NewDistLock wraps cache.
func NewDistLock(cache Cache) *DistLock {
	return &DistLock{cache: cache, tokens: make(map[string]string)}
}

// Lock attempts to acquire key for duration using SETNX. On success, the
// winning token is remembered so a later Unlock(ctx, key) call on this
// DistLock releases exactly this acquisition, not a subsequent one.
func (d *DistLock) Lock(ctx context.Context, key string, duration time.Duration) (bool, error) {
	token := telldb.NewUUID().String()
	ok, err := d.cache.SetNX(ctx, key, token, duration)
	if err != nil {
		return false, telldb.NewError(telldb.TransportError, fmt.Errorf("distlock: setnx %q: %w", key, err), nil)
	}
	if !ok {
		return false, nil
	}

	d.mu.Lock()
	d.tokens[key] = token
	d.mu.Unlock()
	return true, nil
}

// Unlock releases key, but only if this DistLock is the current holder of
// record for it (it won a prior Lock(ctx, key, ...) call that has not
// since been released or lost to lease expiry). Calling Unlock for a key
// this DistLock never acquired, or already released, is a no-op.
func (d *DistLock) Unlock(ctx context.Context, key string) error {
	d.mu.Lock()
	token, held := d.tokens[key]
	if held {
		delete(d.tokens, key)
	}
	d.mu.Unlock()
	if !held {
		return nil
	}

	owner, found, err := d.cache.Get(ctx, key)
	if err != nil {
		return telldb.NewError(telldb.TransportError, fmt.Errorf("distlock: get %q: %w", key, err), nil)
	}
	if !found || owner != token {
		// Lease already expired (or was stolen after expiry); nothing of
		// ours remains to delete.
		return nil
	}
	if err := d.cache.Delete(ctx, key); err != nil {
		return telldb.NewError(telldb.TransportError, fmt.Errorf("distlock: del %q: %w", key, err), nil)
	}
	return nil
}

// IsLocked reports whether key is currently held by anyone, not just this
// DistLock.
func (d *DistLock) IsLocked(ctx context.Context, key string) (bool, error) {
	_, found, err := d.cache.Get(ctx, key)
	if err != nil {
		return false, telldb.NewError(telldb.TransportError, fmt.Errorf("distlock: get %q: %w", key, err), nil)
	}
	return found, nil
}
