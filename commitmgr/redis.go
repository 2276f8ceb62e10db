package commitmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/cachekit"
)

// Config configures the Redis connection, grounded on SOP's
// RedisCacheConfig (config.go).
type Config struct {
	Address  string
	Password string
	DB       int
}

const (
	versionKey       = "telldb:commitmgr:version"
	inFlightKey      = "telldb:commitmgr:inflight"
	writerSetLockKey = "telldb:commitmgr:lock"
	lockLease        = 2 * time.Second
)

// redisCommitManager implements CommitManager against Redis: NewSnapshot
// does an INCR for the monotonic version and an SADD to register the
// writer as in flight, grounded on SOP's cache/redis.go client
// construction and lock-key formatting helpers. The read-then-modify
// sequence over the writer set (SMembers, then SAdd/SRem) is not atomic on
// its own, so both NewSnapshot and Complete serialize through lock, the
// same cachekit.DistLock the schema catalog uses for its own DDL section.
type redisCommitManager struct {
	cache cachekit.Cache
	lock  *cachekit.DistLock
}

// NewRedisCommitManager dials Redis per cfg.
func NewRedisCommitManager(cfg Config) *redisCommitManager {
	return NewFromCache(cachekit.NewRedisClient(cfg.Address, cfg.Password, cfg.DB))
}

// NewFromCache wraps an already-configured Cache, e.g. one shared with
// cachekit.L2Cache.
func NewFromCache(cache cachekit.Cache) *redisCommitManager {
	return &redisCommitManager{
		cache: cache,
		lock:  cachekit.NewDistLock(cache),
	}
}

// withWriterSetLock runs fn holding the writer-set lock, retrying
// acquisition with Fibonacci backoff via telldb.Retry: the lock is held only
// for the brief SMembers/Incr/SAdd or SRem section below, so contention is
// expected to clear within a handful of retries.
func (m *redisCommitManager) withWriterSetLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return telldb.Retry(ctx, func(ctx context.Context) error {
		ok, err := m.lock.Lock(ctx, writerSetLockKey, lockLease)
		if err != nil {
			return retry.RetryableError(err)
		}
		if !ok {
			return retry.RetryableError(telldb.NewError(telldb.TransportError, fmt.Errorf("commitmgr: writer-set lock held"), nil))
		}
		defer m.lock.Unlock(ctx, writerSetLockKey)
		return fn(ctx)
	}, nil)
}

func (m *redisCommitManager) NewSnapshot(ctx context.Context, writer telldb.UUID) (telldb.Snapshot, error) {
	var snap telldb.Snapshot
	err := m.withWriterSetLock(ctx, func(ctx context.Context) error {
		members, err := m.cache.SMembers(ctx, inFlightKey)
		if err != nil {
			return telldb.NewError(telldb.TransportError, fmt.Errorf("commitmgr: smembers: %w", err), nil)
		}
		inFlight := make(map[telldb.UUID]struct{}, len(members))
		for _, member := range members {
			id, err := telldb.ParseUUID(member)
			if err != nil {
				continue
			}
			inFlight[id] = struct{}{}
		}

		version, err := m.cache.Incr(ctx, versionKey)
		if err != nil {
			return telldb.NewError(telldb.TransportError, fmt.Errorf("commitmgr: incr: %w", err), nil)
		}

		if err := m.cache.SAdd(ctx, inFlightKey, writer.String()); err != nil {
			return telldb.NewError(telldb.TransportError, fmt.Errorf("commitmgr: sadd: %w", err), nil)
		}

		snap = telldb.Snapshot{Version: uint64(version), InFlightWriters: inFlight}
		return nil
	})
	if err != nil {
		return telldb.Snapshot{}, err
	}
	return snap, nil
}

// Complete removes writer from the in-flight set. Called from both commit
// and rollback per spec.md §9's preserved source behavior — the manager
// never distinguishes why a snapshot concluded, only that it did.
func (m *redisCommitManager) Complete(ctx context.Context, _ telldb.Snapshot, writer telldb.UUID) error {
	return m.withWriterSetLock(ctx, func(ctx context.Context) error {
		if err := m.cache.SRem(ctx, inFlightKey, writer.String()); err != nil {
			return telldb.NewError(telldb.TransportError, fmt.Errorf("commitmgr: srem: %w", err), nil)
		}
		return nil
	})
}
