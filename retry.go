package telldb

import (
	"context"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to 5 retries. If retries are
// exhausted, gaveUpTask is invoked (when not nil) and the final error is
// returned.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(1 * time.Millisecond)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), task); err != nil {
		log.Warn("retry exhausted", "error", err)
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether err represents a transient, retryable
// condition. Object-existence and version-conflict errors are retryable by
// design (the B-link tree drives its own retry loop on them; TableCache
// write-back does not retry and reports them as Conflict); context
// cancellation and terminal transaction states are not.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, AlreadyFinished) {
		return false
	}
	if Is(err, ObjectExists) || Is(err, WrongVersion) {
		return true
	}
	return Is(err, TransportError)
}
