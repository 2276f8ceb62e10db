package telldb

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskRunner bounds a set of concurrent tasks launched during commit
// write-back (each table's write passes and the index write-back) to at
// most maxThreadCount in flight at once.
type TaskRunner struct {
	eg          *errgroup.Group
	limiterChan chan struct{}
	ctx         context.Context
}

// NewTaskRunner returns a TaskRunner whose tasks share ctx (canceled as a
// group on first error) and are limited to maxThreadCount concurrent
// in-flight tasks. maxThreadCount <= 0 is treated as 1, so tasks run one
// at a time.
func NewTaskRunner(ctx context.Context, maxThreadCount int) *TaskRunner {
	eg, egCtx := errgroup.WithContext(ctx)
	cap := maxThreadCount
	if cap <= 0 {
		cap = 1
	}
	return &TaskRunner{
		eg:          eg,
		limiterChan: make(chan struct{}, cap),
		ctx:         egCtx,
	}
}

// GetContext returns the group's derived context.
func (tr *TaskRunner) GetContext() context.Context {
	return tr.ctx
}

// Go schedules task, blocking only if the concurrency limit is currently
// saturated.
func (tr *TaskRunner) Go(task func() error) {
	tr.limiterChan <- struct{}{}
	tr.eg.Go(func() error {
		defer func() { <-tr.limiterChan }()
		return task()
	})
}

// Wait blocks until every scheduled task has completed, returning the first
// error encountered, if any.
func (tr *TaskRunner) Wait() error {
	return tr.eg.Wait()
}
