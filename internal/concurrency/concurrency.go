// Package concurrency provides a bounded worker pool for the
// fan-out work that genuinely needs many goroutines at once — COV
// subscription maintenance and multi-device polling — built on
// sourcegraph/conc so a panic in one task surfaces through Wait
// instead of crashing the process silently.
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Pool runs tasks with bounded parallelism, propagating the first
// panic or error encountered to the caller of Wait.
type Pool struct {
	p *pool.ContextPool
}

// New builds a Pool that runs at most maxConcurrent tasks at a time.
// maxConcurrent <= 0 means unbounded.
func New(ctx context.Context, maxConcurrent int) *Pool {
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	if maxConcurrent > 0 {
		p = p.WithMaxGoroutines(maxConcurrent)
	}
	return &Pool{p: p}
}

// Go schedules fn to run in the pool. fn should respect ctx
// cancellation so a sibling failure can stop the remaining work.
func (p *Pool) Go(fn func(ctx context.Context) error) {
	p.p.Go(fn)
}

// Wait blocks until every scheduled task has returned, yielding the
// first non-nil error (or the recovered panic, re-raised by conc).
func (p *Pool) Wait() error {
	return p.p.Wait()
}
