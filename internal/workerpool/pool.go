// Package workerpool runs caller-triggered background work with a bound on
// how many jobs execute at once.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("worker pool closed")

type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New returns a pool running at most size jobs concurrently. size < 1 means 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit waits for a free slot and starts fn in its own goroutine. It fails
// when ctx is done before a slot frees up or the pool is closed.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return err
	}

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn(ctx)
	}()
	return nil
}

// Close stops accepting jobs and waits for running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Result is the outcome of a job started with Go.
type Result[T any] struct {
	Value T
	Err   error
}

// Go runs fn on the pool and delivers its outcome on the returned channel,
// which receives exactly one value and is then closed. Submission failures are
// delivered the same way.
func Go[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	err := p.Submit(ctx, func(ctx context.Context) {
		defer close(out)
		v, err := fn(ctx)
		out <- Result[T]{Value: v, Err: err}
	})
	if err != nil {
		out <- Result[T]{Err: err}
		close(out)
	}
	return out
}
