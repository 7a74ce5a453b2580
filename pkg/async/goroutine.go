package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/bukget/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery and a timeout. The task keeps the
// values of parentCtx (request id, logger) but not its cancellation, so work started
// from a request handler outlives the response.
//
// Example:
//
//	SafeGo(r.Context(), 5*time.Second, "record download", func(ctx context.Context) error {
//	    return recorder.Record(ctx, download)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	logger := observability.FromContext(parentCtx).WithField("task", taskName)
	detached := context.WithoutCancel(parentCtx)

	go func() {
		ctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

// WorkerPool manages a pool of workers that process tasks from a channel
type WorkerPool struct {
	workers  int
	taskName string
	timeout  time.Duration
	logger   *observability.Logger

	workCh chan func(context.Context) error
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	errs []error

	closeOnce sync.Once
}

// NewWorkerPool starts workers goroutines that run submitted tasks, each bounded by
// timeout.
//
// Example:
//
//	pool := NewWorkerPool(ctx, 4, "upsert plugin", 30*time.Second)
//	pool.Submit(func(ctx context.Context) error { return store.UpsertPlugin(ctx, p) })
//	errs := pool.Wait()
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		logger:   observability.FromContext(ctx).WithField("task", taskName),
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pool.worker()
			}()
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues a task. It blocks while the queue is full and fails once the pool
// has been closed or its context cancelled.
func (p *WorkerPool) Submit(fn func(context.Context) error) (err error) {
	defer func() {
		// send on a channel closed by Wait
		if recover() != nil {
			err = fmt.Errorf("%s: worker pool closed", p.taskName)
		}
	}()

	select {
	case <-p.ctx.Done():
		return fmt.Errorf("%s: %w", p.taskName, p.ctx.Err())
	case p.workCh <- fn:
		return nil
	}
}

// Wait closes the queue, waits for every queued task to finish and returns the
// errors they produced
func (p *WorkerPool) Wait() []error {
	p.closeOnce.Do(func() { close(p.workCh) })
	<-p.doneCh
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

// Shutdown closes the queue and waits up to timeout for running tasks. Tasks still
// running after the timeout have their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.closeOnce.Do(func() { close(p.workCh) })

	select {
	case <-p.doneCh:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("%s: worker pool shutdown timed out after %v", p.taskName, timeout)
	}
}

func (p *WorkerPool) worker() {
	for fn := range p.workCh {
		if p.ctx.Err() != nil {
			p.record(p.ctx.Err())
			continue
		}
		p.run(fn)
	}
}

func (p *WorkerPool) run(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				Error("PANIC recovered in worker")
			p.record(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		p.record(err)
	}
}

func (p *WorkerPool) record(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

// Batch processes items concurrently on a worker pool and returns every error the
// tasks produced.
//
// Example:
//
//	errs := Batch(ctx, plugins, 4, "upsert plugin", 30*time.Second, func(ctx context.Context, p catalog.Plugin) error {
//	    return store.UpsertPlugin(ctx, &p)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, taskName, timeout)

	for _, item := range items {
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			return append(pool.Wait(), err)
		}
	}

	return pool.Wait()
}
