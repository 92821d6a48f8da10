package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/docsearch/pkg/observability"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("worker pool shut down")

	// ErrQueueFull is returned by TrySubmit when no queue slot is free.
	ErrQueueFull = errors.New("worker pool queue full")
)

var logger atomic.Pointer[observability.Logger]

func init() {
	logger.Store(observability.NewLogger(observability.WarnLevel, nil))
}

// SetLogger replaces the logger used for background failures.
func SetLogger(l *observability.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

func current() *observability.Logger {
	return logger.Load()
}

// SafeGo runs fn in a goroutine with a timeout derived from parentCtx.
// Panics are recovered and logged along with returned errors, so a failing
// background task never takes the process down.
//
//	SafeGo(ctx, 5*time.Second, "cache warm", func(ctx context.Context) error {
//	    return cache.Warm(ctx)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(current().WithField("task", taskName), "SafeGo")

		if err := fn(ctx); err != nil {
			current().WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// WorkerPool runs submitted tasks on a fixed number of goroutines. Task
// errors and panics are reported on Errors.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	closeMu      sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines, each task bounded by timeout.
//
//	pool := NewWorkerPool(ctx, 4, "history recording", 5*time.Second)
//	defer pool.Shutdown(5 * time.Second)
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.worker()
		}()
	}
	go func() {
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues fn, blocking while the queue is full. It fails once the pool
// is shut down or its context is cancelled.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// TrySubmit queues fn without waiting. It returns ErrQueueFull when every
// queue slot is taken.
func (p *WorkerPool) TrySubmit(fn func(context.Context) error) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed || p.ctx.Err() != nil {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits up to timeout for queued tasks to
// finish. Tasks still running after the timeout are cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		p.closeQueue()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = errors.New("worker pool shutdown timed out after " + timeout.String())
		}
	})

	return shutdownErr
}

func (p *WorkerPool) closeQueue() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.workCh)
	}
}

// Errors returns a channel that receives task errors.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) report(err error) {
	select {
	case p.errCh <- err:
	default:
		current().WithError(err).WithField("task", p.taskName).Warn("error channel full, dropping error")
	}
}

func (p *WorkerPool) worker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(fn)
		}
	}
}

func (p *WorkerPool) run(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	defer func() {
		if err := observability.PanicError(recover()); err != nil {
			p.report(err)
		}
	}()

	if err := fn(ctx); err != nil {
		p.report(err)
	}
}

// Batch runs fn over items on workers goroutines and returns every error.
//
//	errs := Batch(ctx, paths, 4, "index convert", time.Minute, convert)
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, taskName, timeout)

	var (
		mu   sync.Mutex
		errs []error
	)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for {
			select {
			case err := <-pool.errCh:
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			case <-pool.doneCh:
				for {
					select {
					case err := <-pool.errCh:
						mu.Lock()
						errs = append(errs, err)
						mu.Unlock()
					default:
						return
					}
				}
			}
		}
	}()

	for _, item := range items {
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
	}

	pool.closeQueue()
	<-pool.doneCh
	pool.cancel()
	<-collected

	mu.Lock()
	defer mu.Unlock()
	return errs
}
