package history

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/docsearch/pkg/async"
	"github.com/platinummonkey/docsearch/pkg/observability"
)

// ErrDropped is passed to the result hook for an entry discarded because the
// write queue was full.
var ErrDropped = errors.New("history queue full, entry dropped")

// Status labels a write result for metrics: "ok", "dropped" or "error".
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDropped):
		return "dropped"
	default:
		return "error"
	}
}

// Recorder writes history entries in the background so that recording never
// delays a search response. Entries arriving while the queue is full are
// dropped.
type Recorder struct {
	store  *Store
	pool   *async.WorkerPool
	logger *observability.Logger
	hook   func(error)
	done   chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithResultHook calls fn after every write attempt with its error, or nil.
func WithResultHook(fn func(error)) RecorderOption {
	return func(r *Recorder) { r.hook = fn }
}

// NewRecorder starts workers writing to store. Close must be called to
// flush pending entries.
func NewRecorder(ctx context.Context, store *Store, workers int, logger *observability.Logger, opts ...RecorderOption) *Recorder {
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	r := &Recorder{
		store:  store,
		pool:   async.NewWorkerPool(ctx, workers, "history recording", 5*time.Second),
		logger: logger.WithField("component", "history"),
		hook:   func(error) {},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.drainErrors()
	return r
}

func (r *Recorder) drainErrors() {
	for {
		select {
		case err := <-r.pool.Errors():
			r.logger.WithError(err).Warn("failed to record search")
		case <-r.done:
			return
		}
	}
}

// Record queues a history entry without waiting for a free slot.
func (r *Recorder) Record(query string, results int, took time.Duration) {
	entry := Entry{Query: query, Results: results, Took: took, At: time.Now()}
	err := r.pool.TrySubmit(func(ctx context.Context) error {
		err := r.store.Record(ctx, entry)
		r.hook(err)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, async.ErrQueueFull):
		r.hook(ErrDropped)
		r.logger.Debug("history queue full, dropping entry")
	default:
		r.logger.WithError(err).Debug("history recorder closed, dropping entry")
	}
}

// Close waits up to timeout for queued entries to be written.
func (r *Recorder) Close(timeout time.Duration) error {
	err := r.pool.Shutdown(timeout)
	close(r.done)
	return err
}
