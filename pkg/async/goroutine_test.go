package async

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docsearch/pkg/observability"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := current()
	SetLogger(observability.NewLogger(observability.DebugLevel, buf))
	t.Cleanup(func() { SetLogger(prev) })
	return buf
}

func TestSafeGo_RunsTask(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), time.Second, "task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestSafeGo_LogsErrorAndPanic(t *testing.T) {
	logs := captureLogs(t)

	SafeGo(context.Background(), time.Second, "failing", func(ctx context.Context) error {
		return errors.New("write failed")
	})
	SafeGo(context.Background(), time.Second, "panicking", func(ctx context.Context) error {
		panic("bad state")
	})

	assert.Eventually(t, func() bool {
		out := logs.String()
		return bytes.Contains([]byte(out), []byte("write failed")) &&
			bytes.Contains([]byte(out), []byte("PANIC recovered"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSafeGo_Timeout(t *testing.T) {
	result := make(chan error, 1)
	SafeGo(context.Background(), 20*time.Millisecond, "slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			result <- ctx.Err()
		case <-time.After(time.Second):
			result <- nil
		}
		return nil
	})

	assert.ErrorIs(t, <-result, context.DeadlineExceeded)
}

func TestWorkerPool_RunsAndReportsErrors(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test", time.Second)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			if i == 3 {
				return fmt.Errorf("task %d failed", i)
			}
			if i == 7 {
				panic("boom")
			}
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(10), ran.Load())

	var errs []string
	for len(errs) < 2 {
		select {
		case err := <-pool.Errors():
			errs = append(errs, err.Error())
		case <-time.After(time.Second):
			t.Fatalf("expected 2 errors, got %v", errs)
		}
	}
	assert.ElementsMatch(t, []string{"task 3 failed", "panic: boom"}, errs)

	assert.ErrorIs(t, pool.Submit(func(context.Context) error { return nil }), ErrPoolClosed)
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "stuck", time.Minute)
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	err := pool.Shutdown(20 * time.Millisecond)
	assert.ErrorContains(t, err, "timed out")
}

func TestWorkerPool_TrySubmit(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "busy", time.Second)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	noop := func(context.Context) error { return nil }
	require.NoError(t, pool.TrySubmit(noop))
	require.NoError(t, pool.TrySubmit(noop))
	assert.ErrorIs(t, pool.TrySubmit(noop), ErrQueueFull)

	close(release)
	require.NoError(t, pool.Shutdown(time.Second))
	assert.ErrorIs(t, pool.TrySubmit(noop), ErrPoolClosed)
}

func TestWorkerPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1, "cancelled", time.Second)
	cancel()

	assert.Eventually(t, func() bool {
		// Fill the queue: once workers are gone Submit must not block forever.
		return errors.Is(pool.Submit(func(context.Context) error { return nil }), ErrPoolClosed)
	}, time.Second, 10*time.Millisecond)
}

func TestBatch(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	var sum atomic.Int64

	errs := Batch(context.Background(), items, 3, "sum", time.Second, func(ctx context.Context, n int) error {
		sum.Add(int64(n))
		if n%2 == 0 {
			return fmt.Errorf("even %d", n)
		}
		return nil
	})

	assert.Equal(t, int64(21), sum.Load())
	assert.Len(t, errs, 3)
}

func TestBatch_Empty(t *testing.T) {
	errs := Batch(context.Background(), []string{}, 2, "noop", time.Second, func(context.Context, string) error {
		return errors.New("unreachable")
	})
	assert.Empty(t, errs)
}
