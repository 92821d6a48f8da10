package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *http.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	}
	go srv.Serve(ln)
	return srv
}

func TestShutdownManager_RunsHooks(t *testing.T) {
	srv := startServer(t)
	sm := NewShutdownManager(Nop(), time.Second, srv)

	var ran atomic.Int32
	sm.RegisterShutdownFunc("recorder", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	sm.RegisterShutdownFunc("cache", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, int32(2), ran.Load())

	_, err := http.Get("http://" + srv.Addr)
	assert.Error(t, err)
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(Nop(), time.Second)
	sm.RegisterShutdownFunc("history", func(ctx context.Context) error {
		return errors.New("flush failed")
	})

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history: flush failed")
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(Nop(), 50*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sm.RegisterShutdownFunc("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	err := sm.Shutdown()
	assert.EqualError(t, err, "shutdown timeout reached")
}

func TestShutdownManager_WaitForShutdownOnCancel(t *testing.T) {
	sm := NewShutdownManager(Nop(), time.Second)
	var ran atomic.Bool
	sm.RegisterShutdownFunc("hook", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.WaitForShutdown(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, ran.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
}
