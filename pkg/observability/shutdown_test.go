package observability

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"with custom timeout", 10 * time.Second, 10 * time.Second},
		{"with zero timeout uses default", 0, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(logrus.InfoLevel, &bytes.Buffer{})
			server := &http.Server{}

			sm := NewShutdownManager(logger, server, tt.timeout)
			require.NotNil(t, sm)
			assert.Equal(t, logger, sm.logger)
			assert.Same(t, server, sm.server)
			assert.Equal(t, tt.expectedTimeout, sm.shutdownTimeout)
		})
	}

	sm := NewShutdownManager(nil, nil, 0)
	assert.NotNil(t, sm.logger)
}

func TestShutdown_RunsFunctions(t *testing.T) {
	sm := NewShutdownManager(NewLogger(logrus.InfoLevel, &bytes.Buffer{}), nil, time.Second)

	var calls int32
	for _, name := range []string{"plugins", "otel", "watcher"} {
		sm.RegisterShutdownFunc(name, func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}
	sm.RegisterShutdownFunc("nil", nil)

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestShutdown_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(logrus.InfoLevel, &bytes.Buffer{}), nil, time.Second)

	stopErr := errors.New("plugin did not stop")
	sm.RegisterShutdownFunc("plugins", func(ctx context.Context) error { return stopErr })
	sm.RegisterShutdownFunc("otel", func(ctx context.Context) error { return nil })

	err := sm.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, stopErr)
	assert.Contains(t, err.Error(), "1 errors")
}

func TestShutdown_Timeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(logrus.InfoLevel, &bytes.Buffer{}), nil, 50*time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	sm.RegisterShutdownFunc("slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	err := sm.Shutdown()
	assert.EqualError(t, err, "shutdown timeout reached")
}

func TestShutdown_StopsServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{Handler: http.NotFoundHandler()}
	sm := NewShutdownManager(NewLogger(logrus.InfoLevel, &bytes.Buffer{}), server, time.Second)

	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	require.NoError(t, sm.Shutdown())

	select {
	case err := <-served:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestShutdown_CancelsInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	entered := make(chan struct{})
	finished := make(chan error, 1)
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(entered)
		<-r.Context().Done()
		finished <- r.Context().Err()
	})}
	sm := NewShutdownManager(NewLogger(logrus.InfoLevel, &bytes.Buffer{}), server, 2*time.Second)

	var ran int32
	sm.RegisterShutdownFunc("background", func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	go func() { _ = server.Serve(ln) }()
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/stream")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("handler was not canceled")
	}
}

func TestShutdown_RunsFunctionsWhenServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			<-release
		}),
		// A caller-provided base context is left alone, so this request ignores shutdown
		BaseContext: func(net.Listener) context.Context { return context.Background() },
	}
	sm := NewShutdownManager(NewLogger(logrus.InfoLevel, &bytes.Buffer{}), server, 100*time.Millisecond)

	var ran int32
	sm.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	go func() { _ = server.Serve(ln) }()
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	<-entered

	err = sm.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "HTTP server shutdown failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestWaitForShutdown_ContextDone(t *testing.T) {
	sm := NewShutdownManager(NewLogger(logrus.InfoLevel, &bytes.Buffer{}), nil, time.Second)

	var ran int32
	sm.RegisterShutdownFunc("flag", func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForShutdown(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}
