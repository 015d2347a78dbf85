package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"github.com/platinummonkey/plughost/pkg/plugins/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processMockBackend is a managed backend whose process state tests control
type processMockBackend struct {
	mu             sync.Mutex
	id             string
	managed        bool
	exited         bool
	decommissioned bool
	startErr       error
	startPanic     bool
	starts         int
	stops          int
}

func newMockBackend(id string) *processMockBackend {
	return &processMockBackend{id: id, managed: true}
}

func (b *processMockBackend) PluginID() string           { return b.id }
func (b *processMockBackend) Logger() logrus.FieldLogger { return logrus.StandardLogger() }

func (b *processMockBackend) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	if b.startPanic {
		panic("backend binary is corrupt")
	}
	if b.startErr != nil {
		return b.startErr
	}
	b.exited = false
	return nil
}

func (b *processMockBackend) Stop(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	return nil
}

func (b *processMockBackend) IsManaged() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.managed
}

func (b *processMockBackend) Exited() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exited
}

func (b *processMockBackend) setExited() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exited = true
}

func (b *processMockBackend) Decommission() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decommissioned = true
	return nil
}

func (b *processMockBackend) IsDecommissioned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decommissioned
}

func (b *processMockBackend) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts, b.stops
}

func (b *processMockBackend) CollectMetrics(context.Context, *backend.CollectMetricsRequest) (*backend.CollectMetricsResult, error) {
	return nil, backendplugin.ErrMethodNotImplemented
}

func (b *processMockBackend) CheckHealth(context.Context, *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
	return &backend.CheckHealthResult{Status: backend.HealthStatusOk}, nil
}

func (b *processMockBackend) QueryData(context.Context, *backend.QueryDataRequest) (*backend.QueryDataResponse, error) {
	return backend.NewQueryDataResponse(), nil
}

func (b *processMockBackend) CallResource(context.Context, *backend.CallResourceRequest, backend.CallResourceResponseSender) error {
	return nil
}

func setup(t *testing.T, backends ...*processMockBackend) *registry.InMemory {
	t.Helper()
	ctx := context.Background()
	r := registry.NewInMemory()
	for _, b := range backends {
		p := &plugins.Plugin{JSONData: plugins.JSONData{ID: b.id, Type: plugins.DataSource, Backend: true}}
		require.NoError(t, r.Add(ctx, p))
		require.NoError(t, r.RegisterClient(ctx, b.id, b))
	}
	return r
}

func TestManager_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown plugin", func(t *testing.T) {
		m := NewManager(registry.NewInMemory())
		assert.ErrorIs(t, m.Start(ctx, "missing"), backendplugin.ErrPluginNotRegistered)
		assert.ErrorIs(t, m.Stop(ctx, "missing"), backendplugin.ErrPluginNotRegistered)
	})

	t.Run("plugin without backend is skipped", func(t *testing.T) {
		r := registry.NewInMemory()
		require.NoError(t, r.Add(ctx, &plugins.Plugin{JSONData: plugins.JSONData{ID: "panel", Type: plugins.Panel}}))

		m := NewManager(r)
		assert.NoError(t, m.Start(ctx, "panel"))
		assert.NoError(t, m.Stop(ctx, "panel"))
	})

	t.Run("managed backend", func(t *testing.T) {
		b := newMockBackend("ds")
		m := NewManager(setup(t, b))

		require.NoError(t, m.Start(ctx, "ds"))
		require.NoError(t, m.Stop(ctx, "ds"))
		starts, stops := b.counts()
		assert.Equal(t, 1, starts)
		assert.Equal(t, 1, stops)
	})

	t.Run("unmanaged and decommissioned backends are not started", func(t *testing.T) {
		unmanaged := newMockBackend("unmanaged")
		unmanaged.managed = false
		retired := newMockBackend("retired")
		retired.decommissioned = true

		m := NewManager(setup(t, unmanaged, retired))
		require.NoError(t, m.Start(ctx, "unmanaged"))
		require.NoError(t, m.Start(ctx, "retired"))

		starts, _ := unmanaged.counts()
		assert.Zero(t, starts)
		starts, _ = retired.counts()
		assert.Zero(t, starts)
	})

	t.Run("start failure is wrapped", func(t *testing.T) {
		b := newMockBackend("ds")
		b.startErr = errors.New("exec format error")

		err := NewManager(setup(t, b)).Start(ctx, "ds")
		require.Error(t, err)
		assert.ErrorIs(t, err, b.startErr)
		assert.Contains(t, err.Error(), "failed to start plugin ds")
	})
}

func TestManager_StartAllStopAll(t *testing.T) {
	ctx := context.Background()
	backends := []*processMockBackend{newMockBackend("a"), newMockBackend("b"), newMockBackend("c")}
	m := NewManager(setup(t, backends...))

	require.NoError(t, m.StartAll(ctx))
	require.NoError(t, m.StopAll(ctx))

	for _, b := range backends {
		starts, stops := b.counts()
		assert.Equal(t, 1, starts, b.id)
		assert.Equal(t, 1, stops, b.id)
	}

	backends[1].startErr = errors.New("boom")
	assert.ErrorIs(t, m.StartAll(ctx), backends[1].startErr)
}

func TestManager_CheckKeepAlive(t *testing.T) {
	ctx := context.Background()

	exited := newMockBackend("exited")
	exited.exited = true
	running := newMockBackend("running")
	retired := newMockBackend("retired")
	retired.exited = true
	retired.decommissioned = true
	unmanaged := newMockBackend("unmanaged")
	unmanaged.exited = true
	unmanaged.managed = false
	broken := newMockBackend("broken")
	broken.exited = true
	broken.startErr = errors.New("no such file")

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := NewManager(setup(t, exited, running, retired, unmanaged, broken), WithMetrics(metrics))

	assert.Equal(t, 2, m.CheckKeepAlive(ctx))

	starts, _ := exited.counts()
	assert.Equal(t, 1, starts)
	assert.False(t, exited.Exited())

	for _, b := range []*processMockBackend{running, retired, unmanaged} {
		starts, _ := b.counts()
		assert.Zero(t, starts, b.id)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PluginRestarts.WithLabelValues("exited", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PluginRestarts.WithLabelValues("broken", "error")))

	assert.Equal(t, 1, m.CheckKeepAlive(ctx), "only the broken backend is still down")
}

func TestManager_CheckKeepAlive_RecoversPanickingStart(t *testing.T) {
	ctx := context.Background()

	panicky := newMockBackend("panicky")
	panicky.exited = true
	panicky.startPanic = true
	exited := newMockBackend("exited")
	exited.exited = true

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := NewManager(setup(t, panicky, exited), WithMetrics(metrics))

	var attempts int
	require.NotPanics(t, func() { attempts = m.CheckKeepAlive(ctx) })
	assert.Equal(t, 2, attempts)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PluginRestarts.WithLabelValues("panicky", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PluginRestarts.WithLabelValues("exited", "ok")))
	assert.False(t, exited.Exited())
}

func TestManager_Run(t *testing.T) {
	b := newMockBackend("ds")
	m := NewManager(setup(t, b), WithKeepAliveInterval(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	b.setExited()
	require.Eventually(t, func() bool {
		return !b.Exited()
	}, 5*time.Second, 50*time.Millisecond, "keepalive restarts the exited backend")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	_, stops := b.counts()
	assert.Equal(t, 1, stops, "backends are stopped on shutdown")
}
