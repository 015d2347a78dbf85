// Package process starts, stops and keeps alive the managed backends of registered plugins.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultStopTimeout       = 30 * time.Second
)

// Registry is the view of the plugin registry the manager needs
type Registry interface {
	Plugin(ctx context.Context, id string) (*plugins.Plugin, bool)
	Plugins(ctx context.Context) []*plugins.Plugin
}

// Option configures a Manager
type Option func(*Manager)

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func WithOTelMetrics(metrics *observability.OTelMetrics) Option {
	return func(m *Manager) { m.otelMetrics = metrics }
}

// WithKeepAliveInterval sets how often Run checks for exited backends
func WithKeepAliveInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithStopTimeout bounds how long Run waits for backends to stop on shutdown
func WithStopTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.stopTimeout = d
		}
	}
}

// Manager supervises backend processes of the plugins in a registry
type Manager struct {
	registry    Registry
	log         logrus.FieldLogger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	interval    time.Duration
	stopTimeout time.Duration
}

// NewManager creates a manager for the plugins in registry
func NewManager(registry Registry, opts ...Option) *Manager {
	m := &Manager{
		registry:    registry,
		log:         logrus.StandardLogger(),
		interval:    DefaultKeepAliveInterval,
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "process")
	return m
}

// Start starts the backend of id. Plugins without a managed, live backend are left alone.
func (m *Manager) Start(ctx context.Context, id string) error {
	p, ok := m.registry.Plugin(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", backendplugin.ErrPluginNotRegistered, id)
	}
	return m.start(ctx, p)
}

// Stop stops the backend of id
func (m *Manager) Stop(ctx context.Context, id string) error {
	p, ok := m.registry.Plugin(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", backendplugin.ErrPluginNotRegistered, id)
	}
	return m.stop(ctx, p)
}

// StartAll starts every registered backend concurrently and returns the first failure
func (m *Manager) StartAll(ctx context.Context) error {
	var g errgroup.Group
	for _, p := range m.registry.Plugins(ctx) {
		g.Go(func() error {
			return m.start(ctx, p)
		})
	}
	return g.Wait()
}

// StopAll stops every registered backend concurrently and returns the first failure
func (m *Manager) StopAll(ctx context.Context) error {
	var g errgroup.Group
	for _, p := range m.registry.Plugins(ctx) {
		g.Go(func() error {
			return m.stop(ctx, p)
		})
	}
	return g.Wait()
}

// Run checks for exited backends every keepalive interval until ctx is done, then
// stops every backend.
func (m *Manager) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(fmt.Sprintf("@every %s", m.interval), func() {
		defer observability.RecoverPanic(m.log, "keepalive")
		m.CheckKeepAlive(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule keepalive: %w", err)
	}

	c.Start()
	m.log.Infof("Keepalive check scheduled every %s", m.interval)

	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.stopTimeout)
	defer cancel()

	m.log.Info("Stopping plugin backends")
	return m.StopAll(stopCtx)
}

// CheckKeepAlive restarts every managed backend that has exited and was not
// decommissioned. It returns the number of restart attempts.
func (m *Manager) CheckKeepAlive(ctx context.Context) int {
	attempts := 0
	for _, p := range m.registry.Plugins(ctx) {
		client, ok := p.Client()
		if !ok || !client.IsManaged() || client.IsDecommissioned() || !client.Exited() {
			continue
		}

		attempts++
		log := m.log.WithField("plugin_id", p.ID)
		log.Warn("Plugin backend exited, restarting")

		err := restart(ctx, client)
		m.recordRestart(ctx, p.ID, err)
		if err != nil {
			log.WithError(err).Error("Failed to restart plugin backend")
			continue
		}
		log.Info("Plugin backend restarted")
	}
	return attempts
}

// restart starts client, reporting a panic as an error so one bad backend cannot take
// the keepalive job down with it
func restart(ctx context.Context, client backendplugin.Plugin) (err error) {
	defer func() {
		if perr := observability.MustRecover(recover()); perr != nil {
			err = perr
		}
	}()
	return client.Start(ctx)
}

func (m *Manager) start(ctx context.Context, p *plugins.Plugin) error {
	if !p.IsManaged() || p.IsDecommissioned() {
		return nil
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("failed to start plugin %s: %w", p.ID, err)
	}

	m.log.WithField("plugin_id", p.ID).Debug("Plugin backend started")
	return nil
}

func (m *Manager) stop(ctx context.Context, p *plugins.Plugin) error {
	if _, ok := p.Client(); !ok {
		return nil
	}

	if err := p.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop plugin %s: %w", p.ID, err)
	}

	m.log.WithField("plugin_id", p.ID).Debug("Plugin backend stopped")
	return nil
}

func (m *Manager) recordRestart(ctx context.Context, pluginID string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if m.metrics != nil {
		m.metrics.PluginRestarts.WithLabelValues(pluginID, status).Inc()
	}
	m.otelMetrics.RecordPluginRestart(ctx, pluginID, err)
}
