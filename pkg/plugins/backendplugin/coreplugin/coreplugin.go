// Package coreplugin provides an in-process backend handle for plugins built into
// the host binary.
package coreplugin

import (
	"context"
	"sync/atomic"

	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"github.com/sirupsen/logrus"
)

// Opts are the handlers a core plugin serves. Any of them may be nil.
type Opts struct {
	QueryDataHandler      backend.QueryDataHandler
	CallResourceHandler   backend.CallResourceHandler
	CheckHealthHandler    backend.CheckHealthHandler
	CollectMetricsHandler backend.CollectMetricsHandler
	StreamHandler         backend.StreamHandler
}

type corePlugin struct {
	pluginID       string
	logger         logrus.FieldLogger
	stopped        atomic.Bool
	decommissioned atomic.Bool

	backend.QueryDataHandler
	backend.CallResourceHandler
	backend.CheckHealthHandler
	backend.CollectMetricsHandler
}

type streamingCorePlugin struct {
	*corePlugin
	backend.StreamHandler
}

// New returns a handle serving opts. The handle implements backend.StreamHandler
// only when opts.StreamHandler is set.
func New(pluginID string, opts Opts, logger logrus.FieldLogger) backendplugin.Plugin {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &corePlugin{
		pluginID:              pluginID,
		logger:                logger.WithField("plugin_id", pluginID),
		QueryDataHandler:      opts.QueryDataHandler,
		CallResourceHandler:   opts.CallResourceHandler,
		CheckHealthHandler:    opts.CheckHealthHandler,
		CollectMetricsHandler: opts.CollectMetricsHandler,
	}

	if opts.StreamHandler != nil {
		return &streamingCorePlugin{corePlugin: p, StreamHandler: opts.StreamHandler}
	}
	return p
}

func (cp *corePlugin) PluginID() string {
	return cp.pluginID
}

func (cp *corePlugin) Logger() logrus.FieldLogger {
	return cp.logger
}

func (cp *corePlugin) Start(_ context.Context) error {
	cp.stopped.Store(false)
	return nil
}

func (cp *corePlugin) Stop(_ context.Context) error {
	cp.stopped.Store(true)
	return nil
}

// IsManaged is true: core plugins live and die with the host
func (cp *corePlugin) IsManaged() bool {
	return true
}

// Exited is always false since there is no process to exit
func (cp *corePlugin) Exited() bool {
	return false
}

// IsStopped reports whether Stop was called after the last Start
func (cp *corePlugin) IsStopped() bool {
	return cp.stopped.Load()
}

func (cp *corePlugin) Decommission() error {
	cp.decommissioned.Store(true)
	return nil
}

func (cp *corePlugin) IsDecommissioned() bool {
	return cp.decommissioned.Load()
}

func (cp *corePlugin) QueryData(ctx context.Context, req *backend.QueryDataRequest) (*backend.QueryDataResponse, error) {
	if cp.QueryDataHandler != nil {
		return cp.QueryDataHandler.QueryData(ctx, req)
	}
	return nil, backendplugin.ErrMethodNotImplemented
}

func (cp *corePlugin) CallResource(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	if cp.CallResourceHandler != nil {
		return cp.CallResourceHandler.CallResource(ctx, req, sender)
	}
	return backendplugin.ErrMethodNotImplemented
}

func (cp *corePlugin) CheckHealth(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
	if cp.CheckHealthHandler != nil {
		return cp.CheckHealthHandler.CheckHealth(ctx, req)
	}
	return nil, backendplugin.ErrMethodNotImplemented
}

func (cp *corePlugin) CollectMetrics(ctx context.Context, req *backend.CollectMetricsRequest) (*backend.CollectMetricsResult, error) {
	if cp.CollectMetricsHandler != nil {
		return cp.CollectMetricsHandler.CollectMetrics(ctx, req)
	}
	return nil, backendplugin.ErrMethodNotImplemented
}
