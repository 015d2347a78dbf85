// Package backendplugin defines the client handle the host holds for a plugin's
// out-of-process backend.
package backendplugin

import (
	"context"

	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/sirupsen/logrus"
)

// Plugin is a live handle to a backend process. Streaming is optional: a handle
// supports it when it also implements backend.StreamHandler.
type Plugin interface {
	PluginID() string
	Logger() logrus.FieldLogger
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsManaged() bool
	Exited() bool
	Decommission() error
	IsDecommissioned() bool

	backend.CollectMetricsHandler
	backend.CheckHealthHandler
	backend.QueryDataHandler
	backend.CallResourceHandler
}

// StreamingPlugin is a Plugin that also serves streams
type StreamingPlugin interface {
	Plugin
	backend.StreamHandler
}

// SupportsStreaming reports whether p implements backend.StreamHandler
func SupportsStreaming(p Plugin) bool {
	if p == nil {
		return false
	}
	_, ok := p.(backend.StreamHandler)
	return ok
}
