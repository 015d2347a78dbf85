package backend

import (
	"context"
	"strings"
)

// CheckHealthHandler handles health checks
type CheckHealthHandler interface {
	CheckHealth(ctx context.Context, req *CheckHealthRequest) (*CheckHealthResult, error)
}

// CheckHealthHandlerFunc is an adapter to allow the use of ordinary functions as CheckHealthHandler
type CheckHealthHandlerFunc func(ctx context.Context, req *CheckHealthRequest) (*CheckHealthResult, error)

// CheckHealth calls fn(ctx, req)
func (fn CheckHealthHandlerFunc) CheckHealth(ctx context.Context, req *CheckHealthRequest) (*CheckHealthResult, error) {
	return fn(ctx, req)
}

// CollectMetricsHandler handles metric collection
type CollectMetricsHandler interface {
	CollectMetrics(ctx context.Context, req *CollectMetricsRequest) (*CollectMetricsResult, error)
}

// CollectMetricsHandlerFunc is an adapter to allow the use of ordinary functions as CollectMetricsHandler
type CollectMetricsHandlerFunc func(ctx context.Context, req *CollectMetricsRequest) (*CollectMetricsResult, error)

// CollectMetrics calls fn(ctx, req)
func (fn CollectMetricsHandlerFunc) CollectMetrics(ctx context.Context, req *CollectMetricsRequest) (*CollectMetricsResult, error) {
	return fn(ctx, req)
}

// HealthStatus is the status of a plugin health check
type HealthStatus int

const (
	HealthStatusUnknown HealthStatus = iota
	HealthStatusOk
	HealthStatusWarning
	HealthStatusError
)

var healthStatusNames = map[HealthStatus]string{
	HealthStatusUnknown: "UNKNOWN",
	HealthStatusOk:      "OK",
	HealthStatusWarning: "WARNING",
	HealthStatusError:   "ERROR",
}

// String returns the upper-case name of the status
func (hs HealthStatus) String() string {
	if name, ok := healthStatusNames[hs]; ok {
		return name
	}
	return healthStatusNames[HealthStatusUnknown]
}

// ParseHealthStatus is the inverse of String. Unrecognized names map to HealthStatusUnknown.
func ParseHealthStatus(s string) HealthStatus {
	for status, name := range healthStatusNames {
		if strings.EqualFold(name, s) {
			return status
		}
	}
	return HealthStatusUnknown
}

// CheckHealthRequest is a health check request
type CheckHealthRequest struct {
	PluginContext PluginContext     `json:"pluginContext"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// CheckHealthResult is the outcome of a health check
type CheckHealthResult struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message"`
	JSONDetails []byte       `json:"details,omitempty"`
}

// CollectMetricsRequest is a metrics collection request
type CollectMetricsRequest struct {
	PluginContext PluginContext `json:"pluginContext"`
}

// CollectMetricsResult carries metrics in Prometheus text exposition format
type CollectMetricsResult struct {
	PrometheusMetrics []byte `json:"prometheusMetrics"`
}
