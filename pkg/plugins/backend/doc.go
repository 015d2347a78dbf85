// Package backend defines the capability contract every backend-capable plugin serves.
//
// # Overview
//
// A plugin backend runs out of process. The host talks to it through five
// capabilities, each modeled as a small handler interface:
//
//	QueryDataHandler       executes data queries, one response per RefID
//	CallResourceHandler    arbitrary resource calls streamed back through a sender
//	CheckHealthHandler     status, message and optional JSON details
//	CollectMetricsHandler  Prometheus text exposition
//	StreamHandler          subscribe, publish and run for live channels
//
// Every handler takes a context.Context that must be honored: cancellation
// propagates to the in-flight call.
//
// There is no default implementation in this package. Kind-specific plugins
// (datasource, app, renderer, secrets manager) are all driven through the same
// handlers, which keeps the registry kind-agnostic.
//
// # Func adapters
//
// Plain functions satisfy the interfaces through the *HandlerFunc adapters:
//
//	h := backend.CheckHealthHandlerFunc(func(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
//		return &backend.CheckHealthResult{Status: backend.HealthStatusOk}, nil
//	})
//
// # Related Packages
//
//   - pkg/plugins/backendplugin: the client handle wrapping these handlers
//   - pkg/plugins: the registry entry dispatching to a handle
package backend
