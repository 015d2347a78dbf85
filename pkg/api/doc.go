// Package api provides the HTTP API that routes requests to registered plugins.
//
// # Overview
//
// The server reads point-in-time plugin views from the registry for metadata routes
// and dispatches backend calls through the registry entry, so a plugin without an
// attached backend answers 503 and a backend lacking a capability answers 501.
//
// # Routes
//
//	GET  /api/plugins                               plugin summaries, ?type= filter
//	GET  /api/plugins/{pluginId}                    full plugin metadata
//	GET  /api/plugins/{pluginId}/markdown/{name}    documentation page
//	GET  /api/plugins/{pluginId}/health             CheckHealth
//	GET  /api/plugins/{pluginId}/metrics            CollectMetrics
//	POST /api/plugins/{pluginId}/query              QueryData
//	*    /api/plugins/{pluginId}/resources/{path}   CallResource
//	GET  /api/plugins/{pluginId}/streams/{path}     SubscribeStream + RunStream (server-sent events)
//	POST /api/plugins/{pluginId}/streams/{path}     PublishStream
//	GET  /public/plugins/{pluginId}/{path}          static plugin assets
//
// # Usage Example
//
//	reg := registry.NewInMemory()
//	server := api.NewServer(reg,
//		api.WithDocCache(markdown.NewCache(markdown.DefaultSize)),
//		api.WithMetrics(metrics),
//	)
//	http.ListenAndServe(":8080", server)
//
// # Related Packages
//
//   - pkg/plugins/registry: Source of plugin entries and views
//   - pkg/plugins/markdown: Documentation cache
//   - pkg/httputil: Error responses and request middleware
package api
