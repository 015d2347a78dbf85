// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing and the middleware the plugin API is served through.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteNotFound(w, r, "plugin not found")
//	httputil.WriteServiceUnavailable(w, r, "plugin unavailable")
//
// Error bodies carry the request ID:
//
//	{"error": "plugin unavailable", "requestId": "5f0c..."}
//
// # Request Parsing
//
//	var req backend.QueryDataRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "pluginId")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(10*1024*1024), // 10MB
//	)
package httputil
