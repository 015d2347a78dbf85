package backendplugin

import "errors"

var (
	// ErrPluginUnavailable is returned when a capability is requested from a plugin
	// that has no attached backend client.
	ErrPluginUnavailable = errors.New("plugin unavailable")

	// ErrMethodNotImplemented is returned when the attached backend does not
	// implement the requested capability.
	ErrMethodNotImplemented = errors.New("method not implemented")

	// ErrPluginNotRegistered is returned when a plugin id is unknown to the host.
	ErrPluginNotRegistered = errors.New("plugin not registered")

	// ErrHealthCheckFailed is returned when a health check call fails.
	ErrHealthCheckFailed = errors.New("plugin health check failed")
)
