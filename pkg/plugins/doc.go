// Package plugins models the plugins a host has installed.
//
// # Overview
//
// A Plugin is the registry's mutable record of one installed plugin: its plugin.json
// manifest, its files, how it was installed and how its signature verified, its
// relationship to other plugins and an optional backend client. A PluginDTO is the
// frozen view of a Plugin handed to everything outside the registry.
//
// # Backend client
//
// The backend client is attached with RegisterClient once the backend process is up,
// and may be replaced after a restart. Every capability call on a Plugin resolves the
// client first and fails with backendplugin.ErrPluginUnavailable when none is attached:
//
//	p.RegisterClient(client)
//	resp, err := p.QueryData(ctx, req)
//	if plugins.IsUnavailable(err) {
//		// frontend-only plugin, or the backend never came up
//	}
//
// # Views
//
// ToDTO deep-copies the manifest and signature data, so a DTO never changes once
// built. Publish a new DTO after mutating a Plugin:
//
//	dto := p.ToDTO()
//	readme := dto.Markdown("readme")
//
// # Related Packages
//
//   - pkg/plugins/backend: capability contract and request types
//   - pkg/plugins/backendplugin: backend client handle
//   - pkg/plugins/registry: arena of plugins keyed by id
//   - pkg/plugins/loader: plugin.json discovery
package plugins
