// Package registry holds the host's registered plugins and their published views.
//
// Plugins reference their parent and children by ID; the registry resolves those IDs,
// so there are no owning pointers between entries. A published view is a point-in-time
// snapshot and only changes when the plugin is republished.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"github.com/sirupsen/logrus"
)

var (
	ErrPluginAlreadyRegistered = errors.New("plugin already registered")
	ErrPluginNotFound          = errors.New("plugin not found")
	ErrPluginHasChildren       = errors.New("plugin has registered children")
)

// Option configures an InMemory registry
type Option func(*InMemory)

// WithMetrics keeps the plughost_plugins_registered gauge in sync with the registry
func WithMetrics(m *observability.Metrics) Option {
	return func(r *InMemory) {
		r.metrics = m
	}
}

// WithLogger sets the registry logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *InMemory) {
		r.log = l
	}
}

// InMemory is a registry safe for concurrent use
type InMemory struct {
	mu    sync.RWMutex
	store map[string]*plugins.Plugin
	views map[string]plugins.PluginDTO
	order []string

	metrics *observability.Metrics
	log     logrus.FieldLogger
}

// NewInMemory creates an empty registry
func NewInMemory(opts ...Option) *InMemory {
	r := &InMemory{
		store: make(map[string]*plugins.Plugin),
		views: make(map[string]plugins.PluginDTO),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("component", "registry")
	return r
}

// Add registers p and publishes its first view. When p's parent is already
// registered, the parent learns about p and is republished.
func (r *InMemory) Add(_ context.Context, p *plugins.Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}
	id := p.PluginID()
	if id == "" {
		return fmt.Errorf("cannot register plugin without id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store[id]; exists {
		return fmt.Errorf("%w: %s", ErrPluginAlreadyRegistered, id)
	}

	r.store[id] = p
	r.order = append(r.order, id)
	r.views[id] = p.ToDTO()

	if parent, ok := r.store[p.ParentID]; ok && !slices.Contains(parent.ChildIDs, id) {
		parent.ChildIDs = append(parent.ChildIDs, id)
		r.views[parent.PluginID()] = parent.ToDTO()
	}

	if r.metrics != nil {
		r.metrics.PluginsRegistered.WithLabelValues(string(p.Type)).Inc()
	}

	r.log.WithFields(logrus.Fields{
		"plugin_id": id,
		"type":      p.Type,
		"class":     p.Class,
	}).Debug("Plugin registered")

	return nil
}

// Remove unregisters a plugin. A plugin with registered children cannot be removed.
func (r *InMemory) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.store[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}

	for _, otherID := range r.order {
		other := r.store[otherID]
		if other.ParentID == id || slices.Contains(p.ChildIDs, otherID) {
			return fmt.Errorf("%w: %s is parent of %s", ErrPluginHasChildren, id, otherID)
		}
	}

	delete(r.store, id)
	delete(r.views, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })

	if parent, ok := r.store[p.ParentID]; ok {
		parent.ChildIDs = slices.DeleteFunc(slices.Clone(parent.ChildIDs), func(s string) bool { return s == id })
		r.views[parent.PluginID()] = parent.ToDTO()
	}

	if r.metrics != nil {
		r.metrics.PluginsRegistered.WithLabelValues(string(p.Type)).Dec()
	}

	r.log.WithField("plugin_id", id).Debug("Plugin removed")
	return nil
}

// Plugin returns the live entry for id
func (r *InMemory) Plugin(_ context.Context, id string) (*plugins.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.store[id]
	return p, ok
}

// Plugins returns every live entry in registration order
func (r *InMemory) Plugins(_ context.Context) []*plugins.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*plugins.Plugin, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.store[id])
	}
	return result
}

// Parent resolves the parent of id. It returns false when id is unknown, has no
// parent, or its parent is not registered.
func (r *InMemory) Parent(_ context.Context, id string) (*plugins.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.store[id]
	if !ok || p.ParentID == "" {
		return nil, false
	}
	parent, ok := r.store[p.ParentID]
	return parent, ok
}

// Children resolves the registered children of id, in the order the parent lists them
func (r *InMemory) Children(_ context.Context, id string) []*plugins.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.store[id]
	if !ok {
		return nil
	}

	var result []*plugins.Plugin
	for _, childID := range p.ChildIDs {
		if child, registered := r.store[childID]; registered {
			result = append(result, child)
		}
	}
	return result
}

// RegisterClient attaches a backend handle to id and republishes its view
func (r *InMemory) RegisterClient(_ context.Context, id string, client backendplugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.store[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}

	p.RegisterClient(client)
	r.views[id] = p.ToDTO()

	r.log.WithFields(logrus.Fields{
		"plugin_id": id,
		"streaming": backendplugin.SupportsStreaming(client),
	}).Debug("Backend client attached")
	return nil
}

// Publish replaces the published view of id with a fresh snapshot
func (r *InMemory) Publish(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.store[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	r.views[id] = p.ToDTO()
	return nil
}

// DTO returns the published view of id
func (r *InMemory) DTO(_ context.Context, id string) (plugins.PluginDTO, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dto, ok := r.views[id]
	return dto, ok
}

// DTOs returns every published view in registration order
func (r *InMemory) DTOs(_ context.Context) []plugins.PluginDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]plugins.PluginDTO, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.views[id])
	}
	return result
}

// Count returns the number of registered plugins
func (r *InMemory) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.store)
}
