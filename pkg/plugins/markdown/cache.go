// Package markdown caches plugin documentation and drops cached pages when the files
// behind them change on disk.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSize = 256

	cacheType = "markdown"
)

// Source is a plugin whose documentation can be read. plugins.PluginDTO implements it.
type Source interface {
	ID() string
	Markdown(name string) []byte
}

// Option configures a Cache
type Option func(*Cache)

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(c *Cache) { c.otelMetrics = m }
}

// WithTTL expires entries after ttl even when nothing changed on disk
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// Cache memoizes Markdown lookups per plugin and upper-cased page name
type Cache struct {
	cache       *lru.LRU[string, []byte]
	ttl         time.Duration
	log         logrus.FieldLogger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
}

// NewCache creates a cache holding at most size pages (DefaultSize when size <= 0)
func NewCache(size int, opts ...Option) *Cache {
	if size <= 0 {
		size = DefaultSize
	}

	c := &Cache{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "markdown")
	c.cache = lru.NewLRU[string, []byte](size, nil, c.ttl)
	return c
}

func cacheKey(pluginID, name string) string {
	return pluginID + "/" + strings.ToUpper(name)
}

// Get returns the named page of src, reading it through on a miss. Missing pages are
// cached as empty until invalidated.
func (c *Cache) Get(ctx context.Context, src Source, name string) []byte {
	key := cacheKey(src.ID(), name)

	if data, ok := c.cache.Get(key); ok {
		c.recordHit(ctx)
		return bytes.Clone(data)
	}

	c.recordMiss(ctx)
	data := src.Markdown(name)
	c.cache.Add(key, bytes.Clone(data))
	return data
}

// Invalidate drops every cached page of pluginID
func (c *Cache) Invalidate(pluginID string) int {
	prefix := pluginID + "/"
	removed := 0
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) && c.cache.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len returns the number of cached pages
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Watch invalidates a plugin's pages whenever a .md file anywhere below its directory
// is written, created, removed or renamed. Directories created later are watched as
// they appear. A plugin nested inside another plugin's directory owns its own subtree.
// Core plugins and plugins without files are not watched. Watch blocks until ctx is
// done.
func (c *Cache) Watch(ctx context.Context, dtos []plugins.PluginDTO) error {
	defer observability.RecoverPanic(c.log, "markdown watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	w := &treeWatcher{
		watcher: watcher,
		roots:   make(map[string]string),
		owners:  make(map[string]string),
		log:     c.log,
	}
	for _, dto := range dtos {
		route := dto.StaticRoute()
		if route == nil || route.Directory == "" {
			continue
		}
		w.roots[filepath.Clean(route.Directory)] = dto.ID()
	}
	for dir, pluginID := range w.roots {
		w.addTree(dir, pluginID)
	}

	c.log.Debugf("Watching %d directories of %d plugins for documentation changes", len(w.owners), len(w.roots))

	const ops = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&ops == 0 {
				continue
			}
			pluginID, owned := w.owners[filepath.Dir(event.Name)]
			if !owned {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					w.addTree(event.Name, pluginID)
					// pages may have been written before the watch was in place
					c.Invalidate(pluginID)
					continue
				}
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
				continue
			}

			n := c.Invalidate(pluginID)
			c.log.WithFields(logrus.Fields{
				"plugin_id": pluginID,
				"file":      filepath.Base(event.Name),
				"evicted":   n,
			}).Debug("Documentation changed")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.WithError(err).Warn("Markdown watcher error")
		}
	}
}

// treeWatcher maps every watched directory to the plugin owning it
type treeWatcher struct {
	watcher *fsnotify.Watcher
	roots   map[string]string
	owners  map[string]string
	log     logrus.FieldLogger
}

// addTree watches dir and every directory below it, stopping at the roots of other
// plugins
func (w *treeWatcher) addTree(dir, pluginID string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if other, ok := w.roots[p]; ok && other != pluginID {
			return fs.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.log.WithField("plugin_id", pluginID).Warnf("Failed to watch %s: %v", p, err)
			return fs.SkipDir
		}
		w.owners[p] = pluginID
		return nil
	})
}

func (c *Cache) recordHit(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(cacheType).Inc()
	}
	c.otelMetrics.RecordCacheHit(ctx, cacheType)
}

func (c *Cache) recordMiss(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
	c.otelMetrics.RecordCacheMiss(ctx, cacheType)
}
