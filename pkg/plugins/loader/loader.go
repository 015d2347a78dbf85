// Package loader discovers plugin.json descriptors on disk and turns them into
// registry entries.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/sirupsen/logrus"
)

const descriptorFile = "plugin.json"

// Registry is where LoadInto places discovered plugins
type Registry interface {
	Add(ctx context.Context, p *plugins.Plugin) error
}

// Loader discovers plugins from filesystem directories
type Loader struct {
	pluginDirs []string
	class      plugins.Class
	log        logrus.FieldLogger
}

// NewLoader creates a loader assigning class to every plugin found under dirs
func NewLoader(dirs []string, class plugins.Class, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Loader{
		pluginDirs: dirs,
		class:      class,
		log:        log.WithField("component", "loader"),
	}
}

type discovered struct {
	dir    string
	plugin *plugins.Plugin
}

// DiscoverPlugins scans plugin directories and returns discovered plugins, parents
// before their children. Invalid descriptors are logged and skipped.
func (l *Loader) DiscoverPlugins(ctx context.Context) ([]*plugins.Plugin, error) {
	var found []discovered
	seen := make(map[string]string)

	for _, dir := range l.pluginDirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			l.log.Debugf("Plugin directory does not exist: %s", dir)
			continue
		}

		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				l.log.Warnf("Failed to read %s: %v", p, err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() || d.Name() != descriptorFile {
				return nil
			}

			pluginDir := filepath.Dir(p)
			plugin, err := l.loadPluginFromDir(pluginDir)
			if err != nil {
				l.log.Warnf("Failed to load plugin from %s: %v", pluginDir, err)
				return nil
			}

			if prev, dup := seen[plugin.ID]; dup {
				l.log.WithField("plugin_id", plugin.ID).Warnf("Duplicate plugin in %s, already found in %s", pluginDir, prev)
				return nil
			}
			seen[plugin.ID] = pluginDir

			found = append(found, discovered{dir: pluginDir, plugin: plugin})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin directory %s: %w", dir, err)
		}
	}

	// Parents sit higher in the tree than their children.
	sort.SliceStable(found, func(i, j int) bool {
		return depth(found[i].dir) < depth(found[j].dir)
	})

	linkNested(found)

	result := make([]*plugins.Plugin, 0, len(found))
	for _, d := range found {
		result = append(result, d.plugin)
	}
	return result, nil
}

// LoadInto discovers plugins and adds them to r, parents first. A plugin the registry
// refuses is logged and skipped; the number of added plugins is returned.
func (l *Loader) LoadInto(ctx context.Context, r Registry) (int, error) {
	found, err := l.DiscoverPlugins(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, p := range found {
		if err := r.Add(ctx, p); err != nil {
			l.log.WithField("plugin_id", p.ID).Warnf("Failed to register plugin: %v", err)
			continue
		}
		added++
		l.log.Infof("Loaded plugin: %s v%s (type: %s)", p.Name, p.Info.Version, p.Type)
	}
	return added, nil
}

// loadPluginFromDir builds an entry from the descriptor in pluginDir
func (l *Loader) loadPluginFromDir(pluginDir string) (*plugins.Plugin, error) {
	f, err := os.Open(filepath.Join(pluginDir, descriptorFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	jsonData, err := plugins.ReadPluginJSON(f)
	if err != nil {
		return nil, err
	}

	p := &plugins.Plugin{
		JSONData: jsonData,
		Files:    plugins.NewLocalFS(pluginDir),
		Class:    l.class,
		Module:   path.Join("public/plugins", jsonData.ID, "module"),
		BaseURL:  path.Join("public/plugins", jsonData.ID),
	}

	if l.class == plugins.Core {
		p.Signature = plugins.SignatureInternal
	} else {
		p.Signature = plugins.SignatureUnsigned
	}

	if p.IsApp() {
		p.DefaultNavURL = defaultNavURL(p)
	}

	p.SetLogger(l.log.WithField("plugin_id", p.ID))
	return p, nil
}

// linkNested makes every plugin a child of the closest plugin whose directory contains it.
// found must be ordered parents first.
func linkNested(found []discovered) {
	for i := range found {
		child := &found[i]
		var parent *discovered
		for j := range found[:i] {
			candidate := &found[j]
			if !within(child.dir, candidate.dir) {
				continue
			}
			if parent == nil || len(candidate.dir) > len(parent.dir) {
				parent = candidate
			}
		}
		if parent == nil {
			continue
		}

		child.plugin.ParentID = parent.plugin.ID
		parent.plugin.ChildIDs = append(parent.plugin.ChildIDs, child.plugin.ID)
		if parent.plugin.IsApp() {
			child.plugin.IncludedInAppID = parent.plugin.ID
		}
	}
}

func defaultNavURL(p *plugins.Plugin) string {
	for _, include := range p.Includes {
		if include == nil || !include.DefaultNav {
			continue
		}
		switch include.Type {
		case "page":
			slug := include.Slug
			if slug == "" {
				slug = slugify(include.Name)
			}
			return path.Join("/plugins", p.ID, "page", slug)
		case plugins.TypeDashboard:
			if include.UID != "" {
				return path.Join("/d", include.UID)
			}
		}
	}
	return ""
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func within(dir, parent string) bool {
	rel, err := filepath.Rel(parent, dir)
	if err != nil || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

func depth(dir string) int {
	return strings.Count(filepath.Clean(dir), string(filepath.Separator))
}
