package plugins

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"github.com/sirupsen/logrus"
)

const manifestFile = "MANIFEST.txt"

// Plugin is the registry's authoritative, mutable record of one installed plugin.
// A Plugin must not be copied after creation.
type Plugin struct {
	JSONData

	Files FS
	Class Class

	// App fields
	IncludedInAppID string
	DefaultNavURL   string
	Pinned          bool

	// Signature fields
	Signature      SignatureStatus
	SignatureType  SignatureType
	SignatureOrg   string
	SignedFiles    PluginFiles
	SignatureError *SignatureError

	// SystemJS fields
	Module  string
	BaseURL string

	// Relationships are stored as plugin ids and resolved through the registry
	ParentID string
	ChildIDs []string

	client atomic.Pointer[clientRef]
	log    logrus.FieldLogger
}

type clientRef struct {
	plugin backendplugin.Plugin
}

// PluginID returns the manifest id
func (p *Plugin) PluginID() string {
	return p.ID
}

// Logger returns the plugin logger, falling back to the standard logger
func (p *Plugin) Logger() logrus.FieldLogger {
	if p.log == nil {
		return logrus.StandardLogger().WithField("plugin_id", p.ID)
	}
	return p.log
}

// SetLogger replaces the plugin logger
func (p *Plugin) SetLogger(l logrus.FieldLogger) {
	p.log = l
}

// RegisterClient attaches c, replacing any previous client. A nil client is ignored.
func (p *Plugin) RegisterClient(c backendplugin.Plugin) {
	if c == nil {
		return
	}
	p.client.Store(&clientRef{plugin: c})
}

// Client returns the attached backend client, if any
func (p *Plugin) Client() (backendplugin.Plugin, bool) {
	ref := p.client.Load()
	if ref == nil {
		return nil, false
	}
	return ref.plugin, true
}

func (p *Plugin) Start(ctx context.Context) error {
	c, ok := p.Client()
	if !ok {
		return backendplugin.ErrPluginUnavailable
	}
	return c.Start(ctx)
}

func (p *Plugin) Stop(ctx context.Context) error {
	c, ok := p.Client()
	if !ok {
		return nil
	}
	return c.Stop(ctx)
}

func (p *Plugin) IsManaged() bool {
	if c, ok := p.Client(); ok {
		return c.IsManaged()
	}
	return false
}

func (p *Plugin) Decommission() error {
	if c, ok := p.Client(); ok {
		return c.Decommission()
	}
	return nil
}

func (p *Plugin) IsDecommissioned() bool {
	if c, ok := p.Client(); ok {
		return c.IsDecommissioned()
	}
	return false
}

func (p *Plugin) Exited() bool {
	if c, ok := p.Client(); ok {
		return c.Exited()
	}
	return false
}

func (p *Plugin) QueryData(ctx context.Context, req *backend.QueryDataRequest) (*backend.QueryDataResponse, error) {
	c, ok := p.Client()
	if !ok {
		return nil, backendplugin.ErrPluginUnavailable
	}
	return c.QueryData(ctx, req)
}

func (p *Plugin) CallResource(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	c, ok := p.Client()
	if !ok {
		return backendplugin.ErrPluginUnavailable
	}
	return c.CallResource(ctx, req, sender)
}

func (p *Plugin) CheckHealth(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
	c, ok := p.Client()
	if !ok {
		return nil, backendplugin.ErrPluginUnavailable
	}
	return c.CheckHealth(ctx, req)
}

func (p *Plugin) CollectMetrics(ctx context.Context, req *backend.CollectMetricsRequest) (*backend.CollectMetricsResult, error) {
	c, ok := p.Client()
	if !ok {
		return nil, backendplugin.ErrPluginUnavailable
	}
	return c.CollectMetrics(ctx, req)
}

func (p *Plugin) SubscribeStream(ctx context.Context, req *backend.SubscribeStreamRequest) (*backend.SubscribeStreamResponse, error) {
	s, err := p.streamHandler()
	if err != nil {
		return nil, err
	}
	return s.SubscribeStream(ctx, req)
}

func (p *Plugin) PublishStream(ctx context.Context, req *backend.PublishStreamRequest) (*backend.PublishStreamResponse, error) {
	s, err := p.streamHandler()
	if err != nil {
		return nil, err
	}
	return s.PublishStream(ctx, req)
}

func (p *Plugin) RunStream(ctx context.Context, req *backend.RunStreamRequest, sender *backend.StreamSender) error {
	s, err := p.streamHandler()
	if err != nil {
		return err
	}
	return s.RunStream(ctx, req, sender)
}

func (p *Plugin) streamHandler() (backend.StreamHandler, error) {
	c, ok := p.Client()
	if !ok {
		return nil, backendplugin.ErrPluginUnavailable
	}
	s, ok := c.(backend.StreamHandler)
	if !ok {
		return nil, backendplugin.ErrMethodNotImplemented
	}
	return s, nil
}

// ExecutablePath returns the backend binary for the current platform, or "" when the
// plugin ships none.
func (p *Plugin) ExecutablePath() string {
	return p.ExecutablePathFor(CurrentPlatform())
}

// ExecutablePathFor returns the backend binary for platform, or "" when no such file exists
func (p *Plugin) ExecutablePathFor(platform Platform) string {
	base := p.Executable
	switch {
	case p.IsRenderer():
		base = "plugin_start"
	case p.IsSecretsManager():
		base = "secrets_plugin_start"
	}

	if base == "" || p.Files == nil {
		return ""
	}

	fp, exists := p.Files.FullPath(platform.executable(base))
	if !exists {
		return ""
	}
	return fp
}

// Manifest returns the signature manifest, or an empty slice if it cannot be read
func (p *Plugin) Manifest() []byte {
	if p.Files == nil {
		return []byte{}
	}

	f, err := p.Files.Open(manifestFile)
	if err != nil {
		return []byte{}
	}
	defer f.Close()

	m, err := io.ReadAll(f)
	if err != nil {
		return []byte{}
	}
	return m
}

// Markdown returns the named documentation file, matched upper-case first
func (p *Plugin) Markdown(name string) []byte {
	return readMarkdown(p.Files, name)
}

// File returns the fully buffered content of name and its modification time
func (p *Plugin) File(name string) (io.ReadSeeker, time.Time, error) {
	return readFile(p.Files, name)
}

// StaticRoute returns the route serving the plugin's assets. Core plugins have none.
func (p *Plugin) StaticRoute() *StaticRoute {
	if p.IsCorePlugin() {
		return nil
	}
	return staticRoute(p.ID, p.Files)
}

// ToDTO exports a point-in-time view that shares no mutable state with p
func (p *Plugin) ToDTO() PluginDTO {
	c, _ := p.Client()
	return PluginDTO{
		files:             p.Files,
		class:             p.Class,
		signedFiles:       p.SignedFiles.clone(),
		supportsStreaming: backendplugin.SupportsStreaming(c),
		jsonData:          p.JSONData.clone(),
		includedInAppID:   p.IncludedInAppID,
		defaultNavURL:     p.DefaultNavURL,
		pinned:            p.Pinned,
		signature:         p.Signature,
		signatureType:     p.SignatureType,
		signatureOrg:      p.SignatureOrg,
		signatureError:    p.SignatureError.clone(),
		module:            p.Module,
		baseURL:           p.BaseURL,
		parentID:          p.ParentID,
		childIDs:          append([]string(nil), p.ChildIDs...),
	}
}

func (p *Plugin) IsRenderer() bool {
	return p.Type == Renderer
}

func (p *Plugin) IsSecretsManager() bool {
	return p.Type == SecretsManager
}

func (p *Plugin) IsDataSource() bool {
	return p.Type == DataSource
}

func (p *Plugin) IsPanel() bool {
	return p.Type == Panel
}

func (p *Plugin) IsApp() bool {
	return p.Type == App
}

func (p *Plugin) IsCorePlugin() bool {
	return p.Class == Core
}

func (p *Plugin) IsBundledPlugin() bool {
	return p.Class == Bundled
}

func (p *Plugin) IsExternalPlugin() bool {
	return p.Class == External
}

func readMarkdown(files FS, name string) []byte {
	if files == nil {
		return []byte{}
	}

	p := markdownPath(strings.ToUpper(name))
	if !files.Exists(p) {
		p = markdownPath(strings.ToLower(name))
	}
	if !files.Exists(p) {
		return []byte{}
	}

	data, err := files.Read(p)
	if err != nil || data == nil {
		return []byte{}
	}
	return data
}

func markdownPath(name string) string {
	return path.Clean(path.Join("/", name+".md"))
}

func readFile(files FS, name string) (io.ReadSeeker, time.Time, error) {
	if files == nil {
		return nil, time.Time{}, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	f, err := files.Open(name)
	if err != nil {
		return nil, time.Time{}, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, time.Time{}, err
	}

	b, err := io.ReadAll(f)
	if err != nil {
		_ = f.Close()
		return nil, time.Time{}, err
	}

	if err := f.Close(); err != nil {
		return nil, time.Time{}, err
	}

	return bytes.NewReader(b), fi.ModTime(), nil
}

func staticRoute(id string, files FS) *StaticRoute {
	dir := ""
	if files != nil {
		dir = files.Base()
	}
	return &StaticRoute{PluginID: id, Directory: dir}
}

// IsUnavailable reports whether err means the plugin has no attached backend
func IsUnavailable(err error) bool {
	return errors.Is(err, backendplugin.ErrPluginUnavailable)
}
