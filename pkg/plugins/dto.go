package plugins

import (
	"io"
	"time"
)

// PluginDTO is a read-only snapshot of a Plugin. It has no path back to the live
// backend client and does not observe later changes to the Plugin it came from.
type PluginDTO struct {
	jsonData JSONData
	files    FS
	class    Class

	includedInAppID string
	defaultNavURL   string
	pinned          bool

	signature      SignatureStatus
	signatureType  SignatureType
	signatureOrg   string
	signedFiles    PluginFiles
	signatureError *SignatureError

	module  string
	baseURL string

	parentID string
	childIDs []string

	supportsStreaming bool
}

// NewPluginDTO builds a view for a plugin that has no files or backend, e.g. in tests
// or for metadata-only listings.
func NewPluginDTO(jsonData JSONData, class Class) PluginDTO {
	return PluginDTO{
		jsonData: jsonData.clone(),
		class:    class,
	}
}

func (p PluginDTO) ID() string                   { return p.jsonData.ID }
func (p PluginDTO) Type() Type                   { return p.jsonData.Type }
func (p PluginDTO) Name() string                 { return p.jsonData.Name }
func (p PluginDTO) Info() Info                   { return p.jsonData.clone().Info }
func (p PluginDTO) State() ReleaseState          { return p.jsonData.State }
func (p PluginDTO) Backend() bool                { return p.jsonData.Backend }
func (p PluginDTO) Class() Class                 { return p.class }
func (p PluginDTO) IncludedInAppID() string      { return p.includedInAppID }
func (p PluginDTO) DefaultNavURL() string        { return p.defaultNavURL }
func (p PluginDTO) Pinned() bool                 { return p.pinned }
func (p PluginDTO) Signature() SignatureStatus   { return p.signature }
func (p PluginDTO) SignatureType() SignatureType { return p.signatureType }
func (p PluginDTO) SignatureOrg() string         { return p.signatureOrg }
func (p PluginDTO) Module() string               { return p.module }
func (p PluginDTO) BaseURL() string              { return p.baseURL }
func (p PluginDTO) ParentID() string             { return p.parentID }

// JSONData returns a copy of the manifest
func (p PluginDTO) JSONData() JSONData {
	return p.jsonData.clone()
}

// SignedFiles returns a copy of the set of signed files
func (p PluginDTO) SignedFiles() PluginFiles {
	return p.signedFiles.clone()
}

// SignatureError returns a copy of the signature failure, or nil
func (p PluginDTO) SignatureError() *SignatureError {
	return p.signatureError.clone()
}

func (p PluginDTO) ChildIDs() []string {
	return append([]string(nil), p.childIDs...)
}

func (p PluginDTO) Includes() []*Includes {
	return p.jsonData.clone().Includes
}

func (p PluginDTO) DashboardIncludes() []*Includes {
	return p.jsonData.clone().DashboardIncludes()
}

func (p PluginDTO) Routes() []*Route {
	return p.jsonData.clone().Routes
}

// Upgradeable reports whether the plugin can be updated independently of the host
func (p PluginDTO) Upgradeable() bool {
	return !p.IsCorePlugin()
}

// SupportsStreaming reports whether the backend served streams when the view was taken
func (p PluginDTO) SupportsStreaming() bool {
	return p.supportsStreaming
}

func (p PluginDTO) IsApp() bool {
	return p.jsonData.Type == App
}

func (p PluginDTO) IsDataSource() bool {
	return p.jsonData.Type == DataSource
}

func (p PluginDTO) IsPanel() bool {
	return p.jsonData.Type == Panel
}

func (p PluginDTO) IsRenderer() bool {
	return p.jsonData.Type == Renderer
}

// IsSecretsManager is derived from the manifest type
func (p PluginDTO) IsSecretsManager() bool {
	return p.jsonData.Type == SecretsManager
}

func (p PluginDTO) IsCorePlugin() bool {
	return p.class == Core
}

func (p PluginDTO) IsBundledPlugin() bool {
	return p.class == Bundled
}

func (p PluginDTO) IsExternalPlugin() bool {
	return p.class == External
}

func (p PluginDTO) Markdown(name string) []byte {
	return readMarkdown(p.files, name)
}

func (p PluginDTO) File(name string) (io.ReadSeeker, time.Time, error) {
	return readFile(p.files, name)
}

func (p PluginDTO) StaticRoute() *StaticRoute {
	if p.IsCorePlugin() {
		return nil
	}
	return staticRoute(p.jsonData.ID, p.files)
}
