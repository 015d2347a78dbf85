package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidPluginJSON is wrapped by every plugin.json validation failure
var ErrInvalidPluginJSON = errors.New("did not find valid type or id properties in plugin.json")

// TypeDashboard is the include type for bundled dashboards
const TypeDashboard = "dashboard"

// JSONData represents a plugin's plugin.json
type JSONData struct {
	// Common settings
	ID           string       `json:"id"`
	Type         Type         `json:"type"`
	Name         string       `json:"name"`
	Info         Info         `json:"info"`
	Dependencies Dependencies `json:"dependencies"`
	Includes     []*Includes  `json:"includes"`
	State        ReleaseState `json:"state,omitempty"`
	Category     string       `json:"category"`
	HideFromList bool         `json:"hideFromList,omitempty"`
	Preload      bool         `json:"preload"`
	Backend      bool         `json:"backend"`
	Routes       []*Route     `json:"routes"`

	// AccessControl settings
	Roles []RoleRegistration `json:"roles,omitempty"`

	// Panel settings
	SkipDataQuery bool `json:"skipDataQuery"`

	// App settings
	AutoEnabled bool `json:"autoEnabled"`

	// Datasource settings
	Annotations  bool            `json:"annotations"`
	Metrics      bool            `json:"metrics"`
	Alerting     bool            `json:"alerting"`
	Explore      bool            `json:"explore"`
	Table        bool            `json:"tables"`
	Logs         bool            `json:"logs"`
	Tracing      bool            `json:"tracing"`
	QueryOptions map[string]bool `json:"queryOptions,omitempty"`
	BuiltIn      bool            `json:"builtIn,omitempty"`
	Mixed        bool            `json:"mixed,omitempty"`
	Streaming    bool            `json:"streaming"`
	SDK          bool            `json:"sdk,omitempty"`

	// Backend (Datasource + Renderer + SecretsManager)
	Executable string `json:"executable,omitempty"`
}

// Info holds descriptive plugin metadata
type Info struct {
	Author      InfoLink      `json:"author"`
	Description string        `json:"description"`
	Links       []InfoLink    `json:"links"`
	Logos       Logos         `json:"logos"`
	Build       BuildInfo     `json:"build"`
	Screenshots []Screenshots `json:"screenshots"`
	Version     string        `json:"version"`
	Updated     string        `json:"updated"`
	Keywords    []string      `json:"keywords"`
}

type InfoLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Logos struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

type Screenshots struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type BuildInfo struct {
	Time   int64  `json:"time,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	Hash   string `json:"hash,omitempty"`
}

// Dependencies lists the host version and plugins a plugin requires
type Dependencies struct {
	HostDependency string       `json:"grafanaDependency"`
	HostVersion    string       `json:"grafanaVersion"`
	Plugins        []Dependency `json:"plugins"`
}

type Dependency struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Includes is content bundled with a plugin, tagged by Type (e.g. dashboard, page)
type Includes struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Type       string   `json:"type"`
	Component  string   `json:"component"`
	Role       RoleType `json:"role"`
	AddToNav   bool     `json:"addToNav"`
	DefaultNav bool     `json:"defaultNav"`
	Slug       string   `json:"slug"`
	Icon       string   `json:"icon"`
	UID        string   `json:"uid"`
}

// RoleRegistration declares a role a plugin contributes to access control
type RoleRegistration struct {
	Role   Role     `json:"role"`
	Grants []string `json:"grants"`
}

type Role struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

type Permission struct {
	Action string `json:"action"`
	Scope  string `json:"scope"`
}

// Route describes a plugin route that is defined in
// the plugin.json file for a plugin.
type Route struct {
	Path         string          `json:"path"`
	Method       string          `json:"method"`
	ReqRole      RoleType        `json:"reqRole"`
	URL          string          `json:"url"`
	URLParams    []URLParam      `json:"urlParams"`
	Headers      []Header        `json:"headers"`
	AuthType     string          `json:"authType"`
	TokenAuth    *JWTTokenAuth   `json:"tokenAuth"`
	JwtTokenAuth *JWTTokenAuth   `json:"jwtTokenAuth"`
	Body         json.RawMessage `json:"body"`
}

// Header describes an HTTP header that is forwarded with
// the proxied request for a plugin route
type Header struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// URLParam describes query string parameters for
// a url in a plugin route
type URLParam struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// JWTTokenAuth is both for normal Token Auth and JWT Token Auth with
// an uploaded JWT file.
type JWTTokenAuth struct {
	Url    string            `json:"url"`
	Scopes []string          `json:"scopes"`
	Params map[string]string `json:"params"`
}

// DashboardIncludes returns the dashboard includes in declaration order. The result is
// never nil.
func (d JSONData) DashboardIncludes() []*Includes {
	result := []*Includes{}
	for _, include := range d.Includes {
		if include != nil && include.Type == TypeDashboard {
			result = append(result, include)
		}
	}

	return result
}

// Validate checks the fields the host depends on. Unknown types are rejected here
// rather than at decode time.
func (d JSONData) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPluginJSON)
	}

	if !d.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q for plugin %s", ErrInvalidPluginJSON, d.Type, d.ID)
	}

	for _, route := range d.Routes {
		if route == nil {
			continue
		}
		if route.ReqRole != "" && !route.ReqRole.IsValid() {
			return fmt.Errorf("%w: route %s has unknown reqRole %q", ErrInvalidPluginJSON, route.Path, route.ReqRole)
		}
	}

	return nil
}

// ReadPluginJSON decodes and validates a plugin.json document. Unknown fields are ignored.
func ReadPluginJSON(reader io.Reader) (JSONData, error) {
	plugin := JSONData{}
	if err := json.NewDecoder(reader).Decode(&plugin); err != nil {
		return JSONData{}, fmt.Errorf("failed to parse plugin.json: %w", err)
	}

	if err := plugin.Validate(); err != nil {
		return JSONData{}, err
	}

	// Renderers and secrets managers always run a backend
	if plugin.Type == Renderer || plugin.Type == SecretsManager {
		plugin.Backend = true
	}

	if plugin.Dependencies.HostDependency == "" && plugin.Dependencies.HostVersion != "" {
		plugin.Dependencies.HostDependency = ">=" + plugin.Dependencies.HostVersion
	}

	plugin.Includes = compactIncludes(plugin.Includes)
	plugin.Routes = compactRoutes(plugin.Routes)

	return plugin, nil
}

// compactIncludes drops null entries. The result is never nil.
func compactIncludes(includes []*Includes) []*Includes {
	out := make([]*Includes, 0, len(includes))
	for _, include := range includes {
		if include != nil {
			out = append(out, include)
		}
	}
	return out
}

func compactRoutes(routes []*Route) []*Route {
	if routes == nil {
		return nil
	}
	out := make([]*Route, 0, len(routes))
	for _, route := range routes {
		if route != nil {
			out = append(out, route)
		}
	}
	return out
}

// clone returns a deep copy, so slices, maps and pointed-to values are not shared
func (d JSONData) clone() JSONData {
	out := d

	out.Info.Links = append([]InfoLink(nil), d.Info.Links...)
	out.Info.Screenshots = append([]Screenshots(nil), d.Info.Screenshots...)
	out.Info.Keywords = append([]string(nil), d.Info.Keywords...)
	out.Dependencies.Plugins = append([]Dependency(nil), d.Dependencies.Plugins...)

	if d.Includes != nil {
		out.Includes = make([]*Includes, len(d.Includes))
		for i, inc := range d.Includes {
			if inc != nil {
				c := *inc
				out.Includes[i] = &c
			}
		}
	}

	if d.Routes != nil {
		out.Routes = make([]*Route, len(d.Routes))
		for i, r := range d.Routes {
			if r != nil {
				out.Routes[i] = r.clone()
			}
		}
	}

	if d.Roles != nil {
		out.Roles = make([]RoleRegistration, len(d.Roles))
		for i, r := range d.Roles {
			out.Roles[i] = RoleRegistration{
				Role: Role{
					Name:        r.Role.Name,
					Description: r.Role.Description,
					Permissions: append([]Permission(nil), r.Role.Permissions...),
				},
				Grants: append([]string(nil), r.Grants...),
			}
		}
	}

	if d.QueryOptions != nil {
		out.QueryOptions = make(map[string]bool, len(d.QueryOptions))
		for k, v := range d.QueryOptions {
			out.QueryOptions[k] = v
		}
	}

	return out
}

func (r *Route) clone() *Route {
	out := *r
	out.URLParams = append([]URLParam(nil), r.URLParams...)
	out.Headers = append([]Header(nil), r.Headers...)
	out.Body = append(json.RawMessage(nil), r.Body...)
	out.TokenAuth = r.TokenAuth.clone()
	out.JwtTokenAuth = r.JwtTokenAuth.clone()
	return &out
}

func (a *JWTTokenAuth) clone() *JWTTokenAuth {
	if a == nil {
		return nil
	}
	out := &JWTTokenAuth{
		Url:    a.Url,
		Scopes: append([]string(nil), a.Scopes...),
	}
	if a.Params != nil {
		out.Params = make(map[string]string, len(a.Params))
		for k, v := range a.Params {
			out.Params[k] = v
		}
	}
	return out
}
