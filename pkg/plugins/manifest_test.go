package plugins

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardIncludes(t *testing.T) {
	first := &Includes{Name: "first", Type: TypeDashboard}
	page := &Includes{Name: "page", Type: "page"}
	second := &Includes{Name: "second", Type: TypeDashboard}

	data := JSONData{Includes: []*Includes{first, page, second}}

	dashboards := data.DashboardIncludes()
	require.Len(t, dashboards, 2)
	assert.Same(t, first, dashboards[0])
	assert.Same(t, second, dashboards[1])

	dashboards[0] = page
	assert.Same(t, first, data.Includes[0], "result must be a new slice")
}

func TestDashboardIncludes_Empty(t *testing.T) {
	dashboards := JSONData{}.DashboardIncludes()
	assert.NotNil(t, dashboards)
	assert.Empty(t, dashboards)
}

func TestDashboardIncludes_NilEntries(t *testing.T) {
	data := JSONData{Includes: []*Includes{nil, {Name: "Overview", Type: TypeDashboard}, nil}}

	var dashboards []*Includes
	require.NotPanics(t, func() { dashboards = data.DashboardIncludes() })
	require.Len(t, dashboards, 1)
	assert.Equal(t, "Overview", dashboards[0].Name)
}

func TestReadPluginJSON(t *testing.T) {
	doc := `{
		"id": "test-datasource",
		"type": "datasource",
		"name": "Test",
		"backend": true,
		"executable": "gpx_test",
		"unknownField": {"nested": true},
		"info": {"version": "1.2.3", "keywords": ["test"]},
		"dependencies": {"grafanaVersion": "9.0.0"},
		"queryOptions": {"maxDataPoints": true},
		"routes": [{
			"path": "api",
			"method": "GET",
			"reqRole": "Editor",
			"url": "https://example.com",
			"headers": [{"name": "X-Key", "content": "{{ .SecureJsonData.key }}"}],
			"urlParams": [{"name": "token", "content": "abc"}],
			"tokenAuth": {"url": "https://auth.example.com", "scopes": ["read"], "params": {"grant_type": "client_credentials"}},
			"body": {"query": "x"}
		}]
	}`

	data, err := ReadPluginJSON(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "test-datasource", data.ID)
	assert.Equal(t, DataSource, data.Type)
	assert.Equal(t, "1.2.3", data.Info.Version)
	assert.Equal(t, ">=9.0.0", data.Dependencies.HostDependency)
	assert.True(t, data.QueryOptions["maxDataPoints"])
	assert.NotNil(t, data.Includes)

	require.Len(t, data.Routes, 1)
	route := data.Routes[0]
	assert.Equal(t, RoleEditor, route.ReqRole)
	assert.Equal(t, []Header{{Name: "X-Key", Content: "{{ .SecureJsonData.key }}"}}, route.Headers)
	assert.Equal(t, []URLParam{{Name: "token", Content: "abc"}}, route.URLParams)
	require.NotNil(t, route.TokenAuth)
	assert.Equal(t, []string{"read"}, route.TokenAuth.Scopes)
	assert.Nil(t, route.JwtTokenAuth)
	assert.JSONEq(t, `{"query":"x"}`, string(route.Body))
}

func TestReadPluginJSON_Defaults(t *testing.T) {
	data, err := ReadPluginJSON(strings.NewReader(`{"id":"renderer","type":"renderer"}`))
	require.NoError(t, err)

	assert.True(t, data.Backend)
	assert.False(t, data.Preload)
	assert.False(t, data.Streaming)
	assert.Empty(t, data.Routes)
}

func TestReadPluginJSON_DropsNullEntries(t *testing.T) {
	data, err := ReadPluginJSON(strings.NewReader(`{
		"id": "a",
		"type": "app",
		"includes": [null, {"type": "dashboard", "name": "Overview"}, null],
		"routes": [null, {"path": "api", "url": "https://example.com"}]
	}`))
	require.NoError(t, err)

	require.Len(t, data.Includes, 1)
	assert.NotNil(t, data.Includes[0])
	require.Len(t, data.Routes, 1)
	assert.Equal(t, "api", data.Routes[0].Path)

	require.NotPanics(t, func() { data.DashboardIncludes() })
	assert.Len(t, data.DashboardIncludes(), 1)

	dto := NewPluginDTO(data, External)
	require.NotPanics(t, func() { dto.DashboardIncludes() })
	assert.Len(t, dto.Includes(), 1)
}

func TestReadPluginJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", `{"type":"panel"}`},
		{"unknown type", `{"id":"x","type":"bogus"}`},
		{"bad route role", `{"id":"x","type":"app","routes":[{"path":"a","reqRole":"Owner"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPluginJSON(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidPluginJSON)
		})
	}

	_, err := ReadPluginJSON(strings.NewReader(`{not json`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPluginJSON)
}

func TestJSONData_Clone(t *testing.T) {
	orig := JSONData{
		ID:           "test",
		Type:         App,
		Includes:     []*Includes{{Name: "dash", Type: TypeDashboard}},
		Routes:       []*Route{{Path: "a", Headers: []Header{{Name: "h"}}, JwtTokenAuth: &JWTTokenAuth{Params: map[string]string{"k": "v"}}}},
		QueryOptions: map[string]bool{"a": true},
		Roles:        []RoleRegistration{{Role: Role{Name: "r", Permissions: []Permission{{Action: "read"}}}, Grants: []string{"Viewer"}}},
		Info:         Info{Keywords: []string{"one"}},
	}

	cp := orig.clone()

	cp.Includes[0].Name = "changed"
	cp.Routes[0].Headers[0].Name = "changed"
	cp.Routes[0].JwtTokenAuth.Params["k"] = "changed"
	cp.QueryOptions["a"] = false
	cp.Roles[0].Role.Permissions[0].Action = "changed"
	cp.Roles[0].Grants[0] = "changed"
	cp.Info.Keywords[0] = "changed"

	assert.Equal(t, "dash", orig.Includes[0].Name)
	assert.Equal(t, "h", orig.Routes[0].Headers[0].Name)
	assert.Equal(t, "v", orig.Routes[0].JwtTokenAuth.Params["k"])
	assert.True(t, orig.QueryOptions["a"])
	assert.Equal(t, "read", orig.Roles[0].Role.Permissions[0].Action)
	assert.Equal(t, "Viewer", orig.Roles[0].Grants[0])
	assert.Equal(t, "one", orig.Info.Keywords[0])
}
