package backend

import (
	"encoding/json"
	"time"
)

// User identifies the host user a request is issued on behalf of
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// DataSourceInstanceSettings carries the configured instance a datasource request targets
type DataSourceInstanceSettings struct {
	ID                      int64             `json:"id"`
	UID                     string            `json:"uid"`
	Name                    string            `json:"name"`
	URL                     string            `json:"url"`
	JSONData                json.RawMessage   `json:"jsonData,omitempty"`
	DecryptedSecureJSONData map[string]string `json:"-"`
	Updated                 time.Time         `json:"updated"`
}

// AppInstanceSettings carries the configured instance an app request targets
type AppInstanceSettings struct {
	JSONData                json.RawMessage   `json:"jsonData,omitempty"`
	DecryptedSecureJSONData map[string]string `json:"-"`
	Updated                 time.Time         `json:"updated"`
}

// PluginContext holds contextual information about the plugin a request is for
type PluginContext struct {
	OrgID    int64  `json:"orgId"`
	PluginID string `json:"pluginId"`
	User     *User  `json:"user,omitempty"`

	AppInstanceSettings        *AppInstanceSettings        `json:"appInstanceSettings,omitempty"`
	DataSourceInstanceSettings *DataSourceInstanceSettings `json:"dataSourceInstanceSettings,omitempty"`
}
