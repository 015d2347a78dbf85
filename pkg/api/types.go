package api

import (
	"encoding/json"

	"github.com/platinummonkey/plughost/pkg/plugins"
)

// PluginSummary is the list view of a registered plugin
type PluginSummary struct {
	ID              string                  `json:"id"`
	Type            plugins.Type            `json:"type"`
	Name            string                  `json:"name"`
	Class           plugins.Class           `json:"class"`
	Version         string                  `json:"version"`
	State           plugins.ReleaseState    `json:"state,omitempty"`
	Backend         bool                    `json:"backend"`
	Streaming       bool                    `json:"streaming"`
	Signature       plugins.SignatureStatus `json:"signature"`
	Module          string                  `json:"module"`
	BaseURL         string                  `json:"baseUrl"`
	ParentID        string                  `json:"parentId,omitempty"`
	IncludedInAppID string                  `json:"includedInAppId,omitempty"`
	DefaultNavURL   string                  `json:"defaultNavUrl,omitempty"`
	Pinned          bool                    `json:"pinned"`
	Logos           plugins.Logos           `json:"logos"`
}

// PluginDetails is the full metadata of a single plugin
type PluginDetails struct {
	PluginSummary

	Info              plugins.Info          `json:"info"`
	Dependencies      plugins.Dependencies  `json:"dependencies"`
	Includes          []*plugins.Includes   `json:"includes"`
	DashboardIncludes []*plugins.Includes   `json:"dashboardIncludes"`
	Routes            []*plugins.Route      `json:"routes"`
	ChildIDs          []string              `json:"childIds"`
	SignatureType     plugins.SignatureType `json:"signatureType,omitempty"`
	SignatureOrg      string                `json:"signatureOrg,omitempty"`
	SignatureError    string                `json:"signatureError,omitempty"`
	Upgradeable       bool                  `json:"upgradeable"`
}

// HealthResponse is the body of a plugin health check
type HealthResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// PublishResponse is the body of a successful stream publish
type PublishResponse struct {
	Data json.RawMessage `json:"data,omitempty"`
}

func newPluginSummary(dto plugins.PluginDTO) PluginSummary {
	info := dto.Info()
	return PluginSummary{
		ID:              dto.ID(),
		Type:            dto.Type(),
		Name:            dto.Name(),
		Class:           dto.Class(),
		Version:         info.Version,
		State:           dto.State(),
		Backend:         dto.Backend(),
		Streaming:       dto.SupportsStreaming(),
		Signature:       dto.Signature(),
		Module:          dto.Module(),
		BaseURL:         dto.BaseURL(),
		ParentID:        dto.ParentID(),
		IncludedInAppID: dto.IncludedInAppID(),
		DefaultNavURL:   dto.DefaultNavURL(),
		Pinned:          dto.Pinned(),
		Logos:           info.Logos,
	}
}

func newPluginDetails(dto plugins.PluginDTO) PluginDetails {
	jsonData := dto.JSONData()
	d := PluginDetails{
		PluginSummary:     newPluginSummary(dto),
		Info:              jsonData.Info,
		Dependencies:      jsonData.Dependencies,
		Includes:          dto.Includes(),
		DashboardIncludes: dto.DashboardIncludes(),
		Routes:            dto.Routes(),
		ChildIDs:          dto.ChildIDs(),
		SignatureType:     dto.SignatureType(),
		SignatureOrg:      dto.SignatureOrg(),
		Upgradeable:       dto.Upgradeable(),
	}
	if sigErr := dto.SignatureError(); sigErr != nil {
		d.SignatureError = sigErr.AsErrorCode()
	}
	if d.ChildIDs == nil {
		d.ChildIDs = []string{}
	}
	return d
}
