package plugins

import (
	"errors"
	"fmt"
)

// Class describes how a plugin was installed
type Class string

const (
	Core     Class = "core"     // Shipped inside the host binary
	Bundled  Class = "bundled"  // Shipped next to the host, upgraded with it
	External Class = "external" // Installed by an operator
	Remote   Class = "remote"   // Served from a remote location
)

// IsValid reports whether c is a known class
func (c Class) IsValid() bool {
	switch c {
	case Core, Bundled, External, Remote:
		return true
	}
	return false
}

// Type defines the functional role of a plugin
type Type string

const (
	DataSource     Type = "datasource"
	Panel          Type = "panel"
	App            Type = "app"
	Renderer       Type = "renderer"
	SecretsManager Type = "secretsmanager"
)

// PluginTypes lists every supported plugin type
var PluginTypes = []Type{
	DataSource,
	Panel,
	App,
	Renderer,
	SecretsManager,
}

// IsValid reports whether pt is one of PluginTypes
func (pt Type) IsValid() bool {
	switch pt {
	case DataSource, Panel, App, Renderer, SecretsManager:
		return true
	}
	return false
}

// ReleaseState is the maturity of a plugin release
type ReleaseState string

const (
	StateAlpha      ReleaseState = "alpha"
	StateBeta       ReleaseState = "beta"
	StateStable     ReleaseState = "stable"
	StateDeprecated ReleaseState = "deprecated"
)

// RoleType is a host role required by a route or include
type RoleType string

const (
	RoleNone   RoleType = "None"
	RoleViewer RoleType = "Viewer"
	RoleEditor RoleType = "Editor"
	RoleAdmin  RoleType = "Admin"
)

// IsValid reports whether r is a known role
func (r RoleType) IsValid() bool {
	switch r {
	case RoleNone, RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// StaticRoute maps a plugin id to the directory its assets are served from
type StaticRoute struct {
	PluginID  string
	Directory string
}

// SignatureStatus is the verification state produced by the signature verifier
type SignatureStatus string

const (
	SignatureInternal SignatureStatus = "internal" // core plugins, not signed
	SignatureValid    SignatureStatus = "valid"
	SignatureInvalid  SignatureStatus = "invalid"
	SignatureModified SignatureStatus = "modified" // files changed after signing
	SignatureUnsigned SignatureStatus = "unsigned"
)

// IsValid reports whether the plugin signature verified
func (ss SignatureStatus) IsValid() bool {
	return ss == SignatureValid
}

// IsInternal reports whether the plugin is exempt from signing
func (ss SignatureStatus) IsInternal() bool {
	return ss == SignatureInternal
}

// SignatureType is the kind of signature a plugin carries
type SignatureType string

const (
	GrafanaSignature     SignatureType = "grafana"
	CommercialSignature  SignatureType = "commercial"
	CommunitySignature   SignatureType = "community"
	PrivateSignature     SignatureType = "private"
	PrivateGlobSignature SignatureType = "private-glob"
)

// IsValid reports whether st is a known signature type
func (st SignatureType) IsValid() bool {
	switch st {
	case GrafanaSignature, CommercialSignature, CommunitySignature, PrivateSignature, PrivateGlobSignature:
		return true
	}
	return false
}

// PluginFiles is the set of file paths covered by a plugin signature
type PluginFiles map[string]struct{}

// Contains reports whether path is part of the set
func (pf PluginFiles) Contains(path string) bool {
	_, ok := pf[path]
	return ok
}

func (pf PluginFiles) clone() PluginFiles {
	if pf == nil {
		return nil
	}
	out := make(PluginFiles, len(pf))
	for k := range pf {
		out[k] = struct{}{}
	}
	return out
}

// ErrSignature is matched by every *SignatureError through errors.Is
var ErrSignature = errors.New("plugin signature error")

// SignatureError describes why a plugin failed signature verification
type SignatureError struct {
	PluginID        string          `json:"pluginId"`
	SignatureStatus SignatureStatus `json:"status"`
	Files           []string        `json:"files,omitempty"`
}

func (e SignatureError) Error() string {
	switch e.SignatureStatus {
	case SignatureInvalid:
		return fmt.Sprintf("plugin '%s' has an invalid signature", e.PluginID)
	case SignatureModified:
		if len(e.Files) > 0 {
			return fmt.Sprintf("plugin '%s' has a modified signature (files: %v)", e.PluginID, e.Files)
		}
		return fmt.Sprintf("plugin '%s' has a modified signature", e.PluginID)
	case SignatureUnsigned:
		return fmt.Sprintf("plugin '%s' has no signature", e.PluginID)
	case SignatureInternal, SignatureValid:
		return ""
	}

	return fmt.Sprintf("plugin '%s' has an unknown signature state", e.PluginID)
}

// Is makes errors.Is(err, ErrSignature) hold for signature errors
func (e SignatureError) Is(target error) bool {
	return target == ErrSignature
}

// AsErrorCode returns a stable, machine-readable code for the failure
func (e SignatureError) AsErrorCode() string {
	switch e.SignatureStatus {
	case SignatureInvalid:
		return "signatureInvalid"
	case SignatureModified:
		return "signatureModified"
	case SignatureUnsigned:
		return "signatureMissing"
	case SignatureInternal, SignatureValid:
		return ""
	}

	return ""
}

func (e *SignatureError) clone() *SignatureError {
	if e == nil {
		return nil
	}
	out := *e
	out.Files = append([]string(nil), e.Files...)
	return &out
}
