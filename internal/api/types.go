// Package api contains types for the API requests and responses.
package api

import "github.com/fomomon/survey-admin/internal/models"

// OrgsResponse lists the known org identifiers.
type OrgsResponse struct {
	Orgs []string `json:"orgs"`
}

// AllUsersResponse is the global user-pool listing.
type AllUsersResponse struct {
	Users []models.IdentityUser `json:"users"`
}

// OrgUsersResponse lists an org's directory entries joined with their
// identity-backend accounts.
type OrgUsersResponse struct {
	Org   string           `json:"org"`
	Users []models.OrgUser `json:"users"`
}

// CreateUserRequest is the payload for the user upsert endpoint. Org must
// match the path org.
type CreateUserRequest struct {
	Org      string `json:"org"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserResponse reports whether a new account was created or an
// existing one had its password updated.
type CreateUserResponse struct {
	OK      bool `json:"ok"`
	Created bool `json:"created"`
}

// PasswordRequest carries a new password for the reset endpoint.
type PasswordRequest struct {
	Password string `json:"password"`
}

// SitesResponse wraps an org's manifest. SitesJSON is null when no
// manifest exists yet.
type SitesResponse struct {
	Org       string               `json:"org"`
	SitesJSON *models.SiteManifest `json:"sites_json"`
}

// SitesRequest is the whole-document manifest replace payload.
type SitesRequest struct {
	SitesJSON models.SiteManifest `json:"sites_json"`
}

// GhostResponse reports where an uploaded ghost image landed. RelativePath
// is what the manifest stores; Key is the full bucket key.
type GhostResponse struct {
	OK           bool   `json:"ok"`
	Key          string `json:"key"`
	RelativePath string `json:"relative_path"`
}

// OKResponse is the generic mutation acknowledgement.
type OKResponse struct {
	OK bool `json:"ok"`
}

// AuthConfigResponse wraps the synced auth config artifact.
type AuthConfigResponse struct {
	OK         bool              `json:"ok"`
	AuthConfig models.AuthConfig `json:"auth_config"`
}
