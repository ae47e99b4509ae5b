// Package models defines the data models shared by the admin services and
// the console workflow.
package models

// Location is a site's position in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Site is a physical survey location inside an org's manifest.
// Reference image paths are relative to the manifest's bucket_root.
type Site struct {
	ID                 string   `json:"id"`
	Location           Location `json:"location"`
	CreationTimestamp  string   `json:"creation_timestamp"` // ISO8601
	ReferencePortrait  string   `json:"reference_portrait"`
	ReferenceLandscape string   `json:"reference_landscape"`
	Survey             []any    `json:"survey"`
}

// SiteManifest is the whole sites.json document for one org. It is fetched,
// edited and saved in full; there is no partial update protocol.
type SiteManifest struct {
	BucketRoot string `json:"bucket_root"`
	Sites      []Site `json:"sites"`
}

// UserProfile is a directory entry in an org's users.json document.
// Password is a write-only convenience copy kept for field teams.
type UserProfile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// IdentityUser is a flattened user-pool account.
type IdentityUser struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Status            string `json:"status"`
	Enabled           bool   `json:"enabled"`
}

// OrgUser pairs an org directory entry with its identity-backend account,
// when one matches. Cognito is nil for profiles with no pool account.
type OrgUser struct {
	Profile UserProfile   `json:"profile"`
	Cognito *IdentityUser `json:"cognito"`
}

// UsersDocument is the per-org users.json document stored next to the
// site manifest.
type UsersDocument struct {
	BucketRoot string        `json:"bucket_root"`
	Org        string        `json:"org"`
	Users      []UserProfile `json:"users"`
	UpdatedAt  string        `json:"updated_at"` // ISO8601
}

// PasswordPolicy mirrors the user pool's password policy. Zero values mean
// the pool reported nothing displayable; the backend remains the authority.
type PasswordPolicy struct {
	MinimumLength    int  `json:"minimumLength"`
	RequireUppercase bool `json:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase"`
	RequireNumbers   bool `json:"requireNumbers"`
	RequireSymbols   bool `json:"requireSymbols"`
}

// AuthConfig is the auth_config.json artifact the mobile app bootstraps from.
type AuthConfig struct {
	UserPoolID     string `json:"userPoolId"`
	ClientID       string `json:"clientId"`
	IdentityPoolID string `json:"identityPoolId"`
	Region         string `json:"region"`
}
