package console

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/fomomon/survey-admin/internal/api"
	"github.com/fomomon/survey-admin/internal/models"
)

// Session holds the selected org and the directory state the console
// displays. All lists are re-fetched after a mutation rather than patched
// locally; simplicity over optimistic UI.
type Session struct {
	api *Client

	org string

	Orgs     []string
	OrgUsers []models.OrgUser
	AllUsers []models.IdentityUser
	Policy   models.PasswordPolicy
}

// NewSession returns a Session with no org selected.
func NewSession(c *Client) *Session {
	return &Session{api: c}
}

// Org returns the currently selected org, or "" when none is selected.
func (s *Session) Org() string { return s.org }

// SelectOrg sets the current org and performs a full refresh.
func (s *Session) SelectOrg(ctx context.Context, org string) error {
	org = strings.TrimSpace(org)
	if org == "" {
		return ErrNoOrg
	}
	s.org = org
	return s.RefreshAll(ctx)
}

// RefreshAll re-fetches orgs, org users, the global user listing and the
// password policy, in that order. Org listing must complete first so a
// default org can be resolved; any failure aborts the remaining sequence.
func (s *Session) RefreshAll(ctx context.Context) error {
	orgs, err := s.ListOrgs(ctx)
	if err != nil {
		return err
	}
	s.Orgs = orgs
	if s.org == "" && len(orgs) > 0 {
		s.org = orgs[0]
	}

	orgUsers, err := s.ListOrgUsers(ctx)
	if err != nil {
		return err
	}
	s.OrgUsers = orgUsers

	allUsers, err := s.ListAllUsers(ctx)
	if err != nil {
		return err
	}
	s.AllUsers = allUsers

	policy, err := s.PasswordPolicy(ctx)
	if err != nil {
		return err
	}
	s.Policy = policy
	return nil
}

// ListOrgs returns the known org identifiers.
func (s *Session) ListOrgs(ctx context.Context) ([]string, error) {
	var out api.OrgsResponse
	if err := s.api.call(ctx, http.MethodGet, "/api/orgs", nil, &out); err != nil {
		return nil, err
	}
	return out.Orgs, nil
}

// ListOrgUsers returns the selected org's directory joined with identity
// state. No selected org yields an empty list, which is a valid,
// displayable result.
func (s *Session) ListOrgUsers(ctx context.Context) ([]models.OrgUser, error) {
	if s.org == "" {
		return nil, nil
	}
	var out api.OrgUsersResponse
	if err := s.api.call(ctx, http.MethodGet, usersPath(s.org), nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// ListAllUsers returns the global identity-backend listing, independent of
// org membership.
func (s *Session) ListAllUsers(ctx context.Context) ([]models.IdentityUser, error) {
	var out api.AllUsersResponse
	if err := s.api.call(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// PasswordPolicy returns the advisory password policy. The backend remains
// the authority; the console only displays the requirements.
func (s *Session) PasswordPolicy(ctx context.Context) (models.PasswordPolicy, error) {
	var out models.PasswordPolicy
	err := s.api.call(ctx, http.MethodGet, "/api/password_policy", nil, &out)
	return out, err
}

// PolicyRules renders the policy as display strings, empty when the pool
// reported nothing displayable.
func (s *Session) PolicyRules() []string {
	var rules []string
	if s.Policy.MinimumLength > 0 {
		rules = append(rules, "min "+strconv.Itoa(s.Policy.MinimumLength)+" chars")
	}
	if s.Policy.RequireUppercase {
		rules = append(rules, "1 uppercase")
	}
	if s.Policy.RequireLowercase {
		rules = append(rules, "1 lowercase")
	}
	if s.Policy.RequireNumbers {
		rules = append(rules, "1 number")
	}
	if s.Policy.RequireSymbols {
		rules = append(rules, "1 symbol")
	}
	return rules
}

// CreateUser upserts a user in the selected org: a new account when the
// username is free, otherwise a password update. Returns whether an account
// was created. Refreshes the directory on success.
func (s *Session) CreateUser(ctx context.Context, name, email, password string) (bool, error) {
	if s.org == "" {
		return false, ErrNoOrg
	}
	in := api.CreateUserRequest{Org: s.org, Name: name, Email: email, Password: password}
	var out api.CreateUserResponse
	if err := s.api.call(ctx, http.MethodPost, usersPath(s.org), in, &out); err != nil {
		return false, err
	}
	if err := s.RefreshAll(ctx); err != nil {
		return out.Created, err
	}
	return out.Created, nil
}

// DeleteUser removes the user's org membership and identity-backend
// account, then refreshes the directory. Interactive confirmation is the
// caller's concern.
func (s *Session) DeleteUser(ctx context.Context, username string) error {
	if s.org == "" {
		return ErrNoOrg
	}
	if err := s.api.call(ctx, http.MethodDelete, userPath(s.org, username), nil, nil); err != nil {
		return err
	}
	return s.RefreshAll(ctx)
}

// ResetPassword sets a new password for the user. Membership is untouched
// and the directory is not refreshed. An empty password is rejected locally.
func (s *Session) ResetPassword(ctx context.Context, username, password string) error {
	if s.org == "" {
		return ErrNoOrg
	}
	if password == "" {
		return validationf("password required")
	}
	in := api.PasswordRequest{Password: password}
	return s.api.call(ctx, http.MethodPut, passwordPath(s.org, username), in, nil)
}

// SyncAuthConfig asks the backend to regenerate the auth config artifact
// from the current identity stack.
func (s *Session) SyncAuthConfig(ctx context.Context) (models.AuthConfig, error) {
	var out api.AuthConfigResponse
	err := s.api.call(ctx, http.MethodPost, "/api/auth_config/sync", nil, &out)
	return out.AuthConfig, err
}
