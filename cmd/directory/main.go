// Package main serves the user directory API: org listing, pool listings,
// user upsert/delete/password reset and the password policy.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fomomon/survey-admin/internal/api"
	"github.com/fomomon/survey-admin/internal/authz"
	"github.com/fomomon/survey-admin/internal/awsutil"
	"github.com/fomomon/survey-admin/internal/cognito"
	"github.com/fomomon/survey-admin/internal/config"
	"github.com/fomomon/survey-admin/internal/httpx"
	"github.com/fomomon/survey-admin/internal/models"
	"github.com/fomomon/survey-admin/internal/s3io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// errPoolsMissing is the bootstrap-disabled condition; maps to a 400 with
// the operator instruction.
var errPoolsMissing = errors.New("Cognito pools not found. Set AUTO_CREATE_POOLS=true to create.")

// App holds the application state, including configuration and AWS clients.
type App struct {
	env   config.Env
	store *s3io.Store
	idp   *cognito.Service
}

// main initializes the app and starts the Lambda handler.
func main() {
	env := config.MustLoad()
	cfg, endpoint, err := awsutil.Load(context.Background(), env.Region)
	if err != nil {
		log.Fatal(err)
	}

	s3c := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true // localstack/dev friendliness
		}
	})

	app := &App{
		env:   env,
		store: &s3io.Store{S3: s3c, Bucket: env.Bucket},
		idp: &cognito.Service{
			IDP:      cip.NewFromConfig(cfg),
			Identity: cognitoidentity.NewFromConfig(cfg),
			IAM:      iam.NewFromConfig(cfg),
			AppName:  env.AppName,
			AppType:  env.AppType,
			Region:   env.Region,
			Bucket:   env.Bucket,
		},
	}
	lambda.Start(app.handler)
}

// handler dispatches directory routes.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if _, err := authz.AdminSub(req, a.env.DevBypassAuth); err != nil {
		return httpx.Error(http.StatusUnauthorized, "missing user")
	}

	org := req.PathParameters["org"]
	username := req.PathParameters["username"]

	switch req.RouteKey {
	case "GET /api/orgs":
		return a.listOrgs(ctx)
	case "GET /api/users":
		return a.listAllUsers(ctx)
	case "GET /api/password_policy":
		return a.passwordPolicy(ctx)
	case "GET /api/orgs/{org}/users":
		return a.listOrgUsers(ctx, org)
	case "POST /api/orgs/{org}/users":
		return a.addUser(ctx, org, req.Body)
	case "DELETE /api/orgs/{org}/users/{username}":
		return a.deleteUser(ctx, org, username)
	case "PUT /api/orgs/{org}/users/{username}/password":
		return a.resetPassword(ctx, org, username, req.Body)
	}
	return httpx.Error(http.StatusNotFound, "not found")
}

// appInfo resolves the identity stack, creating it only when the
// deployment opted in.
func (a *App) appInfo(ctx context.Context) (*cognito.AppInfo, error) {
	info, err := a.idp.GetAppInfo(ctx)
	if err != nil {
		return nil, err
	}
	if info != nil {
		return info, nil
	}
	if !a.env.AutoCreatePools {
		return nil, errPoolsMissing
	}
	return a.idp.EnsureAppSetup(ctx, true)
}

// listOrgs returns the bucket's org prefixes.
func (a *App) listOrgs(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	orgs, err := a.store.ListOrgs(ctx)
	if err != nil {
		log.Printf("directory: list orgs: %v", err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	return httpx.JSON(http.StatusOK, api.OrgsResponse{Orgs: orgs})
}

// listAllUsers returns the global user-pool listing.
func (a *App) listAllUsers(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	info, err := a.appInfo(ctx)
	if err != nil {
		return a.appInfoError(err)
	}
	users, err := a.idp.ListUsers(ctx, info.UserPoolID)
	if err != nil {
		log.Printf("directory: list users: %v", err)
		return httpx.Error(http.StatusInternalServerError, "identity backend error")
	}
	if users == nil {
		users = []models.IdentityUser{}
	}
	return httpx.JSON(http.StatusOK, api.AllUsersResponse{Users: users})
}

// listOrgUsers joins the org's users.json against the pool listing. An org
// with no users.json yields an empty list, not an error.
func (a *App) listOrgUsers(ctx context.Context, org string) (events.APIGatewayV2HTTPResponse, error) {
	info, err := a.appInfo(ctx)
	if err != nil {
		return a.appInfoError(err)
	}
	allUsers, err := a.idp.ListUsers(ctx, info.UserPoolID)
	if err != nil {
		log.Printf("directory: list users: %v", err)
		return httpx.Error(http.StatusInternalServerError, "identity backend error")
	}
	doc, err := a.store.GetUsersDocument(ctx, org)
	if err != nil {
		log.Printf("directory: users.json %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	out := api.OrgUsersResponse{Org: org, Users: []models.OrgUser{}}
	if doc == nil {
		return httpx.JSON(http.StatusOK, out)
	}
	for _, profile := range doc.Users {
		out.Users = append(out.Users, models.OrgUser{
			Profile: profile,
			Cognito: matchIdentity(allUsers, profile),
		})
	}
	return httpx.JSON(http.StatusOK, out)
}

// matchIdentity finds the pool account backing a directory profile. The
// profile key is its username, falling back to email; matches are checked
// against preferred_username, email and the pool username, lowercased.
func matchIdentity(users []models.IdentityUser, profile models.UserProfile) *models.IdentityUser {
	key := cognito.NormalizeUsername(profile.Username)
	if key == "" {
		key = cognito.NormalizeUsername(profile.Email)
	}
	if key == "" {
		return nil
	}
	for i := range users {
		u := &users[i]
		if cognito.NormalizeUsername(u.PreferredUsername) == key ||
			cognito.NormalizeUsername(u.Email) == key ||
			cognito.NormalizeUsername(u.Username) == key {
			return u
		}
	}
	return nil
}

// addUser upserts a user: create with permanent password, or update the
// password when the username is taken. The org's users.json entry is
// replaced either way.
func (a *App) addUser(ctx context.Context, org, body string) (events.APIGatewayV2HTTPResponse, error) {
	var in api.CreateUserRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return httpx.Error(http.StatusBadRequest, "invalid json")
	}
	if cognito.NormalizeUsername(in.Org) != cognito.NormalizeUsername(org) {
		return httpx.Error(http.StatusBadRequest, "Org mismatch")
	}

	info, err := a.appInfo(ctx)
	if err != nil {
		return a.appInfoError(err)
	}

	if err := a.store.EnsureOrgPrefix(ctx, org); err != nil {
		log.Printf("directory: ensure prefix %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}

	username := cognito.NormalizeUsername(in.Name)
	created := true
	err = a.idp.AddUser(ctx, info.UserPoolID, username, in.Name, in.Email, in.Password)
	switch {
	case err == nil:
	case cognito.IsUsernameExists(err):
		created = false
		if err := a.idp.SetPassword(ctx, info.UserPoolID, username, in.Password); err != nil {
			return httpx.Error(http.StatusBadRequest, cognito.APIErrorDetail(err))
		}
	case cognito.IsInvalidPassword(err):
		return httpx.Error(http.StatusBadRequest, cognito.APIErrorMessage(err))
	default:
		return httpx.Error(http.StatusBadRequest, cognito.APIErrorDetail(err))
	}

	if err := a.upsertProfile(ctx, org, models.UserProfile{
		Name:     in.Name,
		Email:    in.Email,
		Username: username,
		Password: in.Password,
	}); err != nil {
		log.Printf("directory: users.json %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}

	return httpx.JSON(http.StatusOK, api.CreateUserResponse{OK: true, Created: created})
}

// upsertProfile replaces the username's entry in the org's users.json,
// creating the document when the org has none yet.
func (a *App) upsertProfile(ctx context.Context, org string, entry models.UserProfile) error {
	doc, err := a.store.GetUsersDocument(ctx, org)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &models.UsersDocument{
			BucketRoot: a.env.BucketRoot(org),
			Org:        org,
			Users:      []models.UserProfile{},
		}
	}
	kept := doc.Users[:0]
	for _, u := range doc.Users {
		if cognito.NormalizeUsername(u.Username) != entry.Username {
			kept = append(kept, u)
		}
	}
	doc.Users = append(kept, entry)
	doc.UpdatedAt = s3io.NowISO()
	return a.store.PutUsersDocument(ctx, org, doc)
}

// deleteUser removes the pool account and the org's directory entry.
func (a *App) deleteUser(ctx context.Context, org, username string) (events.APIGatewayV2HTTPResponse, error) {
	info, err := a.appInfo(ctx)
	if err != nil {
		return a.appInfoError(err)
	}
	if err := a.idp.DeleteUser(ctx, info.UserPoolID, username); err != nil {
		return httpx.Error(http.StatusBadRequest, cognito.APIErrorDetail(err))
	}

	doc, err := a.store.GetUsersDocument(ctx, org)
	if err != nil {
		log.Printf("directory: users.json %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	if doc != nil {
		key := cognito.NormalizeUsername(username)
		kept := doc.Users[:0]
		for _, u := range doc.Users {
			if cognito.NormalizeUsername(u.Username) != key {
				kept = append(kept, u)
			}
		}
		doc.Users = kept
		doc.UpdatedAt = s3io.NowISO()
		if err := a.store.PutUsersDocument(ctx, org, doc); err != nil {
			log.Printf("directory: users.json %s: %v", org, err)
			return httpx.Error(http.StatusInternalServerError, "storage error")
		}
	}
	return httpx.JSON(http.StatusOK, api.OKResponse{OK: true})
}

// resetPassword sets a new permanent password and mirrors it into the
// directory entry. Membership is untouched.
func (a *App) resetPassword(ctx context.Context, org, username, body string) (events.APIGatewayV2HTTPResponse, error) {
	var in api.PasswordRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return httpx.Error(http.StatusBadRequest, "invalid json")
	}
	if in.Password == "" {
		return httpx.Error(http.StatusBadRequest, "password required")
	}
	info, err := a.appInfo(ctx)
	if err != nil {
		return a.appInfoError(err)
	}
	if err := a.idp.SetPassword(ctx, info.UserPoolID, username, in.Password); err != nil {
		if cognito.IsInvalidPassword(err) {
			return httpx.Error(http.StatusBadRequest, cognito.APIErrorMessage(err))
		}
		return httpx.Error(http.StatusBadRequest, cognito.APIErrorDetail(err))
	}

	doc, err := a.store.GetUsersDocument(ctx, org)
	if err != nil {
		log.Printf("directory: users.json %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	if doc != nil {
		key := cognito.NormalizeUsername(username)
		for i := range doc.Users {
			if cognito.NormalizeUsername(doc.Users[i].Username) == key {
				doc.Users[i].Password = in.Password
			}
		}
		doc.UpdatedAt = s3io.NowISO()
		if err := a.store.PutUsersDocument(ctx, org, doc); err != nil {
			log.Printf("directory: users.json %s: %v", org, err)
			return httpx.Error(http.StatusInternalServerError, "storage error")
		}
	}
	return httpx.JSON(http.StatusOK, api.OKResponse{OK: true})
}

// passwordPolicy returns the pool's advisory password policy.
func (a *App) passwordPolicy(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	info, err := a.appInfo(ctx)
	if err != nil {
		return a.appInfoError(err)
	}
	policy, err := a.idp.PasswordPolicy(ctx, info.UserPoolID)
	if err != nil {
		log.Printf("directory: password policy: %v", err)
		return httpx.Error(http.StatusInternalServerError, "identity backend error")
	}
	return httpx.JSON(http.StatusOK, policy)
}

// appInfoError maps identity stack resolution failures to responses.
func (a *App) appInfoError(err error) (events.APIGatewayV2HTTPResponse, error) {
	if errors.Is(err, errPoolsMissing) {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}
	log.Printf("directory: app info: %v", err)
	return httpx.Error(http.StatusInternalServerError, "identity backend error")
}
