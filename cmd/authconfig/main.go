// Package main serves the auth config API: read the identity stack and sync
// the auth_config.json bootstrap artifact into the bucket.
package main

import (
	"context"
	"encoding/json"
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
			o.UsePathStyle = true
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

// handler dispatches auth config routes.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if _, err := authz.AdminSub(req, a.env.DevBypassAuth); err != nil {
		return httpx.Error(http.StatusUnauthorized, "missing user")
	}
	switch req.RouteKey {
	case "GET /api/auth_config":
		return a.getAuthConfig(ctx)
	case "POST /api/auth_config/sync":
		return a.syncAuthConfig(ctx)
	}
	return httpx.Error(http.StatusNotFound, "not found")
}

// authConfig reads the deployed identity stack. Sync never creates pools;
// a missing stack is the operator's problem to bootstrap.
func (a *App) authConfig(ctx context.Context) (*models.AuthConfig, error) {
	info, err := a.idp.GetAppInfo(ctx)
	if err != nil || info == nil {
		return nil, err
	}
	return &models.AuthConfig{
		UserPoolID:     info.UserPoolID,
		ClientID:       info.ClientID,
		IdentityPoolID: info.IdentityPoolID,
		Region:         a.env.Region,
	}, nil
}

// getAuthConfig returns the current identity stack identifiers.
func (a *App) getAuthConfig(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	cfg, err := a.authConfig(ctx)
	if err != nil {
		log.Printf("authconfig: app info: %v", err)
		return httpx.Error(http.StatusInternalServerError, "identity backend error")
	}
	if cfg == nil {
		return httpx.Error(http.StatusNotFound, "Cognito app not found")
	}
	return httpx.JSON(http.StatusOK, cfg)
}

// syncAuthConfig regenerates auth_config.json in the bucket from the
// current identity stack.
func (a *App) syncAuthConfig(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	cfg, err := a.authConfig(ctx)
	if err != nil {
		log.Printf("authconfig: app info: %v", err)
		return httpx.Error(http.StatusInternalServerError, "identity backend error")
	}
	if cfg == nil {
		return httpx.Error(http.StatusNotFound, "Cognito app not found")
	}
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return httpx.Error(http.StatusInternalServerError, "encode error")
	}
	if err := a.store.PutDocument(ctx, s3io.AuthConfigKey, body); err != nil {
		log.Printf("authconfig: put %s: %v", s3io.AuthConfigKey, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	return httpx.JSON(http.StatusOK, api.AuthConfigResponse{OK: true, AuthConfig: *cfg})
}
