// Package main serves the site manifest API: manifest get/replace, manifest
// file upload, and ghost image uploads.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fomomon/survey-admin/internal/api"
	"github.com/fomomon/survey-admin/internal/authz"
	"github.com/fomomon/survey-admin/internal/awsutil"
	"github.com/fomomon/survey-admin/internal/config"
	"github.com/fomomon/survey-admin/internal/httpx"
	"github.com/fomomon/survey-admin/internal/s3io"
	"github.com/fomomon/survey-admin/internal/validate"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// App holds the application state, including configuration and AWS clients.
type App struct {
	env   config.Env
	store *s3io.Store
}

// sitesOut carries the manifest verbatim so a replace after an unchanged
// load is a byte-level no-op on the stored document.
type sitesOut struct {
	Org       string          `json:"org"`
	SitesJSON json.RawMessage `json:"sites_json"`
}

// sitesIn is the whole-document replace payload.
type sitesIn struct {
	SitesJSON json.RawMessage `json:"sites_json"`
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
	app := &App{env: env, store: &s3io.Store{S3: s3c, Bucket: env.Bucket}}
	lambda.Start(app.handler)
}

// handler dispatches manifest routes.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if _, err := authz.AdminSub(req, a.env.DevBypassAuth); err != nil {
		return httpx.Error(http.StatusUnauthorized, "missing user")
	}

	org := req.PathParameters["org"]
	if err := validate.Org(org); err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}

	switch req.RouteKey {
	case "GET /api/orgs/{org}/sites":
		return a.getSites(ctx, org)
	case "PUT /api/orgs/{org}/sites":
		return a.putSites(ctx, org, req.Body)
	case "POST /api/orgs/{org}/sites/upload":
		return a.uploadSites(ctx, org, req)
	case "POST /api/orgs/{org}/ghosts":
		return a.uploadGhost(ctx, org, req)
	}
	return httpx.Error(http.StatusNotFound, "not found")
}

// getSites returns the manifest verbatim, with sites_json null when the org
// has none yet.
func (a *App) getSites(ctx context.Context, org string) (events.APIGatewayV2HTTPResponse, error) {
	body, ok, err := a.store.GetSitesRaw(ctx, org)
	if err != nil {
		log.Printf("sites: get %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	out := sitesOut{Org: org, SitesJSON: json.RawMessage("null")}
	if ok {
		out.SitesJSON = body
	}
	return httpx.JSON(http.StatusOK, out)
}

// putSites replaces the org's manifest. The previous manifest, if any, is
// archived first; whole-document replace is last-write-wins.
func (a *App) putSites(ctx context.Context, org, body string) (events.APIGatewayV2HTTPResponse, error) {
	var in sitesIn
	if err := json.Unmarshal([]byte(body), &in); err != nil || len(in.SitesJSON) == 0 {
		return httpx.Error(http.StatusBadRequest, "invalid json")
	}
	return a.replaceSites(ctx, org, in.SitesJSON)
}

// uploadSites replaces the org's manifest from an uploaded JSON file.
func (a *App) uploadSites(ctx context.Context, org string, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	form, err := httpx.Form(req)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}
	defer form.RemoveAll()

	fh, err := formFile(form, "file")
	if err != nil {
		return httpx.Error(http.StatusBadRequest, "file is required")
	}
	if err := validate.FilenameJSON(fh.Filename); err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}
	content, err := readFormFile(fh)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, "unreadable file")
	}
	if !json.Valid(content) {
		return httpx.Error(http.StatusBadRequest, "Invalid JSON: file does not parse")
	}
	return a.replaceSites(ctx, org, content)
}

// replaceSites archives the current manifest and stores the new one,
// indented for humans reading the bucket directly.
func (a *App) replaceSites(ctx context.Context, org string, manifest []byte) (events.APIGatewayV2HTTPResponse, error) {
	if err := a.store.EnsureOrgPrefix(ctx, org); err != nil {
		log.Printf("sites: ensure prefix %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	archiveKey, err := a.store.ArchiveSites(ctx, org)
	if err != nil {
		log.Printf("sites: archive %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	if archiveKey != "" {
		log.Printf("sites: archived %s manifest to %s", org, archiveKey)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, manifest, "", "  "); err != nil {
		return httpx.Error(http.StatusBadRequest, "invalid json")
	}
	if err := a.store.PutSitesRaw(ctx, org, pretty.Bytes()); err != nil {
		log.Printf("sites: put %s: %v", org, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	return httpx.JSON(http.StatusOK, api.OKResponse{OK: true})
}

// uploadGhost stores a reference image for a site/orientation pair and
// returns the manifest-relative path. Persisting that path into the
// manifest is the caller's next save.
func (a *App) uploadGhost(ctx context.Context, org string, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	form, err := httpx.Form(req)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}
	defer form.RemoveAll()

	siteID := httpx.FormValue(form, "site_id")
	orientation := httpx.FormValue(form, "orientation")
	if err := validate.SiteID(siteID); err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}
	if err := validate.Orientation(orientation); err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}

	fh, err := formFile(form, "image")
	if err != nil {
		return httpx.Error(http.StatusBadRequest, "image is required")
	}
	content, err := readFormFile(fh)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, "unreadable image")
	}

	original := fh.Filename
	if original == "" {
		original = "image"
	}
	filename, err := a.store.GhostFilename(ctx, org, siteID, original, time.Now())
	if err != nil {
		log.Printf("sites: ghost name %s/%s: %v", org, siteID, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	key, err := a.store.UploadGhost(ctx, org, siteID, filename, fh.Header.Get("Content-Type"), content)
	if err != nil {
		log.Printf("sites: ghost put %s: %v", key, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	return httpx.JSON(http.StatusOK, api.GhostResponse{
		OK:           true,
		Key:          key,
		RelativePath: siteID + "/" + filename,
	})
}

// formFile returns the first file for a multipart field.
func formFile(form *multipart.Form, key string) (*multipart.FileHeader, error) {
	if fhs := form.File[key]; len(fhs) > 0 {
		return fhs[0], nil
	}
	return nil, http.ErrMissingFile
}

// readFormFile reads a multipart file fully into memory.
func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
