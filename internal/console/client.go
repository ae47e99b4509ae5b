// Package console implements the admin console workflow: a thin API client,
// the org session with its directory sync, and the site manifest editor.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Client is the request/response wrapper every console operation routes
// through. JSON bodies get a JSON content type; non-success responses
// surface as *RequestError carrying the raw body.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a Client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: http.DefaultClient,
	}
}

// call issues a JSON request. in is marshaled as the body when non-nil; the
// response is decoded into out when non-nil.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// postMultipart issues a multipart/form-data POST; build fills the form.
// Uploads bypass the JSON wrapper and construct their own request.
func (c *Client) postMultipart(ctx context.Context, path string, build func(*multipart.Writer) error, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := build(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, out)
}

// do executes the request and maps non-2xx responses to *RequestError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// orgPath builds an org-scoped API path with percent-encoded segments.
func orgPath(org string, parts ...string) string {
	segs := []string{"/api/orgs", url.PathEscape(org)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

// fixed path builders keep call sites greppable.
func usersPath(org string) string          { return orgPath(org, "users") }
func userPath(org, username string) string { return orgPath(org, "users", username) }
func passwordPath(org, user string) string { return userPath(org, user) + "/password" }
func sitesPath(org string) string          { return orgPath(org, "sites") }
func sitesUploadPath(org string) string    { return sitesPath(org) + "/upload" }
func ghostsPath(org string) string         { return orgPath(org, "ghosts") }
