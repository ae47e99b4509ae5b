package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Local failure sentinels. These reject an operation before any request is
// issued, so the backend never sees an empty path segment.
var (
	// ErrNoOrg means an org-scoped operation ran with no org selected.
	ErrNoOrg = errors.New("select an org first")

	// ErrNoManifest means a manifest operation ran before Load.
	ErrNoManifest = errors.New("no sites loaded")

	// ErrManifestMissing is returned by Editor.Load when the org has no
	// manifest yet. The editor is left holding a synthesized default, so
	// callers treat this as a notice, not a failure.
	ErrManifestMissing = errors.New("no sites.json found")
)

// RequestError is a non-success backend response. Body is the raw response
// body, which is the backend's only error signal.
type RequestError struct {
	Status int
	Body   string
}

// Error returns the raw body, or the status text when the body is empty.
func (e *RequestError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.Status)
}

// Detail extracts the JSON detail field from the body when present,
// otherwise returns the same text as Error. This is the user-facing message.
func (e *RequestError) Detail() string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return e.Error()
}

// ValidationError is a local input rejection; no request was sent.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// validationf builds a *ValidationError.
func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ParseError is malformed survey JSON, scoped to a single site and
// non-fatal to the rest of the manifest.
type ParseError struct {
	SiteID string
	Err    error
}

func (e *ParseError) Error() string {
	id := e.SiteID
	if id == "" {
		id = "site"
	}
	return fmt.Sprintf("survey JSON invalid for %s: %v", id, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
