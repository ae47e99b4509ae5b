package console

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fomomon/survey-admin/internal/api"
	"github.com/fomomon/survey-admin/internal/models"
)

// DefaultBucketBase is where synthesized bucket roots point when an org has
// no manifest yet.
const DefaultBucketBase = "https://fomomon.s3.amazonaws.com"

// Editor edits one org's site manifest. The manifest is fetched in full,
// edited in memory, and saved in full; nothing is persisted until Save.
// Reloading or switching orgs discards unsaved edits.
type Editor struct {
	api        *Client
	bucketBase string

	org        string
	manifest   *models.SiteManifest
	surveyText []string // raw survey text per site, kept for display even when invalid
	dirty      bool
}

// NewEditor returns an Editor with no manifest loaded. bucketBase may be
// empty, in which case DefaultBucketBase is used for synthesized roots.
func NewEditor(c *Client, bucketBase string) *Editor {
	if bucketBase == "" {
		bucketBase = DefaultBucketBase
	}
	return &Editor{api: c, bucketBase: strings.TrimRight(bucketBase, "/")}
}

// SetOrg switches the editor to another org and drops any loaded manifest,
// saved or not.
func (e *Editor) SetOrg(org string) {
	e.org = strings.TrimSpace(org)
	e.manifest = nil
	e.surveyText = nil
	e.dirty = false
}

// Org returns the org the editor is bound to.
func (e *Editor) Org() string { return e.org }

// Manifest returns the in-memory manifest, nil before Load.
func (e *Editor) Manifest() *models.SiteManifest { return e.manifest }

// Dirty reports whether in-memory edits have not been saved. Ghost uploads
// count: losing a Save after an upload discards the association.
func (e *Editor) Dirty() bool { return e.dirty }

// defaultBucketRoot is the synthesized root for an org with no manifest.
func (e *Editor) defaultBucketRoot() string {
	return e.bucketBase + "/" + e.org + "/"
}

// Load fetches the org's manifest, replacing any in-memory state. When the
// org has no manifest a default is synthesized and ErrManifestMissing is
// returned; the editor stays usable.
func (e *Editor) Load(ctx context.Context) error {
	if e.org == "" {
		return ErrNoOrg
	}
	var out api.SitesResponse
	if err := e.api.call(ctx, http.MethodGet, sitesPath(e.org), nil, &out); err != nil {
		return err
	}
	e.dirty = false
	if out.SitesJSON == nil {
		e.manifest = &models.SiteManifest{
			BucketRoot: e.defaultBucketRoot(),
			Sites:      []models.Site{},
		}
		e.surveyText = nil
		return ErrManifestMissing
	}
	e.manifest = out.SitesJSON
	if e.manifest.BucketRoot == "" {
		e.manifest.BucketRoot = e.defaultBucketRoot()
	}
	e.surveyText = make([]string, len(e.manifest.Sites))
	for i, site := range e.manifest.Sites {
		e.surveyText[i] = renderSurvey(site.Survey)
	}
	return nil
}

// Save writes the whole manifest back in one call: whole-document replace,
// last writer wins. The bucket root is trimmed first.
func (e *Editor) Save(ctx context.Context) error {
	if e.org == "" {
		return ErrNoOrg
	}
	if e.manifest == nil {
		return ErrNoManifest
	}
	e.manifest.BucketRoot = strings.TrimSpace(e.manifest.BucketRoot)
	in := api.SitesRequest{SitesJSON: *e.manifest}
	if err := e.api.call(ctx, http.MethodPut, sitesPath(e.org), in, nil); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// AddSite appends a new site with default field values and returns its
// index. A missing manifest is created on the spot so sites can be added to
// a brand-new org.
func (e *Editor) AddSite() int {
	if e.manifest == nil {
		e.manifest = &models.SiteManifest{
			BucketRoot: e.defaultBucketRoot(),
			Sites:      []models.Site{},
		}
	}
	e.manifest.Sites = append(e.manifest.Sites, models.Site{
		Location:          models.Location{},
		CreationTimestamp: time.Now().UTC().Format(time.RFC3339),
		Survey:            []any{},
	})
	e.surveyText = append(e.surveyText, "[]")
	e.dirty = true
	return len(e.manifest.Sites) - 1
}

// DeleteSite removes the site at index, preserving the order of the rest.
// No confirmation is required; manifest edits stay in memory until Save.
func (e *Editor) DeleteSite(index int) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	e.manifest.Sites = append(e.manifest.Sites[:index], e.manifest.Sites[index+1:]...)
	e.surveyText = append(e.surveyText[:index], e.surveyText[index+1:]...)
	e.dirty = true
	return nil
}

// SetBucketRoot replaces the manifest's bucket root.
func (e *Editor) SetBucketRoot(root string) error {
	if e.manifest == nil {
		return ErrNoManifest
	}
	e.manifest.BucketRoot = root
	e.dirty = true
	return nil
}

// SetSiteID sets the site's id. Uniqueness within the manifest is not
// enforced here.
func (e *Editor) SetSiteID(index int, id string) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	e.manifest.Sites[index].ID = id
	e.dirty = true
	return nil
}

// SetReferencePath sets the site's portrait or landscape reference path.
func (e *Editor) SetReferencePath(index int, orientation, path string) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	switch orientation {
	case OrientationPortrait:
		e.manifest.Sites[index].ReferencePortrait = path
	case OrientationLandscape:
		e.manifest.Sites[index].ReferenceLandscape = path
	default:
		return validationf("orientation must be portrait or landscape")
	}
	e.dirty = true
	return nil
}

// SetLocation parses and sets the site's coordinates. Non-numeric input is
// rejected rather than silently persisted as NaN.
func (e *Editor) SetLocation(index int, lat, lng string) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	latF, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return validationf("lat must be a number: %q", lat)
	}
	lngF, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return validationf("lng must be a number: %q", lng)
	}
	e.manifest.Sites[index].Location = models.Location{Lat: latF, Lng: lngF}
	e.dirty = true
	return nil
}

// SetSurveyJSON applies a survey edit from raw JSON text. The raw text is
// always kept for display, but the model only moves off its last
// successfully parsed value when the text parses as a JSON sequence; invalid
// text yields a *ParseError scoped to this site.
func (e *Editor) SetSurveyJSON(index int, text string) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	e.surveyText[index] = text
	var survey []any
	if err := json.Unmarshal([]byte(text), &survey); err != nil {
		return &ParseError{SiteID: e.manifest.Sites[index].ID, Err: err}
	}
	e.manifest.Sites[index].Survey = survey
	e.dirty = true
	return nil
}

// SurveyText returns the raw survey text for display, which may be invalid
// JSON the model has not accepted.
func (e *Editor) SurveyText(index int) string {
	if index < 0 || e.manifest == nil || index >= len(e.surveyText) {
		return ""
	}
	return e.surveyText[index]
}

// UploadManifest replaces the org's manifest from a JSON file and reloads.
func (e *Editor) UploadManifest(ctx context.Context, filename string, r io.Reader) error {
	if e.org == "" {
		return ErrNoOrg
	}
	if r == nil || filename == "" {
		return validationf("select a sites.json file first")
	}
	err := e.api.postMultipart(ctx, sitesUploadPath(e.org), func(w *multipart.Writer) error {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, r)
		return err
	}, nil)
	if err != nil {
		return err
	}
	return e.Load(ctx)
}

// checkIndex bounds-checks a site index against the loaded manifest.
func (e *Editor) checkIndex(index int) error {
	if e.manifest == nil {
		return ErrNoManifest
	}
	if index < 0 || index >= len(e.manifest.Sites) {
		return validationf("no site at index %d", index)
	}
	return nil
}

// renderSurvey pretty-prints a survey value the way the console displays it.
func renderSurvey(survey []any) string {
	if survey == nil {
		survey = []any{}
	}
	b, err := json.MarshalIndent(survey, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
