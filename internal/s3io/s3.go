// Package s3io provides the survey bucket store: org prefixes, per-org JSON
// documents and ghost image objects.
package s3io

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/oklog/ulid/v2"

	"github.com/fomomon/survey-admin/internal/models"
)

// S3API defines the subset of the S3 client the store needs. Handlers pass
// the real client; tests pass a fake.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store wraps an S3 client and bucket name for survey document operations.
type Store struct {
	S3     S3API
	Bucket string
}

// ListOrgs returns the top-level prefixes of the bucket, sorted. Each org
// owns exactly one prefix.
func (s *Store) ListOrgs(ctx context.Context) ([]string, error) {
	out, err := s.S3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    &s.Bucket,
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, err
	}
	orgs := make([]string, 0, len(out.CommonPrefixes))
	for _, p := range out.CommonPrefixes {
		if p.Prefix != nil {
			orgs = append(orgs, strings.TrimSuffix(*p.Prefix, "/"))
		}
	}
	sort.Strings(orgs)
	return orgs, nil
}

// EnsureOrgPrefix creates the zero-byte marker object for an org prefix so
// the org shows up in listings before any document exists.
func (s *Store) EnsureOrgPrefix(ctx context.Context, org string) error {
	key := org + "/"
	_, err := s.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(nil),
	})
	return err
}

// GetDocument fetches a JSON document by key. The second return is false
// when the key does not exist.
func (s *Store) GetDocument(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// PutDocument stores a JSON document at key.
func (s *Store) PutDocument(ctx context.Context, key string, body []byte) error {
	_, err := s.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String(ContentTypeJSON),
	})
	return err
}

// GetSitesRaw returns the org's manifest bytes verbatim, or (nil, false)
// when no manifest exists.
func (s *Store) GetSitesRaw(ctx context.Context, org string) ([]byte, bool, error) {
	return s.GetDocument(ctx, SitesKey(org))
}

// PutSitesRaw replaces the org's manifest with the given bytes.
func (s *Store) PutSitesRaw(ctx context.Context, org string, body []byte) error {
	return s.PutDocument(ctx, SitesKey(org), body)
}

// ArchiveSites copies the org's current manifest, if any, to a ULID-stamped
// archive key. Returns the archive key, or "" when there was nothing to
// archive. Whole-document replace is last-write-wins; the archive is the
// recovery path.
func (s *Store) ArchiveSites(ctx context.Context, org string) (string, error) {
	body, ok, err := s.GetSitesRaw(ctx, org)
	if err != nil || !ok {
		return "", err
	}
	key := ArchiveKey(org, ulid.Make().String())
	if err := s.PutDocument(ctx, key, body); err != nil {
		return "", err
	}
	return key, nil
}

// GetUsersDocument fetches the org's users.json, or nil when absent.
func (s *Store) GetUsersDocument(ctx context.Context, org string) (*models.UsersDocument, error) {
	body, ok, err := s.GetDocument(ctx, UsersKey(org))
	if err != nil || !ok {
		return nil, err
	}
	var doc models.UsersDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("users.json for %s: %w", org, err)
	}
	return &doc, nil
}

// PutUsersDocument stores the org's users.json, indented for humans reading
// the bucket directly.
func (s *Store) PutUsersDocument(ctx context.Context, org string, doc *models.UsersDocument) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return s.PutDocument(ctx, UsersKey(org), body)
}

// UploadGhost stores a ghost image under the site's prefix and returns the
// full key.
func (s *Store) UploadGhost(ctx context.Context, org, siteID, filename, contentType string, content []byte) (string, error) {
	key := GhostPrefix(org, siteID) + filename
	input := &s3.PutObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(content),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.S3.PutObject(ctx, input); err != nil {
		return "", err
	}
	return key, nil
}

// ListKeys returns every key under the given prefix.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.S3, &s3.ListObjectsV2Input{
		Bucket: &s.Bucket,
		Prefix: &prefix,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// GhostFilename picks a collision-free name for an uploaded ghost image:
// <stamp>-<sanitized stem>-<n><ext>, probing the site's existing keys.
func (s *Store) GhostFilename(ctx context.Context, org, siteID, original string, now time.Time) (string, error) {
	stem, ext := SplitExt(original)
	base := SanitizeFilename(stem)
	stamp := now.UTC().Format("20060102T150405")

	prefix := GhostPrefix(org, siteID)
	existing, err := s.ListKeys(ctx, prefix)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(existing))
	for _, k := range existing {
		taken[k] = true
	}

	for index := 1; ; index++ {
		candidate := fmt.Sprintf("%s-%s-%d%s", stamp, base, index, ext)
		if !taken[prefix+candidate] {
			return candidate, nil
		}
	}
}

// NowISO returns the current time in ISO8601 format, the timestamp format
// every document in the bucket uses.
func NowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// isNotFound reports whether err is an S3 missing-key error.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
