package s3io

import (
	"fmt"
	"regexp"
	"strings"
)

// Common key patterns and helper functions for the survey bucket layout:
//
//	<org>/sites.json
//	<org>/users.json
//	<org>/<site_id>/<image>
//	<org>/sites-archive/<ulid>.json
//	auth_config.json
const (
	ContentTypeJSON = "application/json"

	sitesFile     = "sites.json"
	usersFile     = "users.json"
	archivePrefix = "sites-archive"

	// AuthConfigKey is where the mobile bootstrap artifact lives.
	AuthConfigKey = "auth_config.json"
)

var (
	spaceRx   = regexp.MustCompile(`\s+`)
	unsafeRx  = regexp.MustCompile(`[^a-z0-9._\-]+`)
	repeatRx  = regexp.MustCompile(`-{2,}`)
	trimChars = "-"
)

// SitesKey returns the manifest key for an org.
func SitesKey(org string) string { return org + "/" + sitesFile }

// UsersKey returns the users document key for an org.
func UsersKey(org string) string { return org + "/" + usersFile }

// ArchiveKey returns the key a replaced manifest is copied to. The id is
// expected to be a ULID so archives sort by replacement time.
func ArchiveKey(org, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", org, archivePrefix, id)
}

// GhostPrefix returns the key prefix holding a site's ghost images.
func GhostPrefix(org, siteID string) string {
	return fmt.Sprintf("%s/%s/", org, siteID)
}

// SanitizeFilename lowercases a filename stem and reduces it to key-safe
// characters, falling back to "image" when nothing survives.
func SanitizeFilename(name string) string {
	name = spaceRx.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	name = unsafeRx.ReplaceAllString(name, "-")
	name = strings.Trim(repeatRx.ReplaceAllString(name, "-"), trimChars)
	if name == "" {
		return "image"
	}
	return name
}

// SplitExt splits a filename into stem and extension ("photo.JPG" ->
// "photo", ".JPG"). Filenames without a dot get an empty extension.
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}
