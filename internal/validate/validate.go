// Package validate provides functions to validate admin inputs and uploads.
package validate

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var orgRx = regexp.MustCompile(`^[a-zA-Z0-9._\-]{1,64}$`)

// Orientations accepted by the ghost image endpoint.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Org checks that the org identifier is non-empty and safe as a key prefix.
func Org(org string) error {
	if !orgRx.MatchString(org) {
		return errors.New("invalid org")
	}
	return nil
}

// Orientation checks that the value is portrait or landscape.
func Orientation(o string) error {
	if o != OrientationPortrait && o != OrientationLandscape {
		return errors.New("orientation must be portrait or landscape")
	}
	return nil
}

// SiteID checks that the site id is non-empty after trimming whitespace.
func SiteID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("site_id is required")
	}
	return nil
}

// FilenameJSON checks that the filename has a .json extension (case insensitive).
func FilenameJSON(fn string) error {
	if strings.ToLower(filepath.Ext(fn)) != ".json" {
		return errors.New("sites.json upload must be a .json file")
	}
	return nil
}

// Password checks that the password is non-empty. Policy enforcement stays
// with the user pool; this only rejects requests that cannot succeed.
func Password(p string) error {
	if p == "" {
		return errors.New("password required")
	}
	return nil
}

// Email checks that the email is non-empty and plausibly shaped.
func Email(e string) error {
	e = strings.TrimSpace(e)
	if e == "" || !strings.Contains(e, "@") {
		return errors.New("valid email required")
	}
	return nil
}
