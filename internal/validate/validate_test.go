package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrg(t *testing.T) {
	assert.NoError(t, Org("acme"))
	assert.NoError(t, Org("acme-field.2024"))
	assert.Error(t, Org(""))
	assert.Error(t, Org("acme/other"))
	assert.Error(t, Org("a b"))
}

func TestOrientation(t *testing.T) {
	assert.NoError(t, Orientation("portrait"))
	assert.NoError(t, Orientation("landscape"))
	assert.Error(t, Orientation(""))
	assert.Error(t, Orientation("Portrait"))
	assert.Error(t, Orientation("sideways"))
}

func TestSiteID(t *testing.T) {
	assert.NoError(t, SiteID("ridge-03"))
	assert.Error(t, SiteID(""))
	assert.Error(t, SiteID("   "))
}

func TestFilenameJSON(t *testing.T) {
	assert.NoError(t, FilenameJSON("sites.json"))
	assert.NoError(t, FilenameJSON("SITES.JSON"))
	assert.Error(t, FilenameJSON("sites.txt"))
	assert.Error(t, FilenameJSON("sites"))
}

func TestPassword(t *testing.T) {
	assert.NoError(t, Password("hunter2hunter2"))
	assert.Error(t, Password(""))
}

func TestEmail(t *testing.T) {
	assert.NoError(t, Email("ranger@example.org"))
	assert.Error(t, Email(""))
	assert.Error(t, Email("not-an-email"))
}
