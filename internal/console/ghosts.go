package console

import (
	"context"
	"io"
	"mime/multipart"
	"strings"

	"github.com/fomomon/survey-admin/internal/api"
)

// Ghost image orientations.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// UploadGhost uploads a reference image for the site at index and patches
// the in-memory reference path for the given orientation. This is the stage
// half of a two-phase commit: nothing is persisted to the manifest until
// Save, and a reload discards the association.
func (e *Editor) UploadGhost(ctx context.Context, index int, orientation, filename string, image io.Reader) (string, error) {
	if e.org == "" {
		return "", ErrNoOrg
	}
	if err := e.checkIndex(index); err != nil {
		return "", err
	}
	if orientation != OrientationPortrait && orientation != OrientationLandscape {
		return "", validationf("orientation must be portrait or landscape")
	}
	if image == nil || filename == "" {
		return "", validationf("select an image first")
	}
	site := &e.manifest.Sites[index]

	var out api.GhostResponse
	err := e.api.postMultipart(ctx, ghostsPath(e.org), func(w *multipart.Writer) error {
		if err := w.WriteField("site_id", site.ID); err != nil {
			return err
		}
		if err := w.WriteField("orientation", orientation); err != nil {
			return err
		}
		fw, err := w.CreateFormFile("image", filename)
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, image)
		return err
	}, &out)
	if err != nil {
		return "", err
	}

	if orientation == OrientationPortrait {
		site.ReferencePortrait = out.RelativePath
	} else {
		site.ReferenceLandscape = out.RelativePath
	}
	e.dirty = true
	return out.RelativePath, nil
}

// ImageURL resolves a reference path against a bucket root, normalizing
// trailing slashes to exactly one. Empty paths resolve to "".
func ImageURL(bucketRoot, relativePath string) string {
	if relativePath == "" {
		return ""
	}
	return strings.TrimRight(bucketRoot, "/") + "/" + relativePath
}
