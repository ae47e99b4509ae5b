package httpx

import (
	"bytes"
	"encoding/base64"
	"errors"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// maxFormMemory bounds in-memory multipart parsing. API Gateway caps
// payloads well below this anyway.
const maxFormMemory = 10 << 20

// Form parses a multipart/form-data body from an HTTP API (v2) request,
// decoding base64 transport encoding when the gateway applied it.
func Form(req events.APIGatewayV2HTTPRequest) (*multipart.Form, error) {
	ct := header(req.Headers, "content-type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, errors.New("expected multipart/form-data")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("multipart boundary missing")
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		body, err = base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, errors.New("invalid base64 body")
		}
	}
	return multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxFormMemory)
}

// FormValue returns the first value for a multipart form field.
func FormValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// header retrieves a header value in a case-insensitive manner.
func header(h map[string]string, key string) string {
	lk := strings.ToLower(key)
	for k, v := range h {
		if strings.ToLower(k) == lk {
			return v
		}
	}
	return ""
}
