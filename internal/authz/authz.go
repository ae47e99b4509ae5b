// Package authz gates the admin API: every Lambda resolves the caller's
// subject before touching org state.
package authz

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ErrUnauthorized is returned when no caller subject can be resolved.
var ErrUnauthorized = errors.New("unauthorized")

const devBypassHeader = "x-user-sub"

// headerLookup returns the value of a header key from a map.
func headerLookup(h map[string]string, key string) string {
	if len(h) == 0 {
		return ""
	}
	lk := strings.ToLower(key)
	for k, v := range h {
		if strings.ToLower(k) == lk {
			return v
		}
	}
	return ""
}

// subFromAuthHeader extracts the "sub" claim from the Authorization header
// without verifying the token; the gateway authorizer already did that.
func subFromAuthHeader(headers map[string]string) string {
	auth := headerLookup(headers, "Authorization")
	if auth == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		auth = strings.TrimSpace(auth[len("bearer "):])
	}
	parts := strings.Split(auth, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}
	var m map[string]any
	if json.Unmarshal(payload, &m) != nil {
		return ""
	}
	if s, ok := m["sub"].(string); ok {
		return s
	}
	return ""
}

// AdminSub extracts the admin caller's subject from an HTTP API (v2)
// request: dev bypass header first when enabled, then the JWT authorizer
// claims, then the raw Authorization header.
func AdminSub(req events.APIGatewayV2HTTPRequest, devBypass bool) (string, error) {
	if devBypass {
		if sub := strings.TrimSpace(headerLookup(req.Headers, devBypassHeader)); sub != "" {
			return sub, nil
		}
	}

	if req.RequestContext.Authorizer != nil && req.RequestContext.Authorizer.JWT != nil {
		if sub := req.RequestContext.Authorizer.JWT.Claims["sub"]; sub != "" {
			return sub, nil
		}
	}

	if sub := subFromAuthHeader(req.Headers); sub != "" {
		return sub, nil
	}

	return "", ErrUnauthorized
}
