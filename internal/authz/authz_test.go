package authz

import (
	"encoding/base64"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenWithSub(sub string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"` + sub + `"}`))
	return "header." + payload + ".signature"
}

func TestAdminSubDevBypass(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"X-User-Sub": " dev-admin "},
	}

	sub, err := AdminSub(req, true)
	require.NoError(t, err)
	assert.Equal(t, "dev-admin", sub)

	// The bypass header is ignored unless explicitly enabled.
	_, err = AdminSub(req, false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAdminSubAuthorizerClaims(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
				JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{
					Claims: map[string]string{"sub": "pool-user-1"},
				},
			},
		},
	}

	sub, err := AdminSub(req, false)
	require.NoError(t, err)
	assert.Equal(t, "pool-user-1", sub)
}

func TestAdminSubBearerFallback(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"authorization": "Bearer " + tokenWithSub("token-user")},
	}

	sub, err := AdminSub(req, false)
	require.NoError(t, err)
	assert.Equal(t, "token-user", sub)
}

func TestAdminSubUnauthorized(t *testing.T) {
	_, err := AdminSub(events.APIGatewayV2HTTPRequest{}, false)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Garbage tokens do not resolve a subject.
	_, err = AdminSub(events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"Authorization": "Bearer not.a.jwt"},
	}, false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
