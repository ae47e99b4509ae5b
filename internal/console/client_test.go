package console

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Org not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.call(context.Background(), http.MethodGet, "/api/orgs", nil, nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusNotFound, reqErr.Status)
	assert.Equal(t, `{"detail": "Org not found"}`, reqErr.Body)
	assert.Equal(t, "Org not found", reqErr.Detail())
}

func TestDoRequestErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout\n"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.call(context.Background(), http.MethodGet, "/api/orgs", nil, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "upstream timeout", reqErr.Error())
	assert.Equal(t, "upstream timeout", reqErr.Detail())
}

func TestDoRequestErrorEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.call(context.Background(), http.MethodGet, "/api/orgs", nil, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Internal Server Error", reqErr.Error())
}

func TestCallSetsJSONContentType(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.call(context.Background(), http.MethodPost, "/api/orgs/acme/users", map[string]string{"name": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:8000/")
	assert.Equal(t, "http://localhost:8000", c.BaseURL)
}

func TestPathBuilders(t *testing.T) {
	assert.Equal(t, "/api/orgs/acme/users", usersPath("acme"))
	assert.Equal(t, "/api/orgs/acme/users/jo/password", passwordPath("acme", "jo"))
	assert.Equal(t, "/api/orgs/acme/sites/upload", sitesUploadPath("acme"))
	assert.Equal(t, "/api/orgs/acme/ghosts", ghostsPath("acme"))

	// Segments are percent-encoded so odd names cannot escape their slot.
	assert.Equal(t, "/api/orgs/two%20words/users/a%2Fb", userPath("two words", "a/b"))
}
