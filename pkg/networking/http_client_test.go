package networking

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	client := NewHttpClientBuilder().Build()
	assert.Equal(t, ProviderTimeout, client.Timeout)
	assert.Nil(t, client.CheckRedirect)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	client := NewHttpClientBuilder().WithTimeout(30 * time.Second).Build()
	assert.Equal(t, 30*time.Second, client.Timeout)
}

func TestWithoutRedirects(t *testing.T) {
	t.Parallel()

	redirected := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.Redirect(w, r, "/followed", http.StatusFound)
		case "/followed":
			redirected = true
		}
	}))
	defer srv.Close()

	client := NewHttpClientBuilder().WithoutRedirects().Build()
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.False(t, redirected, "client must not follow redirects")
}

func TestWithBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := NewHttpClientBuilder().WithBearerToken("abc123").Build()
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer abc123", gotAuth)
}
