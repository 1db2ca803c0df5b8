package backend

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCarriesBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	holder := NewClientHolder(srv.URL)
	holder.UpdateToken("token-1")

	resp, err := holder.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer token-1", gotAuth)
}

func TestUpdateTokenSameTokenKeepsClient(t *testing.T) {
	t.Parallel()

	holder := NewClientHolder("https://api.example.com")
	holder.UpdateToken("token-1")

	before := holder.Client()
	holder.UpdateToken("token-1")
	assert.Same(t, before, holder.Client())
}

func TestUpdateTokenNewTokenRebuildsClient(t *testing.T) {
	t.Parallel()

	holder := NewClientHolder("https://api.example.com")
	holder.UpdateToken("token-1")

	before := holder.Client()
	holder.UpdateToken("token-2")
	assert.NotSame(t, before, holder.Client())
}

func TestEmptyTokenSendsNoAuthorization(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	holder := NewClientHolder(srv.URL)
	resp, err := holder.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, gotAuth)
}
