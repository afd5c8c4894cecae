package directory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyd/internal/directory"
)

func newClient(t *testing.T, handler http.HandlerFunc) *directory.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("DIRECTORY_URL", srv.URL)
	t.Setenv("DIRECTORY_TOKEN", "dir-key")
	return directory.NewClient()
}

func TestLookupFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/42", r.URL.Path)
		assert.Equal(t, "dir-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":42,"email":"ama@example.com","role":"manager"}`))
	})

	user, err := client.Lookup(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "ama@example.com", user.Email)
	assert.Equal(t, "manager", user.Role)
}

func TestLookupMissingIsNotAnError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	user, err := client.Lookup(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestLookupServerError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Lookup(context.Background(), 42)
	assert.Error(t, err)
}
