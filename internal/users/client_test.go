package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClient_Lookup_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/user-1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user": {
			"id": "user-1",
			"email": "ana@example.com",
			"phone": "+15550100",
			"firstName": "Ana",
			"age": 30,
			"balance": 12.5,
			"verified": true,
			"middleName": null
		}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	user, err := client.Lookup(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "+15550100", user.Phone)

	// All attributes are stringified for template substitution
	assert.Equal(t, "Ana", user.Fields["firstName"])
	assert.Equal(t, "30", user.Fields["age"])
	assert.Equal(t, "12.5", user.Fields["balance"])
	assert.Equal(t, "true", user.Fields["verified"])
	assert.Equal(t, "", user.Fields["middleName"])
}

func TestClient_Lookup_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Lookup_NullUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user": null}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Lookup_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user service status 500")
}

func TestClient_Lookup_TrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/user-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"user": {"id": "user-1"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL + "/"})
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "user-1")
	assert.NoError(t, err)
}
