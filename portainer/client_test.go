package portainer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framerrr/framerr/integration"
)

func portainerHandler(logins *atomic.Int64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message": "Invalid credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jwt": "jwt-token-1"}`))
	})
	mux.HandleFunc("/api/system/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Version": "2.19.4"}`))
	})
	mux.HandleFunc("/api/endpoints", func(w http.ResponseWriter, r *http.Request) {
		authed := r.Header.Get("Authorization") == "Bearer jwt-token-1" ||
			r.Header.Get("X-API-Key") == "ptr_access_token"
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"Id": 1, "Name": "local", "Status": 1},
			{"Id": 2, "Name": "remote", "Status": 2}
		]`))
	})
	return mux
}

func newTestClient(t *testing.T, url, password string) *Client {
	t.Helper()
	return New(integration.Instance{
		ID:       "port-1",
		Type:     integration.ServicePortainer,
		URL:      url,
		Username: "admin",
		Password: password,
	}, zerolog.Nop())
}

func TestTest(t *testing.T) {
	var logins atomic.Int64
	server := httptest.NewServer(portainerHandler(&logins))
	defer server.Close()

	c := newTestClient(t, server.URL, "secret")

	result := c.Test(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, "2.19.4", result.Version)
	assert.Equal(t, int64(1), logins.Load())
}

func TestTestBadPassword(t *testing.T) {
	var logins atomic.Int64
	server := httptest.NewServer(portainerHandler(&logins))
	defer server.Close()

	c := newTestClient(t, server.URL, "wrong")

	// The public status endpoint succeeds; the authenticated probe is what
	// catches the bad password.
	result := c.Test(context.Background())
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, integration.CodeAuthFailed, result.Error.Code)
}

func TestAccessTokenSkipsLogin(t *testing.T) {
	var logins atomic.Int64
	server := httptest.NewServer(portainerHandler(&logins))
	defer server.Close()

	c := New(integration.Instance{
		ID:    "port-1",
		Type:  integration.ServicePortainer,
		URL:   server.URL,
		Token: "ptr_access_token",
	}, zerolog.Nop())

	data, err := c.Poll(context.Background())
	require.NoError(t, err)

	snap, ok := data.(Snapshot)
	require.True(t, ok)
	assert.Equal(t, 1, snap.EnvironmentsUp)
	assert.Equal(t, int64(0), logins.Load(), "a static token never touches /api/auth")
}

func TestBadAccessTokenIsAuthFailure(t *testing.T) {
	var logins atomic.Int64
	server := httptest.NewServer(portainerHandler(&logins))
	defer server.Close()

	c := New(integration.Instance{
		ID:    "port-1",
		Type:  integration.ServicePortainer,
		URL:   server.URL,
		Token: "revoked",
	}, zerolog.Nop())

	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.True(t, integration.IsCode(err, integration.CodeAuthFailed))
	// There is no session to refresh, so no login retry either.
	assert.Equal(t, int64(0), logins.Load())
}

func TestMissingCredentialsFailFast(t *testing.T) {
	c := New(integration.Instance{
		ID:   "port-1",
		Type: integration.ServicePortainer,
		URL:  "http://localhost:9000",
	}, zerolog.Nop())

	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.True(t, integration.IsCode(err, integration.CodeConfigInvalid))
}

func TestPoll(t *testing.T) {
	var logins atomic.Int64
	server := httptest.NewServer(portainerHandler(&logins))
	defer server.Close()

	c := newTestClient(t, server.URL, "secret")

	data, err := c.Poll(context.Background())
	require.NoError(t, err)

	snap, ok := data.(Snapshot)
	require.True(t, ok)
	require.Len(t, snap.Environments, 2)
	assert.Equal(t, "local", snap.Environments[0].Name)
	assert.True(t, snap.Environments[0].Up)
	assert.False(t, snap.Environments[1].Up)
	assert.Equal(t, 1, snap.EnvironmentsUp)

	// The JWT is reused across polls.
	_, err = c.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), logins.Load())
}
