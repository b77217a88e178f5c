package overseerr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framerrr/framerr/integration"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	return New(integration.Instance{
		ID:     "ovr-1",
		Type:   integration.ServiceOverseerr,
		URL:    url,
		APIKey: "ovr-key",
	}, zerolog.Nop())
}

func TestTest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		assert.Equal(t, "ovr-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version": "1.33.2"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	result := c.Test(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, "1.33.2", result.Version)
}

func TestTestRejectedKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	result := c.Test(context.Background())
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, integration.CodeAuthFailed, result.Error.Code)
}

func TestMissingAPIKeyFailsFast(t *testing.T) {
	c := New(integration.Instance{
		ID:   "ovr-1",
		Type: integration.ServiceOverseerr,
		URL:  "http://localhost:5055",
	}, zerolog.Nop())

	result := c.Test(context.Background())
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, integration.CodeConfigInvalid, result.Error.Code)
}

func TestPoll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/request/count", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total": 12, "pending": 3, "approved": 7, "processing": 1, "available": 1}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	data, err := c.Poll(context.Background())
	require.NoError(t, err)

	snap, ok := data.(Snapshot)
	require.True(t, ok)
	assert.Equal(t, 12, snap.Total)
	assert.Equal(t, 3, snap.Pending)
	assert.Equal(t, 1, snap.Available)
}
