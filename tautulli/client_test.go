package tautulli

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
		ID:     "taut-1",
		Type:   integration.ServiceTautulli,
		URL:    url,
		APIKey: "taut-key",
	}, zerolog.Nop())
}

func TestTest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2", r.URL.Path)
		assert.Equal(t, "taut-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "get_tautulli_info", r.URL.Query().Get("cmd"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": {"result": "success", "data": {"tautulli_version": "2.13.4"}}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	result := c.Test(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, "2.13.4", result.Version)
}

func TestBadAPIKeyIsAuthFailure(t *testing.T) {
	// Tautulli answers an invalid key with 200 and an error envelope.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": {"result": "error", "message": "Invalid apikey"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	result := c.Test(context.Background())
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, integration.CodeAuthFailed, result.Error.Code)
	assert.Contains(t, result.Error.Message, "Invalid apikey")
}

func TestMissingAPIKeyFailsFast(t *testing.T) {
	c := New(integration.Instance{
		ID:   "taut-1",
		Type: integration.ServiceTautulli,
		URL:  "http://localhost:8181",
	}, zerolog.Nop())

	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.True(t, integration.IsCode(err, integration.CodeConfigInvalid))
}

func TestPoll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "get_activity", r.URL.Query().Get("cmd"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": {"result": "success", "data": {
			"stream_count": "2",
			"wan_bandwidth": 12000,
			"total_bandwidth": 15000,
			"sessions": [
				{"user": "alice", "full_title": "Some Show - Pilot", "state": "playing", "player": "TV", "progress_percent": "42"},
				{"user": "bob", "full_title": "Heat", "state": "paused", "player": "Web", "progress_percent": "7"}
			]
		}}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	data, err := c.Poll(context.Background())
	require.NoError(t, err)

	snap, ok := data.(Snapshot)
	require.True(t, ok)
	assert.Equal(t, 2, snap.StreamCount)
	assert.Equal(t, int64(12000), snap.WanBandwidth)
	require.Len(t, snap.Sessions, 2)
	assert.Equal(t, "alice", snap.Sessions[0].User)
	assert.Equal(t, 42, snap.Sessions[0].Progress)
	assert.Equal(t, "paused", snap.Sessions[1].State)
}

func TestAtoiLenient(t *testing.T) {
	assert.Equal(t, 42, atoiLenient("42"))
	assert.Equal(t, 0, atoiLenient(""))
	assert.Equal(t, 0, atoiLenient("n/a"))
}
