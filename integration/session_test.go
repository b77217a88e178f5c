package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sessionHarness is a fake session service: /login mints tokens and the
// data endpoint rejects anything but the current one.
type sessionHarness struct {
	mu         sync.Mutex
	logins     atomic.Int64
	loginDelay time.Duration
	current    string
	rejectAll  bool
}

func (h *sessionHarness) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			n := h.logins.Add(1)
			time.Sleep(h.loginDelay)
			h.mu.Lock()
			h.current = fmt.Sprintf("token-%d", n)
			token := h.current
			h.mu.Unlock()
			w.Write([]byte(token))
		case "/data":
			h.mu.Lock()
			current := h.current
			reject := h.rejectAll
			h.mu.Unlock()
			if reject || r.Header.Get("X-Session") != current || current == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newSessionClient(t *testing.T, url string, opts ...SessionOption) *SessionClient {
	t.Helper()
	inst := Instance{
		ID:       "s1",
		Type:     ServiceQBittorrent,
		URL:      url,
		Username: "admin",
		Password: "secret",
	}
	base := NewClient(inst, zerolog.Nop())
	login := func(ctx context.Context, c *Client) (string, error) {
		body, err := c.Post(ctx, "/login", nil, WithPlainText())
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
	inject := func(cred Credential, req *http.Request) {
		req.Header.Set("X-Session", cred.Value)
	}
	return NewSessionClient(base, login, inject, opts...)
}

func TestSessionSingleFlightLogin(t *testing.T) {
	h := &sessionHarness{loginDelay: 50 * time.Millisecond}
	server := h.server(t)
	defer server.Close()

	s := newSessionClient(t, server.URL)

	// Many concurrent requests with no cached credential must coalesce
	// into exactly one login.
	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Get(context.Background(), "/data")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), h.logins.Load())
}

func TestSessionCredentialReuse(t *testing.T) {
	h := &sessionHarness{}
	server := h.server(t)
	defer server.Close()

	s := newSessionClient(t, server.URL)

	for range 3 {
		_, err := s.Get(context.Background(), "/data")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), h.logins.Load(), "credential within TTL must be reused")
}

func TestSessionExpiryTriggersRelogin(t *testing.T) {
	h := &sessionHarness{}
	server := h.server(t)
	defer server.Close()

	s := newSessionClient(t, server.URL, WithCredentialTTL(30*time.Millisecond))

	_, err := s.Get(context.Background(), "/data")
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.logins.Load())

	time.Sleep(50 * time.Millisecond)

	// The harness keeps old tokens invalid, so this only passes if a
	// fresh login actually happened.
	_, err = s.Get(context.Background(), "/data")
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.logins.Load())
}

func TestSessionRetryOnceAfterAuthFailure(t *testing.T) {
	h := &sessionHarness{}
	server := h.server(t)
	defer server.Close()

	s := newSessionClient(t, server.URL)

	_, err := s.Get(context.Background(), "/data")
	require.NoError(t, err)

	// Invalidate the session server-side, as a service restart would.
	h.mu.Lock()
	h.current = "rotated-away"
	h.mu.Unlock()

	// The stale credential gets a 401, the client re-logs-in and retries.
	_, err = s.Get(context.Background(), "/data")
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.logins.Load())
}

func TestSessionSecondAuthFailurePropagates(t *testing.T) {
	h := &sessionHarness{rejectAll: true}
	server := h.server(t)
	defer server.Close()

	s := newSessionClient(t, server.URL)

	_, err := s.Get(context.Background(), "/data")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeAuthFailed))
	// One login for the first attempt, one for the retry; never a third.
	assert.Equal(t, int64(2), h.logins.Load())
}

func TestSessionAnonymousNeverLogsIn(t *testing.T) {
	logins := atomic.Int64{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			logins.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	inst := Instance{ID: "anon", Type: ServiceQBittorrent, URL: server.URL}
	base := NewClient(inst, zerolog.Nop())
	s := NewSessionClient(base,
		func(ctx context.Context, c *Client) (string, error) {
			_, err := c.Post(ctx, "/login", nil)
			return "never", err
		},
		func(cred Credential, req *http.Request) {
			req.Header.Set("X-Session", cred.Value)
		},
	)

	_, err := s.Get(context.Background(), "/data")
	require.NoError(t, err)
	assert.Equal(t, int64(0), logins.Load())

	cred, err := s.EnsureCredential(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cred.Value)
	assert.False(t, cred.Expired(time.Now().Add(24*time.Hour)))
}

func TestSessionAnonymousAuthFailureSkipsRetry(t *testing.T) {
	logins := atomic.Int64{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			logins.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	inst := Instance{ID: "anon", Type: ServiceQBittorrent, URL: server.URL}
	base := NewClient(inst, zerolog.Nop())
	s := NewSessionClient(base,
		func(ctx context.Context, c *Client) (string, error) {
			_, err := c.Post(ctx, "/login", nil)
			return "never", err
		},
		func(cred Credential, req *http.Request) {
			req.Header.Set("X-Session", cred.Value)
		},
	)

	// An auth failure with nothing to log in as must propagate instead of
	// triggering a pointless login round-trip.
	_, err := s.Get(context.Background(), "/data")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeAuthFailed))
	assert.Equal(t, int64(0), logins.Load())
}

func TestCredentialExpired(t *testing.T) {
	now := time.Now()

	fresh := Credential{Value: "tok", AcquiredAt: now, TTL: 5 * time.Minute}
	assert.False(t, fresh.Expired(now.Add(4*time.Minute)))
	assert.True(t, fresh.Expired(now.Add(5*time.Minute)))

	// The anonymous credential never expires.
	assert.False(t, Credential{}.Expired(now.Add(time.Hour)))
}
