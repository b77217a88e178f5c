package integration

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCredentialTTL is how long a session credential is reused before a
// fresh login.
const DefaultCredentialTTL = 5 * time.Minute

// Credential is a cached session identifier: a cookie value or a bearer
// token. The zero value is the anonymous credential used when the backing
// service allows unauthenticated access.
type Credential struct {
	Value      string
	AcquiredAt time.Time
	TTL        time.Duration
}

// Expired reports whether the credential must not be reused. Anonymous
// credentials never expire.
func (cr Credential) Expired(now time.Time) bool {
	if cr.Value == "" {
		return false
	}
	return now.Sub(cr.AcquiredAt) >= cr.TTL
}

// LoginFunc performs the service's login call and returns the session
// value. It receives the bare Client so the call bypasses credential
// injection; a login must never recurse into itself.
type LoginFunc func(ctx context.Context, c *Client) (string, error)

// InjectFunc attaches the credential to an outgoing request, typically as
// a cookie or an Authorization header.
type InjectFunc func(cred Credential, req *http.Request)

// SessionClient layers a cached session-credential lifecycle over Client:
// single-flight login, TTL-based reuse, and a single retry after an auth
// failure. Each instance owns exactly one SessionClient, so the credential
// and login lock are instance-scoped by construction.
type SessionClient struct {
	*Client
	login  LoginFunc
	inject InjectFunc
	ttl    time.Duration

	mu      sync.Mutex
	cred    Credential
	hasCred bool

	// flight guarantees at most one in-flight login per instance; late
	// callers join the existing call instead of issuing a second login.
	flight singleflight.Group
}

// SessionOption configures a SessionClient.
type SessionOption func(*SessionClient)

// WithCredentialTTL overrides the default session lifetime.
func WithCredentialTTL(ttl time.Duration) SessionOption {
	return func(s *SessionClient) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewSessionClient wraps a Client with a session-credential lifecycle.
func NewSessionClient(c *Client, login LoginFunc, inject InjectFunc, opts ...SessionOption) *SessionClient {
	s := &SessionClient{
		Client: c,
		login:  login,
		inject: inject,
		ttl:    DefaultCredentialTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureCredential returns a usable credential, logging in only when
// needed. Instances without configured credentials get the anonymous
// credential and never trigger a login.
func (s *SessionClient) EnsureCredential(ctx context.Context) (Credential, error) {
	if !s.inst.HasCredentials() {
		return Credential{}, nil
	}

	s.mu.Lock()
	if s.hasCred && !s.cred.Expired(time.Now()) {
		cred := s.cred
		s.mu.Unlock()
		return cred, nil
	}
	s.mu.Unlock()

	return s.Login(ctx)
}

// Login performs the service login, deduplicating concurrent callers: when
// many requests race on an expired credential, exactly one login request is
// issued and the rest receive its result.
func (s *SessionClient) Login(ctx context.Context) (Credential, error) {
	v, err, _ := s.flight.Do("login", func() (any, error) {
		value, err := s.login(ctx, s.Client)
		if err != nil {
			return nil, err
		}
		cred := Credential{Value: value, AcquiredAt: time.Now(), TTL: s.ttl}
		s.mu.Lock()
		s.cred = cred
		s.hasCred = true
		s.mu.Unlock()
		s.logger.Debug().Msg("session credential acquired")
		return cred, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

// Evict discards the cached credential so the next call logs in again.
func (s *SessionClient) Evict() {
	s.mu.Lock()
	s.hasCred = false
	s.cred = Credential{}
	s.mu.Unlock()
}

// Do injects the session credential and retries the request exactly once
// after an auth failure: evict, fresh login, retry. A second auth failure
// propagates unmodified.
func (s *SessionClient) Do(ctx context.Context, method, path string, body []byte, opts ...RequestOption) (*http.Response, []byte, error) {
	cred, err := s.EnsureCredential(ctx)
	if err != nil {
		return nil, nil, err
	}

	resp, data, err := s.doWithCred(ctx, cred, method, path, body, opts...)
	if err == nil || !IsCode(err, CodeAuthFailed) {
		return resp, data, err
	}
	if !s.inst.HasCredentials() {
		// Anonymous and static-token instances have no login to refresh.
		return resp, data, err
	}

	s.logger.Debug().Str("path", path).Msg("auth failure, refreshing session and retrying once")
	s.Evict()
	cred, lerr := s.Login(ctx)
	if lerr != nil {
		return nil, nil, lerr
	}
	return s.doWithCred(ctx, cred, method, path, body, opts...)
}

func (s *SessionClient) doWithCred(ctx context.Context, cred Credential, method, path string, body []byte, opts ...RequestOption) (*http.Response, []byte, error) {
	if cred.Value != "" && s.inject != nil {
		opts = append(opts, withModifier(func(req *http.Request) {
			s.inject(cred, req)
		}))
	}
	return s.Client.Do(ctx, method, path, body, opts...)
}

// Get issues an authenticated GET request.
func (s *SessionClient) Get(ctx context.Context, path string, opts ...RequestOption) ([]byte, error) {
	_, body, err := s.Do(ctx, http.MethodGet, path, nil, opts...)
	return body, err
}

// Post issues an authenticated POST request.
func (s *SessionClient) Post(ctx context.Context, path string, body []byte, opts ...RequestOption) ([]byte, error) {
	_, data, err := s.Do(ctx, http.MethodPost, path, body, opts...)
	return data, err
}

// Execute wraps Do so that no error ever escapes, mirroring Client.Execute
// for session-authenticated services.
func (s *SessionClient) Execute(ctx context.Context, method, path string, body []byte, opts ...RequestOption) ProxyResult {
	resp, data, err := s.Do(ctx, method, path, body, opts...)
	result := ProxyResult{}
	if resp != nil {
		result.Status = resp.StatusCode
	}
	if err != nil {
		result.Error = Classify(err, s.inst)
		if result.Status == 0 {
			result.Status = result.Error.Status
		}
		return result
	}
	result.Success = true
	result.Data = data
	return result
}
