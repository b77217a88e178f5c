package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every outbound call unless overridden per request.
const DefaultTimeout = 15 * time.Second

// Adapter is the uniform contract every service integration implements.
// The registry and the CLI drive instances exclusively through it.
type Adapter interface {
	// Instance returns the configuration this adapter was built from.
	Instance() Instance
	// Test checks connectivity and, where possible, reads the service version.
	Test(ctx context.Context) TestResult
	// Poll fetches and shapes the service's current state.
	Poll(ctx context.Context) (any, error)
}

// AuthFunc injects service-specific authentication into an outgoing request.
type AuthFunc func(inst Instance, req *http.Request)

// ValidateFunc checks service-specific required config fields. The URL is
// validated before it runs.
type ValidateFunc func(inst Instance) error

// Client is the base HTTP access layer shared by all adapters. Stateless
// auth schemes (API key header, query parameter, HTTP Basic) use it
// directly; session-based schemes wrap it in a SessionClient.
type Client struct {
	inst     Instance
	http     *http.Client
	logger   zerolog.Logger
	auth     AuthFunc
	validate ValidateFunc
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAuth sets the auth-header injection hook.
func WithAuth(auth AuthFunc) Option {
	return func(c *Client) { c.auth = auth }
}

// WithValidator adds service-specific config validation.
func WithValidator(v ValidateFunc) Option {
	return func(c *Client) { c.validate = v }
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates the base access layer for one instance.
func NewClient(inst Instance, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		inst:    inst,
		timeout: DefaultTimeout,
		logger:  logger.With().Str("service", string(inst.Type)).Str("instance", inst.ID).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		transport := http.DefaultTransport
		if inst.Insecure {
			t := http.DefaultTransport.(*http.Transport).Clone()
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			transport = t
		}
		c.http = &http.Client{Transport: transport}
	}
	return c
}

// Instance returns the instance this client was built for.
func (c *Client) Instance() Instance {
	return c.inst
}

// Logger returns the instance-scoped logger.
func (c *Client) Logger() zerolog.Logger {
	return c.logger
}

// ValidateConfig fails fast with CodeConfigInvalid before any network call.
// A URL is always required; services add their own required fields via
// WithValidator.
func (c *Client) ValidateConfig() error {
	if strings.TrimSpace(c.inst.URL) == "" {
		return NewError(CodeConfigInvalid, c.inst, "url is required")
	}
	u, err := url.Parse(c.inst.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewError(CodeConfigInvalid, c.inst, fmt.Sprintf("invalid url %q", c.inst.URL))
	}
	if c.validate != nil {
		if err := c.validate(c.inst); err != nil {
			var ce *ClassifiedError
			if errors.As(err, &ce) {
				return ce
			}
			return NewError(CodeConfigInvalid, c.inst, err.Error())
		}
	}
	return nil
}

type requestOptions struct {
	timeout time.Duration
	headers http.Header
	query   url.Values
	plain   bool
	modify  []func(*http.Request)
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithRequestTimeout bounds this call with a custom timeout.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHeader adds a call-specific header, merged after auth headers.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.headers.Set(key, value) }
}

// WithQuery appends a query parameter to the request URL.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) { o.query.Set(key, value) }
}

// WithPlainText marks the call as expecting a non-JSON body, disabling
// the HTML login-page sniff for services that legitimately return text.
func WithPlainText() RequestOption {
	return func(o *requestOptions) { o.plain = true }
}

// withModifier runs f on the fully built request. Used by SessionClient to
// attach session credentials.
func withModifier(f func(*http.Request)) RequestOption {
	return func(o *requestOptions) { o.modify = append(o.modify, f) }
}

// Do validates config, builds the URL, merges auth and call headers, issues
// the request with a bounded timeout and classifies any failure. The
// response body is fully read before returning.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, opts ...RequestOption) (*http.Response, []byte, error) {
	if err := c.ValidateConfig(); err != nil {
		return nil, nil, err
	}

	ro := requestOptions{
		timeout: c.timeout,
		headers: http.Header{},
		query:   url.Values{},
	}
	for _, opt := range opts {
		opt(&ro)
	}

	ctx, cancel := context.WithTimeout(ctx, ro.timeout)
	defer cancel()

	requestURL := c.inst.BaseURL() + path
	if len(ro.query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		requestURL += sep + ro.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, nil, NewError(CodeConfigInvalid, c.inst, fmt.Sprintf("building request: %v", err))
	}

	if !ro.plain {
		req.Header.Set("Accept", "application/json")
	}
	if c.auth != nil {
		c.auth(c.inst, req)
	}
	for key, values := range ro.headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	for _, f := range ro.modify {
		f(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ce := Classify(err, c.inst)
		c.logger.Debug().Str("method", method).Str("path", path).Str("code", string(ce.Code)).Msg("request failed")
		return nil, nil, ce
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, Classify(err, c.inst)
	}

	if ce := ClassifyResponse(resp.StatusCode, resp.Header.Get("Content-Type"), data, !ro.plain, c.inst); ce != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Str("code", string(ce.Code)).Msg("request rejected")
		return resp, data, ce
	}

	return resp, data, nil
}

// Get issues a GET request and returns the body.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) ([]byte, error) {
	_, body, err := c.Do(ctx, http.MethodGet, path, nil, opts...)
	return body, err
}

// Post issues a POST request and returns the body.
func (c *Client) Post(ctx context.Context, path string, body []byte, opts ...RequestOption) ([]byte, error) {
	_, data, err := c.Do(ctx, http.MethodPost, path, body, opts...)
	return data, err
}

// GetJSON issues a GET request and unmarshals the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any, opts ...RequestOption) error {
	body, err := c.Get(ctx, path, opts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewError(CodeUnknown, c.inst, fmt.Sprintf("decoding response from %s: %v", path, err))
	}
	return nil
}

// ProxyResult is the non-throwing outcome of Execute. Callers aggregating
// many instances inspect Success instead of handling an error.
type ProxyResult struct {
	Success bool             `json:"success"`
	Status  int              `json:"status"`
	Data    json.RawMessage  `json:"data,omitempty"`
	Error   *ClassifiedError `json:"error,omitempty"`
}

// Execute wraps Do so that no error ever escapes; one failing instance must
// not bring down a caller processing many.
func (c *Client) Execute(ctx context.Context, method, path string, body []byte, opts ...RequestOption) ProxyResult {
	resp, data, err := c.Do(ctx, method, path, body, opts...)
	result := ProxyResult{}
	if resp != nil {
		result.Status = resp.StatusCode
	}
	if err != nil {
		result.Error = Classify(err, c.inst)
		if result.Status == 0 {
			result.Status = result.Error.Status
		}
		return result
	}
	result.Success = true
	result.Data = data
	return result
}

// TestResult reports the outcome of a connectivity test.
type TestResult struct {
	Success bool
	Message string
	Version string
	Error   *ClassifiedError
}

// VersionParser extracts a version string from a successful test response.
// Services report versions in the body, a header, or not at all.
type VersionParser func(body []byte, header http.Header) string

// JSONVersion returns a parser reading a top-level string field from a
// JSON body.
func JSONVersion(field string) VersionParser {
	return func(body []byte, _ http.Header) string {
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			return ""
		}
		if v, ok := m[field].(string); ok {
			return v
		}
		return ""
	}
}

// TestEndpoint is the generic connectivity test: call the service's declared
// test endpoint, extract an optional version and compare it against the
// minimum the dashboard supports. Services with unconventional success
// signals (GraphQL errors in a 200 body, result flags) override Test
// wholesale instead.
func (c *Client) TestEndpoint(ctx context.Context, path string, parse VersionParser, minVersion string, opts ...RequestOption) TestResult {
	resp, body, err := c.Do(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		ce := Classify(err, c.inst)
		return TestResult{Message: ce.Message, Error: ce}
	}

	result := TestResult{Success: true, Message: "connection ok"}
	if parse != nil {
		result.Version = parse(body, resp.Header)
		if result.Version != "" && minVersion != "" && versionBelow(result.Version, minVersion) {
			result.Message = fmt.Sprintf("connected, but version %s is older than supported minimum %s", result.Version, minVersion)
		}
	}
	return result
}

// versionBelow reports whether have is older than min. Unparseable versions
// never fail a test.
func versionBelow(have, min string) bool {
	hv, err := semver.ParseTolerant(strings.TrimPrefix(have, "v"))
	if err != nil {
		return false
	}
	mv, err := semver.ParseTolerant(strings.TrimPrefix(min, "v"))
	if err != nil {
		return false
	}
	return hv.LT(mv)
}
