// Package portainer integrates the Portainer container-management API.
// Authentication is either a static access token sent as X-API-Key, or a
// JWT acquired by posting credentials to /api/auth and sent as a bearer
// token; the JWT is cached and refreshed through the shared session
// lifecycle.
package portainer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/framerrr/framerr/integration"
)

// Client is the Portainer adapter.
type Client struct {
	session *integration.SessionClient
}

var _ integration.Adapter = (*Client)(nil)

// New creates the adapter for one Portainer instance.
func New(inst integration.Instance, logger zerolog.Logger) *Client {
	opts := []integration.Option{
		integration.WithValidator(func(inst integration.Instance) error {
			if inst.Token == "" && !inst.HasCredentials() {
				return errMissingCredentials
			}
			return nil
		}),
	}
	// A configured access token is sent as-is on every request; only
	// username/password instances go through the JWT session.
	if inst.Token != "" {
		opts = append(opts, integration.WithAuth(func(inst integration.Instance, req *http.Request) {
			req.Header.Set("X-API-Key", inst.Token)
		}))
	}
	base := integration.NewClient(inst, logger, opts...)
	return &Client{
		session: integration.NewSessionClient(base, login, injectBearer),
	}
}

// login posts credentials and extracts the JWT.
func login(ctx context.Context, c *integration.Client) (string, error) {
	inst := c.Instance()
	payload, _ := json.Marshal(map[string]string{
		"username": inst.Username,
		"password": inst.Password,
	})

	_, body, err := c.Do(ctx, http.MethodPost, "/api/auth", payload,
		integration.WithHeader("Content-Type", "application/json"),
	)
	if err != nil {
		// Portainer answers bad credentials with a 422, not a 401.
		var ce *integration.ClassifiedError
		if errors.As(err, &ce) && ce.Status >= 400 && ce.Status < 500 {
			return "", integration.NewError(integration.CodeAuthFailed, inst, "credentials rejected")
		}
		return "", err
	}

	var auth struct {
		JWT string `json:"jwt"`
	}
	if err := json.Unmarshal(body, &auth); err != nil || auth.JWT == "" {
		return "", integration.NewError(integration.CodeAuthFailed, inst, "no token in auth response")
	}
	return auth.JWT, nil
}

func injectBearer(cred integration.Credential, req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+cred.Value)
}

// Instance returns the instance this adapter was built for.
func (c *Client) Instance() integration.Instance {
	return c.session.Instance()
}

// Test checks connectivity via the unauthenticated system status endpoint.
func (c *Client) Test(ctx context.Context) integration.TestResult {
	// System status is public, but run one authenticated call too so a bad
	// password is caught at test time rather than on the first poll.
	result := c.session.Client.TestEndpoint(ctx, "/api/system/status", integration.JSONVersion("Version"), "")
	if !result.Success {
		return result
	}
	if _, err := c.session.Get(ctx, "/api/endpoints"); err != nil {
		ce := integration.Classify(err, c.Instance())
		return integration.TestResult{Message: ce.Message, Error: ce}
	}
	return result
}

// Poll fetches the configured environments and their health.
func (c *Client) Poll(ctx context.Context) (any, error) {
	body, err := c.session.Get(ctx, "/api/endpoints")
	if err != nil {
		return nil, err
	}

	var endpoints []endpoint
	if err := json.Unmarshal(body, &endpoints); err != nil {
		return nil, integration.NewError(integration.CodeUnknown, c.Instance(), "decoding endpoints: "+err.Error())
	}

	snap := Snapshot{}
	for _, e := range endpoints {
		env := Environment{ID: e.ID, Name: e.Name, Up: e.Status == 1}
		if env.Up {
			snap.EnvironmentsUp++
		}
		snap.Environments = append(snap.Environments, env)
	}
	return snap, nil
}
