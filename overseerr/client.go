// Package overseerr integrates the Overseerr request manager.
// Authentication is a static API key in the X-Api-Key header.
package overseerr

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/framerrr/framerr/integration"
)

// Client is the Overseerr adapter.
type Client struct {
	*integration.Client
}

var _ integration.Adapter = (*Client)(nil)

// New creates the adapter for one Overseerr instance.
func New(inst integration.Instance, logger zerolog.Logger) *Client {
	base := integration.NewClient(inst, logger,
		integration.WithAuth(func(inst integration.Instance, req *http.Request) {
			req.Header.Set("X-Api-Key", inst.APIKey)
		}),
		integration.WithValidator(func(inst integration.Instance) error {
			if inst.APIKey == "" {
				return errors.New("api key is required")
			}
			return nil
		}),
	)
	return &Client{Client: base}
}

// Test checks connectivity via the status endpoint, which reports the
// server version.
func (c *Client) Test(ctx context.Context) integration.TestResult {
	return c.TestEndpoint(ctx, "/api/v1/status", integration.JSONVersion("version"), "")
}

// Poll fetches the request counters shown on the dashboard.
func (c *Client) Poll(ctx context.Context) (any, error) {
	var counts requestCount
	if err := c.GetJSON(ctx, "/api/v1/request/count", &counts); err != nil {
		return nil, err
	}
	return Snapshot{
		Total:      counts.Total,
		Pending:    counts.Pending,
		Approved:   counts.Approved,
		Processing: counts.Processing,
		Available:  counts.Available,
	}, nil
}

// requestCount is the wire shape of /api/v1/request/count.
type requestCount struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Approved   int `json:"approved"`
	Processing int `json:"processing"`
	Available  int `json:"available"`
}

// Snapshot is the shaped poll composite for an Overseerr instance.
type Snapshot struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Approved   int `json:"approved"`
	Processing int `json:"processing"`
	Available  int `json:"available"`
}
