// Package tautulli integrates the Tautulli Plex-monitoring API. Every call
// goes through a single /api/v2 endpoint with the API key and command as
// query parameters, and success is signalled by a result flag inside the
// response envelope rather than the HTTP status, so the connectivity test
// is overridden wholesale.
package tautulli

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/framerrr/framerr/integration"
)

// Client is the Tautulli adapter.
type Client struct {
	*integration.Client
}

var _ integration.Adapter = (*Client)(nil)

// New creates the adapter for one Tautulli instance.
func New(inst integration.Instance, logger zerolog.Logger) *Client {
	base := integration.NewClient(inst, logger,
		integration.WithValidator(func(inst integration.Instance) error {
			if inst.APIKey == "" {
				return errMissingAPIKey
			}
			return nil
		}),
	)
	return &Client{Client: base}
}

// command issues one API command and unwraps the response envelope.
func (c *Client) command(ctx context.Context, cmd string, out any) error {
	body, err := c.Get(ctx, "/api/v2",
		integration.WithQuery("apikey", c.Instance().APIKey),
		integration.WithQuery("cmd", cmd),
	)
	if err != nil {
		return err
	}
	return decodeEnvelope(body, cmd, c.Instance(), out)
}

// Test checks connectivity by asking Tautulli about itself. A reachable
// server with a bad API key still answers 200, so the envelope's result
// flag is the real success signal.
func (c *Client) Test(ctx context.Context) integration.TestResult {
	var info tautulliInfo
	if err := c.command(ctx, "get_tautulli_info", &info); err != nil {
		ce := integration.Classify(err, c.Instance())
		return integration.TestResult{Message: ce.Message, Error: ce}
	}
	return integration.TestResult{
		Success: true,
		Message: "connection ok",
		Version: info.Version,
	}
}

// Poll fetches current playback activity.
func (c *Client) Poll(ctx context.Context) (any, error) {
	var act activityData
	if err := c.command(ctx, "get_activity", &act); err != nil {
		return nil, err
	}

	snap := Snapshot{
		StreamCount:    atoiLenient(act.StreamCount),
		WanBandwidth:   act.WanBandwidth,
		TotalBandwidth: act.TotalBandwidth,
	}
	for _, s := range act.Sessions {
		snap.Sessions = append(snap.Sessions, Session{
			User:     s.User,
			Title:    s.FullTitle,
			State:    s.State,
			Player:   s.Player,
			Progress: atoiLenient(s.ProgressPercent),
		})
	}
	return snap, nil
}

// atoiLenient tolerates the API's habit of reporting numbers as strings.
func atoiLenient(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
