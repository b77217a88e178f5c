// Package jellyfin integrates a Jellyfin media server. Authentication is a
// static API token sent in the X-Emby-Token header; playback state arrives
// both by polling /Sessions and over the server's WebSocket push feed.
package jellyfin

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/framerrr/framerr/integration"
	"github.com/framerrr/framerr/realtime"
)

const minimumVersion = "10.8.0"

// Client is the Jellyfin adapter.
type Client struct {
	*integration.Client
}

var (
	_ integration.Adapter = (*Client)(nil)
	_ realtime.Source     = (*Client)(nil)
)

// New creates the adapter for one Jellyfin instance. Config problems are
// surfaced as CodeConfigInvalid on first use, not here.
func New(inst integration.Instance, logger zerolog.Logger) *Client {
	base := integration.NewClient(inst, logger,
		integration.WithAuth(func(inst integration.Instance, req *http.Request) {
			req.Header.Set("X-Emby-Token", inst.APIKey)
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

// Test checks connectivity via the public system info endpoint, which also
// reports the server version.
func (c *Client) Test(ctx context.Context) integration.TestResult {
	return c.TestEndpoint(ctx, "/System/Info/Public", integration.JSONVersion("Version"), minimumVersion)
}

// Poll fetches current sessions and shapes them into the stream snapshot.
func (c *Client) Poll(ctx context.Context) (any, error) {
	var sessions []session
	if err := c.GetJSON(ctx, "/Sessions", &sessions); err != nil {
		return nil, err
	}

	snap := Snapshot{TotalSessions: len(sessions)}
	for _, s := range sessions {
		if s.NowPlayingItem == nil {
			continue
		}
		stream := Stream{
			SessionID: s.ID,
			User:      s.UserName,
			Title:     s.NowPlayingItem.Name,
			Series:    s.NowPlayingItem.SeriesName,
			MediaType: s.NowPlayingItem.Type,
			Device:    s.DeviceName,
			Client:    s.Client,
		}
		if s.PlayState != nil {
			stream.Paused = s.PlayState.IsPaused
			if s.NowPlayingItem.RunTimeTicks > 0 {
				pct := float64(s.PlayState.PositionTicks) / float64(s.NowPlayingItem.RunTimeTicks) * 100
				stream.Progress = math.Round(pct*10) / 10
			}
		}
		snap.ActiveStreams = append(snap.ActiveStreams, stream)
	}

	return snap, nil
}
