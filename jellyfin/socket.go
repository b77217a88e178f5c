package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/framerrr/framerr/realtime"
)

const defaultRefreshInterval = 15 * time.Second

// stateChangeTypes are the socket message types that indicate playback or
// library state moved and a re-fetch is worthwhile. KeepAlive and progress
// chatter outside this set is ignored.
var stateChangeTypes = map[string]struct{}{
	"Sessions":         {},
	"PlaybackStart":    {},
	"PlaybackStopped":  {},
	"PlaybackProgress": {},
	"LibraryChanged":   {},
	"UserDataChanged":  {},
}

// Dial opens the Jellyfin WebSocket feed for this instance.
func (c *Client) Dial(ctx context.Context) (realtime.Conn, error) {
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}

	inst := c.Instance()
	base := inst.BaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	socketURL := fmt.Sprintf("%s/socket?api_key=%s&deviceId=%s",
		base,
		url.QueryEscape(inst.APIKey),
		url.QueryEscape("framerr-"+inst.ID),
	)
	return realtime.DialWebSocket(ctx, socketURL, nil, inst.Insecure)
}

type socketMessage struct {
	MessageType string `json:"MessageType"`
}

// StateChanged reports whether an inbound socket message is one of the
// recognized state-change types.
func (c *Client) StateChanged(message []byte) bool {
	var m socketMessage
	if err := json.Unmarshal(message, &m); err != nil {
		return false
	}
	_, ok := stateChangeTypes[m.MessageType]
	return ok
}

// Fetch retrieves the current snapshot for the realtime manager.
func (c *Client) Fetch(ctx context.Context) (any, error) {
	return c.Poll(ctx)
}

// RefreshInterval is the fallback refresh cadence while the socket is
// connected, covering events the feed missed.
func (c *Client) RefreshInterval() time.Duration {
	if d := c.Instance().RefreshInterval; d > 0 {
		return d
	}
	return defaultRefreshInterval
}
