package tautulli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/framerrr/framerr/integration"
)

var errMissingAPIKey = errors.New("api key is required")

// envelope is the wrapper around every Tautulli API response.
type envelope struct {
	Response struct {
		Result  string          `json:"result"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"response"`
}

// decodeEnvelope unwraps the response envelope, treating a non-success
// result flag as an auth failure: Tautulli answers bad API keys with a 200
// and result "error".
func decodeEnvelope(body []byte, cmd string, inst integration.Instance, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return integration.NewError(integration.CodeUnknown, inst, fmt.Sprintf("decoding %s response: %v", cmd, err))
	}
	if env.Response.Result != "success" {
		msg := env.Response.Message
		if msg == "" {
			msg = fmt.Sprintf("%s returned result %q", cmd, env.Response.Result)
		}
		return integration.NewError(integration.CodeAuthFailed, inst, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Response.Data, out); err != nil {
		return integration.NewError(integration.CodeUnknown, inst, fmt.Sprintf("decoding %s data: %v", cmd, err))
	}
	return nil
}

type tautulliInfo struct {
	Version string `json:"tautulli_version"`
}

// activityData is the wire shape of get_activity. Tautulli reports several
// numeric fields as strings.
type activityData struct {
	StreamCount    string `json:"stream_count"`
	WanBandwidth   int64  `json:"wan_bandwidth"`
	TotalBandwidth int64  `json:"total_bandwidth"`
	Sessions       []struct {
		User            string `json:"user"`
		FullTitle       string `json:"full_title"`
		State           string `json:"state"`
		Player          string `json:"player"`
		ProgressPercent string `json:"progress_percent"`
	} `json:"sessions"`
}

// Session is one active playback session shaped for display.
type Session struct {
	User     string `json:"user"`
	Title    string `json:"title"`
	State    string `json:"state"`
	Player   string `json:"player"`
	Progress int    `json:"progress"`
}

// Snapshot is the shaped poll composite for a Tautulli instance.
type Snapshot struct {
	StreamCount    int       `json:"streamCount"`
	WanBandwidth   int64     `json:"wanBandwidth"`
	TotalBandwidth int64     `json:"totalBandwidth"`
	Sessions       []Session `json:"sessions"`
}
