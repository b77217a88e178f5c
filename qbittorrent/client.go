// Package qbittorrent integrates the qBittorrent Web API. Authentication is
// a cookie session acquired via /api/v2/auth/login; a rejected login comes
// back as a 200 with the literal body "Fails.", so the failure signal is
// detected in the body rather than the status code. Instances without a
// configured username/password rely on the WebUI's local-auth bypass and
// run anonymously.
package qbittorrent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/framerrr/framerr/integration"
)

const loginFailureSentinel = "Fails."

// Client is the qBittorrent adapter.
type Client struct {
	session *integration.SessionClient

	mu       sync.Mutex
	lastGood Snapshot
	hasLast  bool
}

var _ integration.Adapter = (*Client)(nil)

// New creates the adapter for one qBittorrent instance.
func New(inst integration.Instance, logger zerolog.Logger) *Client {
	base := integration.NewClient(inst, logger)
	return &Client{
		session: integration.NewSessionClient(base, login, injectCookie),
	}
}

// login performs the forms-based login, bypassing credential injection, and
// extracts the SID session cookie.
func login(ctx context.Context, c *integration.Client) (string, error) {
	inst := c.Instance()
	form := url.Values{
		"username": {inst.Username},
		"password": {inst.Password},
	}

	resp, body, err := c.Do(ctx, http.MethodPost, "/api/v2/auth/login", []byte(form.Encode()),
		integration.WithPlainText(),
		integration.WithHeader("Content-Type", "application/x-www-form-urlencoded"),
		// The WebUI rejects logins whose Referer does not match its host.
		integration.WithHeader("Referer", inst.BaseURL()),
	)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(string(body)) == loginFailureSentinel {
		return "", integration.NewError(integration.CodeAuthFailed, inst, "login rejected by qBittorrent")
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" {
			return cookie.Value, nil
		}
	}
	return "", integration.NewError(integration.CodeAuthFailed, inst, "no SID cookie in login response")
}

func injectCookie(cred integration.Credential, req *http.Request) {
	req.AddCookie(&http.Cookie{Name: "SID", Value: cred.Value})
}

// Instance returns the instance this adapter was built for.
func (c *Client) Instance() integration.Instance {
	return c.session.Instance()
}

// Test checks connectivity via the authenticated version endpoint. The
// version is the raw response body, e.g. "v4.6.3".
func (c *Client) Test(ctx context.Context) integration.TestResult {
	body, err := c.session.Get(ctx, "/api/v2/app/version", integration.WithPlainText())
	if err != nil {
		ce := integration.Classify(err, c.Instance())
		return integration.TestResult{Message: ce.Message, Error: ce}
	}
	return integration.TestResult{
		Success: true,
		Message: "connection ok",
		Version: strings.TrimSpace(string(body)),
	}
}

// Poll fans out to the torrent list and global transfer endpoints. A field
// whose sub-request failed keeps its last-known-good value; if both fail
// the poll errors and the cache stays untouched.
func (c *Client) Poll(ctx context.Context) (any, error) {
	outcomes := integration.FanOut(ctx, map[string]func(context.Context) (any, error){
		"torrents": c.fetchTorrents,
		"transfer": c.fetchTransfer,
	})

	if integration.AllFailed(outcomes) {
		return nil, integration.FirstError(outcomes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.lastGood
	if o := outcomes["torrents"]; o.Err == nil {
		torrents := o.Value.([]Torrent)
		snap.Torrents = torrents
		snap.Downloading, snap.Seeding = countStates(torrents)
	}
	if o := outcomes["transfer"]; o.Err == nil {
		snap.Transfer = o.Value.(Transfer)
	}
	c.lastGood = snap
	c.hasLast = true

	return snap, nil
}

func (c *Client) fetchTorrents(ctx context.Context) (any, error) {
	body, err := c.session.Get(ctx, "/api/v2/torrents/info")
	if err != nil {
		return nil, err
	}
	var infos []torrentInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, integration.NewError(integration.CodeUnknown, c.Instance(), "decoding torrent list: "+err.Error())
	}

	torrents := make([]Torrent, 0, len(infos))
	for _, t := range infos {
		torrents = append(torrents, Torrent{
			Hash:          t.Hash,
			Name:          t.Name,
			State:         t.State,
			Progress:      t.Progress,
			Size:          t.Size,
			DownloadSpeed: t.Dlspeed,
			UploadSpeed:   t.Upspeed,
			Ratio:         t.Ratio,
			Category:      t.Category,
			ETA:           t.ETA,
		})
	}
	return torrents, nil
}

func (c *Client) fetchTransfer(ctx context.Context) (any, error) {
	body, err := c.session.Get(ctx, "/api/v2/transfer/info")
	if err != nil {
		return nil, err
	}
	var info transferInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, integration.NewError(integration.CodeUnknown, c.Instance(), "decoding transfer info: "+err.Error())
	}
	return Transfer{
		DownloadSpeed:     info.DlInfoSpeed,
		UploadSpeed:       info.UpInfoSpeed,
		SessionDownloaded: info.DlInfoData,
		SessionUploaded:   info.UpInfoData,
		ConnectionStatus:  info.ConnectionStatus,
	}, nil
}

func countStates(torrents []Torrent) (downloading, seeding int) {
	for _, t := range torrents {
		if _, ok := downloadingStates[t.State]; ok {
			downloading++
		}
		if _, ok := seedingStates[t.State]; ok {
			seeding++
		}
	}
	return downloading, seeding
}
