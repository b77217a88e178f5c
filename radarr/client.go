// Package radarr integrates a Radarr movie manager through the starr
// client library, which handles the X-Api-Key scheme itself. Errors coming
// out of starr are mapped into the shared taxonomy before they surface.
package radarr

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golift.io/starr"
	"golift.io/starr/radarr"

	"github.com/framerrr/framerr/integration"
)

// Client is the Radarr adapter.
type Client struct {
	client *radarr.Radarr
	inst   integration.Instance
	logger zerolog.Logger

	mu       sync.Mutex
	lastGood Snapshot
	hasLast  bool
}

var _ integration.Adapter = (*Client)(nil)

// New creates the adapter for one Radarr instance.
func New(inst integration.Instance, logger zerolog.Logger) *Client {
	config := starr.New(inst.APIKey, inst.BaseURL(), integration.DefaultTimeout)
	return &Client{
		client: radarr.New(config),
		inst:   inst,
		logger: logger.With().Str("service", string(inst.Type)).Str("instance", inst.ID).Logger(),
	}
}

// Instance returns the instance this adapter was built for.
func (c *Client) Instance() integration.Instance {
	return c.inst
}

// validate mirrors the fail-fast config check of the shared base adapter;
// starr would otherwise issue the call with an empty key and surface a 401.
func (c *Client) validate() error {
	if c.inst.URL == "" {
		return integration.NewError(integration.CodeConfigInvalid, c.inst, "url is required")
	}
	if c.inst.APIKey == "" {
		return integration.NewError(integration.CodeConfigInvalid, c.inst, "api key is required")
	}
	return nil
}

// classify maps starr's request errors into the shared taxonomy.
func (c *Client) classify(err error) error {
	var reqErr *starr.ReqError
	if errors.As(err, &reqErr) {
		ce := integration.ClassifyResponse(reqErr.Code, "", nil, false, c.inst)
		if ce != nil {
			ce.Err = err
			return ce
		}
		if reqErr.Code == http.StatusNotFound {
			return integration.NewError(integration.CodeUnknown, c.inst, err.Error())
		}
	}
	return integration.Classify(err, c.inst)
}

// Test checks connectivity via the system status endpoint.
func (c *Client) Test(ctx context.Context) integration.TestResult {
	if err := c.validate(); err != nil {
		ce := integration.Classify(err, c.inst)
		return integration.TestResult{Message: ce.Message, Error: ce}
	}

	status, err := c.client.GetSystemStatusContext(ctx)
	if err != nil {
		ce := integration.Classify(c.classify(err), c.inst)
		return integration.TestResult{Message: ce.Message, Error: ce}
	}
	return integration.TestResult{
		Success: true,
		Message: "connection ok",
		Version: status.Version,
	}
}

// Poll fans out to the movie library and download queue. Either field keeps
// its last-known-good value when its sub-request fails.
func (c *Client) Poll(ctx context.Context) (any, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	outcomes := integration.FanOut(ctx, map[string]func(context.Context) (any, error){
		"library": c.fetchLibrary,
		"queue":   c.fetchQueue,
	})

	if integration.AllFailed(outcomes) {
		return nil, integration.FirstError(outcomes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.lastGood
	if o := outcomes["library"]; o.Err == nil {
		snap.Library = o.Value.(Library)
	}
	if o := outcomes["queue"]; o.Err == nil {
		snap.Queue = o.Value.([]QueueItem)
	}
	c.lastGood = snap
	c.hasLast = true

	return snap, nil
}

func (c *Client) fetchLibrary(ctx context.Context) (any, error) {
	movies, err := c.client.GetMovieContext(ctx, &radarr.GetMovie{})
	if err != nil {
		return nil, c.classify(err)
	}

	lib := Library{Total: len(movies)}
	for _, m := range movies {
		if m.HasFile {
			lib.Downloaded++
			lib.SizeOnDisk += m.SizeOnDisk
		} else if m.Monitored {
			lib.Missing++
		}
	}
	return lib, nil
}

func (c *Client) fetchQueue(ctx context.Context) (any, error) {
	queue, err := c.client.GetQueueContext(ctx, 100, 100)
	if err != nil {
		return nil, c.classify(err)
	}

	items := make([]QueueItem, 0, len(queue.Records))
	for _, r := range queue.Records {
		item := QueueItem{
			Title:    r.Title,
			Status:   r.Status,
			Size:     int64(r.Size),
			SizeLeft: int64(r.Sizeleft),
		}
		if r.Size > 0 {
			item.Progress = (r.Size - r.Sizeleft) / r.Size * 100
		}
		items = append(items, item)
	}
	return items, nil
}

// Library summarizes the movie library.
type Library struct {
	Total      int   `json:"total"`
	Downloaded int   `json:"downloaded"`
	Missing    int   `json:"missing"`
	SizeOnDisk int64 `json:"sizeOnDisk"`
}

// QueueItem is one download in progress.
type QueueItem struct {
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Size     int64   `json:"size"`
	SizeLeft int64   `json:"sizeLeft"`
	Progress float64 `json:"progress"`
}

// Snapshot is the shaped poll composite for a Radarr instance.
type Snapshot struct {
	Library Library     `json:"library"`
	Queue   []QueueItem `json:"queue"`
}
