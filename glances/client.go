// Package glances integrates the Glances system monitor REST API (v4).
// Glances exposes each metric family on its own endpoint, so one poll fans
// out to six sub-requests; a single slow or failing endpoint must not blank
// the whole system widget, so failed fields keep their last-known-good
// values. Authentication is optional HTTP Basic.
package glances

import (
	"context"
	"math"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/framerrr/framerr/filter"
	"github.com/framerrr/framerr/integration"
)

// noiseInterfaces matches virtual interfaces that only clutter a dashboard.
var noiseInterfaces = regexp.MustCompile(`^(lo|veth|br-|docker|virbr|tap|tun)`)

// noiseFilesystems matches pseudo and container-overlay filesystems.
var noiseFilesystems = map[string]struct{}{
	"tmpfs":    {},
	"devtmpfs": {},
	"overlay":  {},
	"squashfs": {},
}

// Client is the Glances adapter.
type Client struct {
	*integration.Client
	filters *filter.Set

	mu       sync.Mutex
	lastGood Snapshot
	hasLast  bool
}

var _ integration.Adapter = (*Client)(nil)

// New creates the adapter for one Glances instance. filters may be nil;
// user-configured expressions are applied on top of the built-in noise
// patterns.
func New(inst integration.Instance, filters *filter.Set, logger zerolog.Logger) *Client {
	base := integration.NewClient(inst, logger,
		integration.WithAuth(func(inst integration.Instance, req *http.Request) {
			if inst.HasCredentials() {
				req.SetBasicAuth(inst.Username, inst.Password)
			}
		}),
	)
	return &Client{Client: base, filters: filters}
}

// Test checks the status endpoint and reads the server version best-effort.
// Both endpoints answer with bare strings rather than JSON objects.
func (c *Client) Test(ctx context.Context) integration.TestResult {
	if _, err := c.Get(ctx, "/api/4/status", integration.WithPlainText()); err != nil {
		ce := integration.Classify(err, c.Instance())
		return integration.TestResult{Message: ce.Message, Error: ce}
	}

	result := integration.TestResult{Success: true, Message: "connection ok"}
	if body, err := c.Get(ctx, "/api/4/version", integration.WithPlainText()); err == nil {
		result.Version = strings.Trim(strings.TrimSpace(string(body)), `"`)
	}
	return result
}

// Poll fans out to all metric endpoints and merges fresh fields over the
// last-known-good composite. When every endpoint failed the poll errors
// and the cache is left untouched for the next cycle.
func (c *Client) Poll(ctx context.Context) (any, error) {
	outcomes := integration.FanOut(ctx, map[string]func(context.Context) (any, error){
		"cpu":     c.fetchCPU,
		"mem":     c.fetchMemory,
		"load":    c.fetchLoad,
		"network": c.fetchNetwork,
		"fs":      c.fetchFilesystems,
		"sensors": c.fetchSensors,
	})

	if integration.AllFailed(outcomes) {
		return nil, integration.FirstError(outcomes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.lastGood
	if o := outcomes["cpu"]; o.Err == nil {
		snap.CPU = o.Value.(CPU)
	}
	if o := outcomes["mem"]; o.Err == nil {
		snap.Memory = o.Value.(Memory)
	}
	if o := outcomes["load"]; o.Err == nil {
		snap.Load = o.Value.(Load)
	}
	if o := outcomes["network"]; o.Err == nil {
		snap.Network = o.Value.([]Interface)
	}
	if o := outcomes["fs"]; o.Err == nil {
		snap.Filesystems = o.Value.([]Filesystem)
	}
	if o := outcomes["sensors"]; o.Err == nil {
		snap.Sensors = o.Value.([]Sensor)
	}
	c.lastGood = snap
	c.hasLast = true

	return snap, nil
}

func (c *Client) fetchCPU(ctx context.Context) (any, error) {
	var stats cpuStats
	if err := c.GetJSON(ctx, "/api/4/cpu", &stats); err != nil {
		return nil, err
	}
	return CPU{TotalPercent: stats.Total}, nil
}

func (c *Client) fetchMemory(ctx context.Context) (any, error) {
	var stats memStats
	if err := c.GetJSON(ctx, "/api/4/mem", &stats); err != nil {
		return nil, err
	}
	return Memory{Total: stats.Total, Used: stats.Used, Percent: stats.Percent}, nil
}

func (c *Client) fetchLoad(ctx context.Context) (any, error) {
	var stats loadStats
	if err := c.GetJSON(ctx, "/api/4/load", &stats); err != nil {
		return nil, err
	}
	load := Load{
		Min1:  stats.Min1,
		Min5:  stats.Min5,
		Min15: stats.Min15,
		Cores: stats.CPUCore,
	}
	if stats.CPUCore > 0 {
		load.PerCorePercent = math.Round(stats.Min1/float64(stats.CPUCore)*1000) / 10
	}
	return load, nil
}

func (c *Client) fetchNetwork(ctx context.Context) (any, error) {
	var stats []networkStats
	if err := c.GetJSON(ctx, "/api/4/network", &stats); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stats))
	interfaces := make([]Interface, 0, len(stats))
	for _, n := range stats {
		if noiseInterfaces.MatchString(n.InterfaceName) {
			continue
		}
		if c.filters.Drop(filter.Entry{Name: n.InterfaceName, Kind: "network", Value: float64(n.BytesRecv)}) {
			continue
		}
		if _, dup := seen[n.InterfaceName]; dup {
			continue
		}
		seen[n.InterfaceName] = struct{}{}
		interfaces = append(interfaces, Interface{
			Name:      n.InterfaceName,
			BytesRecv: n.BytesRecv,
			BytesSent: n.BytesSent,
		})
	}
	return interfaces, nil
}

func (c *Client) fetchFilesystems(ctx context.Context) (any, error) {
	var stats []fsStats
	if err := c.GetJSON(ctx, "/api/4/fs", &stats); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stats))
	filesystems := make([]Filesystem, 0, len(stats))
	for _, f := range stats {
		if _, noisy := noiseFilesystems[f.FsType]; noisy {
			continue
		}
		if c.filters.Drop(filter.Entry{Name: f.MountPoint, Kind: "fs", Value: f.Percent}) {
			continue
		}
		if _, dup := seen[f.MountPoint]; dup {
			continue
		}
		seen[f.MountPoint] = struct{}{}
		filesystems = append(filesystems, Filesystem{
			Device:     f.DeviceName,
			MountPoint: f.MountPoint,
			Size:       f.Size,
			Used:       f.Used,
			Percent:    f.Percent,
		})
	}
	return filesystems, nil
}

func (c *Client) fetchSensors(ctx context.Context) (any, error) {
	var stats []sensorStats
	if err := c.GetJSON(ctx, "/api/4/sensors", &stats); err != nil {
		return nil, err
	}

	// Sensor lists often repeat the same label across adapters; keep the
	// first reading per label.
	seen := make(map[string]struct{}, len(stats))
	sensors := make([]Sensor, 0, len(stats))
	for _, s := range stats {
		if _, dup := seen[s.Label]; dup {
			continue
		}
		if c.filters.Drop(filter.Entry{Name: s.Label, Kind: "sensor", Value: s.Value}) {
			continue
		}
		seen[s.Label] = struct{}{}
		sensors = append(sensors, Sensor{Label: s.Label, Value: s.Value, Unit: s.Unit})
	}
	return sensors, nil
}
