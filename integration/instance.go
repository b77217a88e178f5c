package integration

import (
	"strings"
	"time"
)

// ServiceType identifies which external service an instance talks to.
type ServiceType string

// Supported service types.
const (
	ServiceJellyfin    ServiceType = "jellyfin"
	ServiceQBittorrent ServiceType = "qbittorrent"
	ServiceTautulli    ServiceType = "tautulli"
	ServiceGlances     ServiceType = "glances"
	ServiceOverseerr   ServiceType = "overseerr"
	ServicePortainer   ServiceType = "portainer"
	ServiceStash       ServiceType = "stash"
	ServiceRadarr      ServiceType = "radarr"
)

// KnownService reports whether t is one of the supported service types.
func KnownService(t ServiceType) bool {
	switch t {
	case ServiceJellyfin, ServiceQBittorrent, ServiceTautulli, ServiceGlances,
		ServiceOverseerr, ServicePortainer, ServiceStash, ServiceRadarr:
		return true
	}
	return false
}

// Instance is one configured connection to an external service. It is
// immutable for the duration of an operation; config edits replace the
// whole value through the registry.
type Instance struct {
	ID   string
	Type ServiceType
	URL  string

	// Credentials; which fields are required depends on the service.
	APIKey   string
	Token    string
	Username string
	Password string

	// HostOverride rewrites loopback hosts in the configured URL, for
	// deployments where the service runs in a sibling container.
	HostOverride string

	// RefreshInterval overrides the service's default fallback-refresh
	// interval for push-capable instances.
	RefreshInterval time.Duration

	// Filters are expression strings applied to poll entries (network
	// interfaces, mounts, sensors) to hide noise.
	Filters []string

	Insecure bool
}

// HasCredentials reports whether a username/password pair is configured.
// Session-based services treat a missing pair as anonymous access.
func (in Instance) HasCredentials() bool {
	return in.Username != "" || in.Password != ""
}

// BaseURL returns the configured URL normalized for request building:
// trailing slashes trimmed and the loopback host rewritten when a
// HostOverride is set.
func (in Instance) BaseURL() string {
	u := strings.TrimRight(in.URL, "/")
	if in.HostOverride != "" {
		for _, local := range []string{"127.0.0.1", "localhost"} {
			u = strings.Replace(u, "://"+local, "://"+in.HostOverride, 1)
		}
	}
	return u
}
