package config

import (
	"time"

	"github.com/framerrr/framerr/integration"
)

// Config is the complete configuration structure.
type Config struct {
	Instances []InstanceConfig `mapstructure:"instances"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// InstanceConfig is one configured service connection. Which credential
// fields are required depends on the service type and is validated by that
// service's adapter, not here.
type InstanceConfig struct {
	ID       string `mapstructure:"id"`
	Type     string `mapstructure:"type"`
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Token    string `mapstructure:"token"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	HostOverride    string        `mapstructure:"host_override"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Filters         []string      `mapstructure:"filters"`
	Insecure        bool          `mapstructure:"insecure"`
}

// ToInstance converts the config entry into the typed instance the
// adapters consume.
func (ic InstanceConfig) ToInstance() integration.Instance {
	return integration.Instance{
		ID:              ic.ID,
		Type:            integration.ServiceType(ic.Type),
		URL:             ic.URL,
		APIKey:          ic.APIKey,
		Token:           ic.Token,
		Username:        ic.Username,
		Password:        ic.Password,
		HostOverride:    ic.HostOverride,
		RefreshInterval: ic.RefreshInterval,
		Filters:         ic.Filters,
		Insecure:        ic.Insecure,
	}
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
