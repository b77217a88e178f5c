package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/framerrr/framerr/config"
	"github.com/framerrr/framerr/filter"
	"github.com/framerrr/framerr/glances"
	"github.com/framerrr/framerr/integration"
	"github.com/framerrr/framerr/jellyfin"
	"github.com/framerrr/framerr/overseerr"
	"github.com/framerrr/framerr/portainer"
	"github.com/framerrr/framerr/qbittorrent"
	"github.com/framerrr/framerr/radarr"
	"github.com/framerrr/framerr/stash"
	"github.com/framerrr/framerr/tautulli"
)

var (
	cfgFile  string
	cfg      *config.Config
	logger   zerolog.Logger
	registry *integration.Registry

	// Command flags
	instanceID string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "framerr",
	Short: "An integration layer for self-hosted service dashboards",
	Long: `framerr connects to self-hosted services (Jellyfin, qBittorrent,
Tautulli, Glances, and others), normalizes their errors into a small
taxonomy, and exposes connectivity tests, polling, and realtime
streaming for all configured instances.`,
	PersistentPreRunE: initializeApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&instanceID, "instance", "i", "", "limit the command to one instance id")

	// Add subcommands
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeApp loads the configuration and builds the adapter registry
func initializeApp(cmd *cobra.Command, args []string) error {
	// Commands that don't talk to configured services skip config loading.
	switch cmd.Name() {
	case "version", "update":
		logger = setupLogger(config.LoggingConfig{Level: "info", Format: "console", Color: true})
		return nil
	}

	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	registry, err = buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build instance registry: %w", err)
	}

	logger.Debug().Int("instances", registry.Len()).Msg("Registry initialized")
	return nil
}

// buildRegistry constructs an adapter per configured instance
func buildRegistry(cfg *config.Config, logger zerolog.Logger) (*integration.Registry, error) {
	reg := integration.NewRegistry()
	compiler := filter.NewCompiler()

	for _, ic := range cfg.Instances {
		inst := ic.ToInstance()

		adapter, err := buildAdapter(inst, compiler, logger)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", inst.ID, err)
		}
		if err := reg.Add(adapter); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func buildAdapter(inst integration.Instance, compiler *filter.Compiler, logger zerolog.Logger) (integration.Adapter, error) {
	switch inst.Type {
	case integration.ServiceJellyfin:
		return jellyfin.New(inst, logger), nil
	case integration.ServiceQBittorrent:
		return qbittorrent.New(inst, logger), nil
	case integration.ServiceTautulli:
		return tautulli.New(inst, logger), nil
	case integration.ServiceGlances:
		filters, err := compiler.CompileSet(inst.Filters)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		return glances.New(inst, filters, logger), nil
	case integration.ServiceOverseerr:
		return overseerr.New(inst, logger), nil
	case integration.ServicePortainer:
		return portainer.New(inst, logger), nil
	case integration.ServiceStash:
		return stash.New(inst, logger), nil
	case integration.ServiceRadarr:
		return radarr.New(inst, logger), nil
	}
	return nil, fmt.Errorf("unknown service type %q", inst.Type)
}

// selectAdapters returns the adapters a command should act on, honoring
// the --instance flag.
func selectAdapters() ([]integration.Adapter, error) {
	if instanceID == "" {
		return registry.All(), nil
	}
	adapter, ok := registry.Get(instanceID)
	if !ok {
		return nil, fmt.Errorf("no configured instance with id %q", instanceID)
	}
	return []integration.Adapter{adapter}, nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format; color only when attached to a terminal
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
