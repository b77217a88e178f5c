package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/framerrr/framerr/realtime"
)

// reconnectDelay is the flat backoff between a transport drop and the
// next connection attempt. Reconnection policy lives here, in the
// orchestrator; the connection managers never reconnect on their own.
const reconnectDelay = 5 * time.Second

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream realtime updates from push-capable instances",
	Long: `Open a realtime connection to every configured instance that supports
push updates and print each fresh snapshot as it arrives. Dropped
connections are retried until interrupted with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	adapters, err := selectAdapters()
	if err != nil {
		return err
	}

	orch := &orchestrator{
		logger:    logger,
		reconnect: make(chan string, len(adapters)),
	}

	managers := make(map[string]*realtime.Manager)
	for _, adapter := range adapters {
		source, ok := adapter.(realtime.Source)
		if !ok {
			logger.Debug().
				Str("instance", adapter.Instance().ID).
				Msg("Instance has no push transport, skipping")
			continue
		}
		inst := adapter.Instance()
		managers[inst.ID] = realtime.NewManager(inst.ID, source, orch, logger)
	}

	if len(managers) == 0 {
		return fmt.Errorf("no configured instance supports realtime updates")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	for _, m := range managers {
		go m.Connect(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			logger.Info().Msg("Shutting down")
			orch.stopping.Store(true)
			cancel()
			for _, m := range managers {
				m.Disconnect()
			}
			return nil

		case id := <-orch.reconnect:
			m := managers[id]
			go func() {
				time.Sleep(reconnectDelay)
				if orch.stopping.Load() {
					return
				}
				logger.Info().Str("instance", id).Msg("Reconnecting")
				m.Connect(ctx)
			}()
		}
	}
}

// orchestrator owns the reconnection policy for all watched instances and
// renders their updates to the console.
type orchestrator struct {
	logger    zerolog.Logger
	reconnect chan string
	stopping  atomic.Bool
}

func (o *orchestrator) OnConnect(instanceID string) {
	o.logger.Info().Str("instance", instanceID).Msg("Connected")
}

func (o *orchestrator) OnUpdate(instanceID string, data any) {
	out, err := json.Marshal(data)
	if err != nil {
		o.logger.Error().Str("instance", instanceID).Err(err).Msg("Failed to encode update")
		return
	}
	fmt.Printf("%s %s\n", instanceID, out)
}

func (o *orchestrator) OnDisconnect(instanceID string, reason error) {
	evt := o.logger.Info()
	if reason != nil {
		evt = o.logger.Warn().Err(reason)
	}
	evt.Str("instance", instanceID).Msg("Disconnected")

	if o.stopping.Load() {
		return
	}
	select {
	case o.reconnect <- instanceID:
	default:
		// A reconnect for this burst is already queued.
	}
}

func (o *orchestrator) OnError(instanceID string, err error) {
	o.logger.Warn().Str("instance", instanceID).Err(err).Msg("Realtime error")
}

var _ realtime.Listener = (*orchestrator)(nil)
