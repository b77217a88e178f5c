package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/framerrr/framerr/integration"
)

// pollConcurrency caps how many instances are polled at once.
const pollConcurrency = 4

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch current state from configured instances",
	Long: `Poll every configured instance (or a single one with --instance) once
and print the collected snapshots as JSON. Instances that fail are
reported alongside the ones that succeed; one broken service never
hides the others.`,
	RunE: runPoll,
}

// pollReport is the per-instance poll outcome written to stdout.
type pollReport struct {
	Instance string                       `json:"instance"`
	Service  integration.ServiceType      `json:"service"`
	Success  bool                         `json:"success"`
	Data     any                          `json:"data,omitempty"`
	Error    *integration.ClassifiedError `json:"error,omitempty"`
}

func runPoll(cmd *cobra.Command, args []string) error {
	adapters, err := selectAdapters()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var (
		mu      sync.Mutex
		reports = make([]pollReport, 0, len(adapters))
	)

	g := &errgroup.Group{}
	g.SetLimit(pollConcurrency)

	for _, adapter := range adapters {
		g.Go(func() error {
			inst := adapter.Instance()
			report := pollReport{Instance: inst.ID, Service: inst.Type}

			data, err := adapter.Poll(ctx)
			if err != nil {
				report.Error = integration.Classify(err, inst)
				logPollFailure(inst, report.Error)
			} else {
				report.Success = true
				report.Data = data
			}

			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()

			// Failures are carried in the report, not the group, so the
			// remaining instances still get polled.
			return nil
		})
	}

	_ = g.Wait()

	// Registry order, not completion order.
	byID := make(map[string]pollReport, len(reports))
	for _, r := range reports {
		byID[r.Instance] = r
	}
	ordered := make([]pollReport, 0, len(reports))
	for _, adapter := range adapters {
		ordered = append(ordered, byID[adapter.Instance().ID])
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ordered); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	return nil
}

func logPollFailure(inst integration.Instance, ce *integration.ClassifiedError) {
	evt := logger.Error()
	switch ce.Code {
	case integration.CodeUnreachable, integration.CodeNetwork:
		evt = logger.Warn()
	}
	evt.Str("instance", inst.ID).
		Str("service", string(inst.Type)).
		Str("code", string(ce.Code)).
		Err(ce).
		Msg("Poll failed")
}
