package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framerrr/framerr/integration"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity to configured instances",
	Long: `Test the connection to every configured instance (or a single one
with --instance) and report reachability, authentication, and the
detected service version.`,
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	adapters, err := selectAdapters()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var failed int

	for _, adapter := range adapters {
		inst := adapter.Instance()
		fmt.Printf("Testing %s (%s) at %s...\n", inst.ID, inst.Type, inst.URL)

		result := adapter.Test(ctx)
		if result.Success {
			fmt.Printf("✓ %s\n", result.Message)
			if result.Version != "" {
				fmt.Printf("  Version: %s\n", result.Version)
			}
			continue
		}

		failed++
		fmt.Printf("✗ %s\n", result.Message)
		logTestFailure(inst, result)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d instances failed the connection test", failed, len(adapters))
	}
	return nil
}

// logTestFailure logs at a severity matching the failure class: transient
// network conditions are routine for self-hosted services, configuration
// and credential problems need operator attention.
func logTestFailure(inst integration.Instance, result integration.TestResult) {
	if result.Error == nil {
		logger.Error().Str("instance", inst.ID).Msg("Connection test failed")
		return
	}

	evt := logger.Error()
	switch result.Error.Code {
	case integration.CodeUnreachable, integration.CodeNetwork:
		evt = logger.Warn()
	}
	evt.Str("instance", inst.ID).
		Str("service", string(inst.Type)).
		Str("code", string(result.Error.Code)).
		Err(result.Error).
		Msg("Connection test failed")
}
