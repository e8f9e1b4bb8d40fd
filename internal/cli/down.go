package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemact/schemact/internal/config"
)

var downCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "down",
	Short: "Roll back the most recent batch",
	Long: `Roll back every migration of the most recent batch, in the reverse of
its application order. Rollback requires the original .sigl files.`,
	RunE: runDown,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	eng, adapter, stopMetrics, err := buildEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer stopMetrics()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Connecting to %s (%s)\n", config.RedactURL(cfg.DatabaseURL), cfg.Database)

	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Disconnect(ctx) //nolint:errcheck // best-effort close

	result, err := eng.Down(ctx)
	if err != nil {
		return err
	}

	if len(result.RolledBack) == 0 {
		fmt.Fprintln(out, "Nothing to roll back.")

		return nil
	}

	for _, name := range result.RolledBack {
		fmt.Fprintf(out, "  %s %s\n", color.YellowString("rolled back"), name)
	}

	fmt.Fprintf(out, "\nBatch %d rolled back: %d migration(s).\n", result.Batch, len(result.RolledBack))

	return nil
}
