package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemact/schemact/internal/engine"
	"github.com/schemact/schemact/internal/ledger"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show applied and pending migrations",
	Long: `List every recorded migration with its batch and timestamp, followed by
the pending files. Status reads the ledger without taking the lock and
never contacts the database.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

// statusAdapter satisfies the engine without a database: status never
// executes SQL.
type statusAdapter struct{}

func (statusAdapter) Connect(context.Context) error    { return nil }
func (statusAdapter) Disconnect(context.Context) error { return nil }
func (statusAdapter) Ping(context.Context) error       { return nil }

func (statusAdapter) Query(context.Context, string) ([]map[string]any, error) {
	return nil, nil
}

func (statusAdapter) Transaction(context.Context, []string) error { return nil }

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{
		Adapter:       statusAdapter{},
		Generator:     gen,
		MigrationsDir: cfg.MigrationsDir,
		LedgerPath:    cfg.LedgerPath,
		Logger:        newLogger(cmd),
	})
	if err != nil {
		return err
	}

	status, err := eng.StatusReport()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Current batch: %d\n\n", status.CurrentBatch)

	printApplied(out, status.Applied)
	printPending(out, status.Pending)

	return nil
}

func printApplied(out io.Writer, applied []ledger.Entry) {
	if len(applied) == 0 {
		fmt.Fprintln(out, "No migrations applied.")

		return
	}

	fmt.Fprintf(out, "Applied (%d):\n", len(applied))

	for _, entry := range applied {
		fmt.Fprintf(out, "  %s %s  batch %d  %s\n",
			color.GreenString("✓"), entry.Filename, entry.Batch, entry.AppliedAt)
	}
}

func printPending(out io.Writer, pending []string) {
	if len(pending) == 0 {
		fmt.Fprintln(out, "\nNo pending migrations.")

		return
	}

	fmt.Fprintf(out, "\nPending (%d):\n", len(pending))

	for _, name := range pending {
		fmt.Fprintf(out, "  %s %s\n", color.YellowString("•"), name)
	}
}
