package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemact/schemact/internal/analyzer"
	"github.com/schemact/schemact/internal/config"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New(
	"database URL is required (set --database-url, SCHEMACT_DATABASE_URL, or database_url in config)",
)

var upCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "up",
	Short: "Apply all pending migrations as one batch",
	Long: `Apply every pending migration in filename order. All migrations applied
by a single run share one batch number and can be rolled back together
with "schemact down".`,
	RunE: runUp,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	upCmd.Flags().Bool("skip-size-check", false, "skip migration file size validation")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if skip, _ := cmd.Flags().GetBool("skip-size-check"); skip {
		cfg.SkipSizeCheck = true
	}

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

	result, err := eng.Up(ctx)
	if err != nil {
		return err
	}

	printFindings(cmd, result.Findings)

	if len(result.Applied) == 0 {
		fmt.Fprintln(out, "Nothing to apply; ledger is up to date.")

		return nil
	}

	for _, applied := range result.Applied {
		fmt.Fprintf(out, "  %s %s (%d statements, %s)\n",
			color.GreenString("applied"), applied.Filename, applied.Statements,
			applied.Duration.Truncate(time.Millisecond))
	}

	fmt.Fprintf(out, "\nBatch %d: %d migration(s) applied.\n", result.Batch, len(result.Applied))

	return nil
}

// printFindings renders raw-SQL lint findings, colored by severity.
func printFindings(cmd *cobra.Command, findings []analyzer.Finding) {
	if len(findings) == 0 {
		return
	}

	errOut := cmd.ErrOrStderr()

	fmt.Fprintln(errOut, "Raw SQL warnings:")

	for _, f := range findings {
		label := f.Severity.String()

		switch f.Severity {
		case analyzer.Critical, analyzer.High:
			label = color.RedString(label)
		case analyzer.Medium:
			label = color.YellowString(label)
		case analyzer.Safe, analyzer.Low:
			label = color.CyanString(label)
		}

		fmt.Fprintf(errOut, "  [%s] line %d: %s\n", label, f.Line, f.Message)

		if f.Suggestion != "" {
			fmt.Fprintf(errOut, "      hint: %s\n", f.Suggestion)
		}
	}
}
