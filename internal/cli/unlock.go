package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemact/schemact/internal/ledger"
)

var unlockCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "unlock",
	Short: "Forcibly remove the ledger lock",
	Long: `Remove the ledger lock file unconditionally. Only use this after
confirming no schemact process is running anywhere that shares the
ledger; a live holder will be disrupted.`,
	RunE: runUnlock,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, _ []string) error {
	led := ledger.New(AppConfig.LedgerPath)

	if err := led.ForceUnlock(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.lock\n", AppConfig.LedgerPath)

	return nil
}
