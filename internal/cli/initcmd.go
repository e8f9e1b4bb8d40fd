package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// sampleConfig is written by init when no config file exists.
const sampleConfig = `# schemact configuration
database: postgres
database_url: ""
migrations_dir: ./migrations
# ledger_path: .schemact_ledger.json
# lock_timeout: 30s
# lock_retry_delay: 100ms
# metrics_addr: 127.0.0.1:9187
`

var initCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "init",
	Short: "Initialize a schemact project",
	Long:  `Create the migrations directory and a starter schemact.yml.`,
	RunE:  runInit,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	if err := os.MkdirAll(cfg.MigrationsDir, 0o755); err != nil {
		return fmt.Errorf("creating migrations directory %s: %w", cfg.MigrationsDir, err)
	}

	fmt.Fprintf(out, "Created %s\n", cfg.MigrationsDir)

	configPath := "schemact.yml"
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "%s already exists, leaving it untouched\n", configPath)

		return nil
	}

	if err := os.WriteFile(configPath, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	fmt.Fprintf(out, "Created %s\n", filepath.Clean(configPath))

	return nil
}
