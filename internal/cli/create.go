package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemact/schemact/internal/engine"
	"github.com/schemact/schemact/internal/validate"
)

// migrationTemplate seeds a new .sigl file.
const migrationTemplate = `# %s
#
# model Example {
#   id Serial @pk
#   name VarChar(100) @notnull
#   createdAt Timestamp @default(now)
# }
`

var createCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "create <name>",
	Short: "Create a new timestamped migration file",
	Long: `Create migrations/<timestamp>_<name>.sigl. The name is decoded,
normalized, and validated before any path is touched; the leading
timestamp keeps lexicographic and chronological order aligned.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg := AppConfig

	name, err := validate.MigrationName(args[0])
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s_%s%s", time.Now().UTC().Format("20060102150405"), name, engine.Extension)

	path, err := validate.MigrationPath(cfg.MigrationsDir, filename)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("migration file %s already exists", path)
	}

	content := fmt.Sprintf(migrationTemplate, name)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing migration file %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)

	return nil
}
