package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemact/schemact/internal/database"
	"github.com/schemact/schemact/internal/validate"
)

var pullCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "pull [schema]",
	Short: "Reverse-engineer a live schema into DSL (PostgreSQL only)",
	Long: `Read table and column definitions from a live database and print the
equivalent DSL. Best-effort: types without a DSL counterpart fall back
to Text. Only the postgres dialect is supported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPull,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	cfg := AppConfig

	if cfg.Database != "postgres" && cfg.Database != "postgresql" {
		return fmt.Errorf("pull is only supported for postgres, not %q", cfg.Database)
	}

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	schema := "public"
	if len(args) == 1 {
		schema = args[0]
	}

	if err := validate.Identifier(schema, validate.MaxIdentifierPostgres); err != nil {
		return err
	}

	adapter := database.NewPostgres(cfg.DatabaseURL)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Disconnect(ctx) //nolint:errcheck // best-effort close

	query := fmt.Sprintf(
		`SELECT table_name, column_name, data_type, is_nullable, character_maximum_length
		 FROM information_schema.columns
		 WHERE table_schema = '%s'
		 ORDER BY table_name, ordinal_position`,
		schema)

	rows, err := adapter.Query(ctx, query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	current := ""

	for _, row := range rows {
		table := fmt.Sprint(row["table_name"])

		if table != current {
			if current != "" {
				fmt.Fprintln(out, "}")
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "model %s {\n", table)
			current = table
		}

		fmt.Fprintf(out, "  %s %s%s\n",
			row["column_name"],
			dslType(fmt.Sprint(row["data_type"]), row["character_maximum_length"]),
			notNullSuffix(fmt.Sprint(row["is_nullable"])))
	}

	if current != "" {
		fmt.Fprintln(out, "}")
	}

	return nil
}

// dslType maps an information_schema data_type back to the nearest DSL
// type name.
func dslType(dataType string, maxLen any) string {
	switch dataType {
	case "integer":
		return "Int"
	case "bigint":
		return "BigInt"
	case "smallint":
		return "SmallInt"
	case "character varying":
		if maxLen != nil {
			return fmt.Sprintf("VarChar(%v)", maxLen)
		}

		return "VarChar"
	case "character":
		if maxLen != nil {
			return fmt.Sprintf("Char(%v)", maxLen)
		}

		return "Char"
	case "boolean":
		return "Boolean"
	case "timestamp without time zone", "timestamp with time zone":
		return "Timestamp"
	case "date":
		return "Date"
	case "time without time zone":
		return "Time"
	case "numeric":
		return "Numeric"
	case "real":
		return "Real"
	case "double precision":
		return "DoublePrecision"
	case "json":
		return "Json"
	case "jsonb":
		return "Jsonb"
	case "uuid":
		return "Uuid"
	default:
		return "Text"
	}
}

func notNullSuffix(isNullable string) string {
	if isNullable == "NO" {
		return " @notnull"
	}

	return ""
}
