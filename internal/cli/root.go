// Package cli wires the cobra command tree over the engine. Each
// subcommand builds its collaborators from the resolved configuration and
// exits non-zero on any failure.
package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/schemact/schemact/internal/config"
	"github.com/schemact/schemact/internal/database"
	"github.com/schemact/schemact/internal/engine"
	"github.com/schemact/schemact/internal/generator"
	"github.com/schemact/schemact/internal/metrics"
)

const version = "0.3.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// rootCmd is the base command for the schemact CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "schemact",
	Version: version,
	Short:   "Declarative schema migrations from a small DSL",
	Long: `schemact compiles .sigl schema files into PostgreSQL, MySQL, or SQLite
DDL and applies them against a live database in atomic, auditable batches,
recording every applied file in a hash-verified ledger.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.PersistentFlags().String("config", "schemact.yml", "path to configuration file")
	rootCmd.PersistentFlags().String("database", "", "target dialect: postgres, mysql, or sqlite")
	rootCmd.PersistentFlags().String("database-url", "", "database connection string")
	rootCmd.PersistentFlags().String("migrations-dir", "", "path to migration files")
	rootCmd.PersistentFlags().String("ledger", "", "path to the ledger file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the schemact version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)

			return nil
		},
	})
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("database") {
		cfg.Database, _ = cmd.Flags().GetString("database")
	}

	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
	}

	if cmd.Flags().Changed("migrations-dir") {
		cfg.MigrationsDir, _ = cmd.Flags().GetString("migrations-dir")
	}

	if cmd.Flags().Changed("ledger") {
		cfg.LedgerPath, _ = cmd.Flags().GetString("ledger")
	}
}

// newLogger builds the logging sink passed into the engine.
func newLogger(cmd *cobra.Command) hclog.Logger {
	level := hclog.Warn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "schemact",
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})
}

// newGenerator builds the generator for the configured dialect, applying
// MySQL table options when set.
func newGenerator(cfg *config.Config) (generator.Generator, error) {
	if cfg.Database == "mysql" || cfg.Database == "mariadb" {
		var opts []generator.MySQLOption

		if cfg.MySQLEngine != "" {
			opts = append(opts, generator.WithEngine(cfg.MySQLEngine))
		}

		if cfg.MySQLCharset != "" {
			opts = append(opts, generator.WithCharset(cfg.MySQLCharset))
		}

		if cfg.MySQLCollation != "" {
			opts = append(opts, generator.WithCollation(cfg.MySQLCollation))
		}

		return generator.NewMySQL(opts...), nil
	}

	return generator.New(cfg.Database)
}

// newMetricsSink builds the engine's metrics sink. With metrics_addr set,
// a Prometheus registry is served at /metrics on that address for the
// lifetime of the command; the returned stop function shuts it down.
func newMetricsSink(logger hclog.Logger, cfg *config.Config) (metrics.Sink, func()) {
	if cfg.MetricsAddr == "" {
		return metrics.Noop{}, func() {}
	}

	reg := prometheus.NewRegistry()
	sink := metrics.NewPrometheus(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint failed", "addr", cfg.MetricsAddr, "error", err)
		}
	}()

	logger.Info("serving metrics", "addr", cfg.MetricsAddr)

	return sink, func() { _ = srv.Close() }
}

// buildEngine assembles the adapter, generator, metrics sink, and engine
// for commands that touch the database. The returned stop function tears
// down the metrics endpoint and must be called when the command finishes.
func buildEngine(cmd *cobra.Command, cfg *config.Config) (*engine.Engine, database.Adapter, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errDatabaseURLRequired
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	adapter, err := database.New(cfg.Database, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := newLogger(cmd)
	sink, stopMetrics := newMetricsSink(logger, cfg)

	eng, err := engine.New(engine.Options{
		Adapter:        adapter,
		Generator:      gen,
		MigrationsDir:  cfg.MigrationsDir,
		LedgerPath:     cfg.LedgerPath,
		MaxFileSize:    cfg.MaxFileSize,
		MaxTotalSize:   cfg.MaxTotalSize,
		SkipSizeCheck:  cfg.SkipSizeCheck,
		LockTimeout:    cfg.LockTimeout,
		LockRetryDelay: cfg.LockRetryDelay,
		Logger:         logger,
		Metrics:        sink,
	})
	if err != nil {
		stopMetrics()

		return nil, nil, nil, err
	}

	return eng, adapter, stopMetrics, nil
}
