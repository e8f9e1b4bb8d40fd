// Package config loads the schemact configuration with precedence
// flag > environment > file > defaults. The YAML file is decoded strictly:
// unknown keys are an error, not a warning.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/schemact/schemact/internal/ledger"
	"github.com/schemact/schemact/internal/validate"
)

// Default values for configuration fields.
const (
	DefaultDatabase      = "postgres"
	DefaultMigrationsDir = "./migrations"
)

// Config holds the resolved application configuration.
type Config struct {
	Database       string // dialect: postgres, mysql, sqlite
	DatabaseURL    string
	MigrationsDir  string
	LedgerPath     string
	MaxFileSize    int64
	MaxTotalSize   int64
	SkipSizeCheck  bool
	LockTimeout    time.Duration
	LockRetryDelay time.Duration
	MetricsAddr    string // serve Prometheus metrics here while a command runs; empty disables
	MySQLEngine    string
	MySQLCharset   string
	MySQLCollation string
}

// yamlConfig is the raw file representation. Every recognized key is
// enumerated here; strict decoding rejects anything else.
type yamlConfig struct {
	Database       string `yaml:"database"`
	DatabaseURL    string `yaml:"database_url"`
	MigrationsDir  string `yaml:"migrations_dir"`
	LedgerPath     string `yaml:"ledger_path"`
	MaxFileSize    int64  `yaml:"max_file_size"`
	MaxTotalSize   int64  `yaml:"max_total_size"`
	ValidateSize   *bool  `yaml:"validate_file_size"`
	LockTimeout    string `yaml:"lock_timeout"`
	LockRetryDelay string `yaml:"lock_retry_delay"`
	MetricsAddr    string `yaml:"metrics_addr"`
	MySQLEngine    string `yaml:"mysql_engine"`
	MySQLCharset   string `yaml:"mysql_charset"`
	MySQLCollation string `yaml:"mysql_collation"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Database:       DefaultDatabase,
		MigrationsDir:  DefaultMigrationsDir,
		LedgerPath:     ledger.DefaultPath,
		MaxFileSize:    validate.DefaultMaxFileSize,
		MaxTotalSize:   validate.DefaultMaxTotalSize,
		LockTimeout:    ledger.DefaultAcquireTimeout,
		LockRetryDelay: ledger.DefaultRetryDelay,
	}
}

// Load reads a YAML configuration file and returns a Config. If
// allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw yamlConfig
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw representation to a Config with defaults
// applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.Database != "" {
		cfg.Database = raw.Database
	}

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	if raw.LedgerPath != "" {
		cfg.LedgerPath = raw.LedgerPath
	}

	if raw.MaxFileSize != 0 {
		cfg.MaxFileSize = raw.MaxFileSize
	}

	if raw.MaxTotalSize != 0 {
		cfg.MaxTotalSize = raw.MaxTotalSize
	}

	if raw.ValidateSize != nil {
		cfg.SkipSizeCheck = !*raw.ValidateSize
	}

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.LockRetryDelay != "" {
		d, err := time.ParseDuration(raw.LockRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_retry_delay %q: %w", raw.LockRetryDelay, err)
		}

		cfg.LockRetryDelay = d
	}

	if raw.MetricsAddr != "" {
		cfg.MetricsAddr = raw.MetricsAddr
	}

	if raw.MySQLEngine != "" {
		cfg.MySQLEngine = raw.MySQLEngine
	}

	if raw.MySQLCharset != "" {
		cfg.MySQLCharset = raw.MySQLCharset
	}

	if raw.MySQLCollation != "" {
		cfg.MySQLCollation = raw.MySQLCollation
	}

	return cfg, nil
}

// MergeEnv overrides config fields from SCHEMACT_* environment variables.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("SCHEMACT_DATABASE"); v != "" {
		cfg.Database = v
	}

	if v := os.Getenv("SCHEMACT_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	if v := os.Getenv("SCHEMACT_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}

	if v := os.Getenv("SCHEMACT_LEDGER_PATH"); v != "" {
		cfg.LedgerPath = v
	}

	if v := os.Getenv("SCHEMACT_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxFileSize = n
		}
	}

	if v := os.Getenv("SCHEMACT_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("SCHEMACT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}
