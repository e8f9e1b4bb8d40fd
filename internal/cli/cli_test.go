package cli

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemact/schemact/internal/config"
	"github.com/schemact/schemact/internal/generator"
	"github.com/schemact/schemact/internal/metrics"
)

// newTestCommand returns a throwaway command with captured output.
func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	return cmd, &buf
}

func TestRunCreate(t *testing.T) {
	dir := t.TempDir()

	AppConfig = config.New()
	AppConfig.MigrationsDir = dir

	cmd, buf := newTestCommand(t)

	require.NoError(t, runCreate(cmd, []string{"add_users"}))
	assert.Contains(t, buf.String(), "Created ")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, "_add_users.sigl"), name)

	content, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(content), "# add_users")
}

func TestRunCreate_rejectsTraversal(t *testing.T) {
	AppConfig = config.New()
	AppConfig.MigrationsDir = t.TempDir()

	cmd, _ := newTestCommand(t)

	for _, name := range []string{"../etc", "..%2Fetc", "..%252Fetc", "a/b"} {
		err := runCreate(cmd, []string{name})
		require.Error(t, err, name)
	}
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	AppConfig = config.New()
	AppConfig.MigrationsDir = filepath.Join(dir, "migrations")

	cmd, buf := newTestCommand(t)

	require.NoError(t, runInit(cmd, nil))
	assert.DirExists(t, AppConfig.MigrationsDir)
	assert.FileExists(t, filepath.Join(dir, "schemact.yml"))
	assert.Contains(t, buf.String(), "Created")

	// A second init leaves the existing config alone.
	require.NoError(t, runInit(cmd, nil))
	assert.Contains(t, buf.String(), "leaving it untouched")
}

func TestRunPull_rejectsBadSchemaName(t *testing.T) {
	AppConfig = config.New()
	AppConfig.DatabaseURL = "postgres://localhost:5432/app"

	cmd, _ := newTestCommand(t)

	// Validation fires before any connection is attempted.
	for _, schema := range []string{"pg'; DROP TABLE x; --", "pub lic", "1st"} {
		err := runPull(cmd, []string{schema})
		require.Error(t, err, schema)
	}
}

func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		database string
		want     string
		wantErr  bool
	}{
		{database: "postgres", want: "postgres"},
		{database: "mysql", want: "mysql"},
		{database: "mariadb", want: "mysql"},
		{database: "sqlite", want: "sqlite"},
		{database: "mongodb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.database, func(t *testing.T) {
			t.Parallel()

			cfg := config.New()
			cfg.Database = tt.database

			gen, err := newGenerator(cfg)

			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, gen.Dialect())
		})
	}
}

func TestNewMetricsSink_disabledByDefault(t *testing.T) {
	t.Parallel()

	sink, stop := newMetricsSink(hclog.NewNullLogger(), config.New())
	defer stop()

	_, ok := sink.(metrics.Noop)
	assert.True(t, ok)
}

func TestNewMetricsSink_servesPrometheusEndpoint(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cfg.MetricsAddr = "127.0.0.1:19187"

	sink, stop := newMetricsSink(hclog.NewNullLogger(), cfg)
	defer stop()

	_, ok := sink.(*metrics.Prometheus)
	require.True(t, ok)

	sink.Observe(metrics.Event{
		Filename:  "001_users.sigl",
		Direction: "up",
		Duration:  50 * time.Millisecond,
	})

	// The endpoint needs a moment to start listening.
	var (
		resp *http.Response
		err  error
	)

	for range 20 {
		resp, err = http.Get("http://" + cfg.MetricsAddr + "/metrics")
		if err == nil {
			break
		}

		time.Sleep(50 * time.Millisecond)
	}

	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "schemact_migrations_total")
}

func TestNewGenerator_mysqlOptions(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cfg.Database = "mysql"
	cfg.MySQLEngine = "MyISAM"

	gen, err := newGenerator(cfg)
	require.NoError(t, err)

	mysqlGen, ok := gen.(*generator.MySQL)
	require.True(t, ok)
	assert.NotNil(t, mysqlGen)
}
