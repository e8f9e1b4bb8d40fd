package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemact/schemact/internal/database"
	"github.com/schemact/schemact/internal/fault"
)

// sqliteAdapter opens an in-memory SQLite database, closed with the test.
func sqliteAdapter(t *testing.T) database.Adapter {
	t.Helper()

	adapter := database.NewSQLite(":memory:")

	ctx := context.Background()
	require.NoError(t, adapter.Connect(ctx))

	t.Cleanup(func() {
		require.NoError(t, adapter.Disconnect(ctx))
	})

	return adapter
}

func TestSQLiteAdapter_transactionCommits(t *testing.T) {
	t.Parallel()

	adapter := sqliteAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Transaction(ctx, []string{
		`CREATE TABLE "users" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" TEXT)`,
		`INSERT INTO "users" ("name") VALUES ('ada')`,
	}))

	rows, err := adapter.Query(ctx, `SELECT name FROM "users"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0]["name"])
}

func TestSQLiteAdapter_transactionRollsBack(t *testing.T) {
	t.Parallel()

	adapter := sqliteAdapter(t)
	ctx := context.Background()

	err := adapter.Transaction(ctx, []string{
		`CREATE TABLE "a" ("id" INTEGER)`,
		`CREATE TABLE !!! this is not SQL`,
	})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Adapter))

	// The first statement was rolled back with the rest.
	_, err = adapter.Query(ctx, `SELECT * FROM "a"`)
	require.Error(t, err)
}

func TestSQLiteAdapter_ping(t *testing.T) {
	t.Parallel()

	adapter := sqliteAdapter(t)
	require.NoError(t, adapter.Ping(context.Background()))
}

func TestAdapter_notConnected(t *testing.T) {
	t.Parallel()

	adapter := database.NewSQLite(":memory:")

	err := adapter.Transaction(context.Background(), []string{"SELECT 1"})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Adapter))
	assert.Contains(t, err.Error(), "not connected")
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, dialect := range []string{"postgres", "postgresql", "mysql", "mariadb", "sqlite", "sqlite3"} {
		adapter, err := database.New(dialect, "dsn")
		require.NoError(t, err, dialect)
		assert.NotNil(t, adapter)
	}

	_, err := database.New("oracle", "dsn")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Validation))
}

func TestPingWithRetry_failsAfterBudget(t *testing.T) {
	t.Parallel()

	adapter := database.NewSQLite(":memory:") // never connected

	err := database.PingWithRetry(context.Background(), adapter)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Adapter))
	assert.Contains(t, err.Error(), "unreachable")
}