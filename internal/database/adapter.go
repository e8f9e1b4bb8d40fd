// Package database abstracts the engine's view of a database behind a
// small adapter interface: connect, probe, query, and run a statement list
// inside one transaction.
package database

import (
	"context"
	"time"

	"github.com/schemact/schemact/internal/fault"
)

// Adapter is the engine's only view of a database.
type Adapter interface {
	// Connect establishes the connection or pool.
	Connect(ctx context.Context) error

	// Disconnect releases all resources. Safe to call when not connected.
	Disconnect(ctx context.Context) error

	// Ping verifies the connection is usable.
	Ping(ctx context.Context) error

	// Query runs a read-only statement and returns its rows as maps keyed
	// by column name. Used for introspection only.
	Query(ctx context.Context, sql string) ([]map[string]any, error)

	// Transaction executes the statements in order inside a single
	// transaction: commit on success, rollback and return the failure
	// otherwise.
	Transaction(ctx context.Context, statements []string) error
}

// New returns the adapter for the named dialect connected to url.
func New(dialect, url string) (Adapter, error) {
	switch dialect {
	case "postgres", "postgresql":
		return NewPostgres(url), nil
	case "mysql", "mariadb":
		return NewMySQL(url), nil
	case "sqlite", "sqlite3":
		return NewSQLite(url), nil
	default:
		return nil, fault.New(fault.Validation, "unknown database dialect %q", dialect)
	}
}

// pingAttempts bounds the connectivity probe's retry budget.
const (
	pingAttempts = 3
	pingBackoff  = 500 * time.Millisecond
)

// PingWithRetry probes the adapter a bounded number of times before giving
// up, sleeping between attempts.
func PingWithRetry(ctx context.Context, adapter Adapter) error {
	var err error

	for attempt := range pingAttempts {
		if err = adapter.Ping(ctx); err == nil {
			return nil
		}

		if attempt < pingAttempts-1 {
			select {
			case <-time.After(pingBackoff):
			case <-ctx.Done():
				return fault.Wrap(fault.Adapter, ctx.Err(), "connectivity probe canceled")
			}
		}
	}

	return fault.Wrap(fault.Adapter, err, "database unreachable after %d attempts", pingAttempts)
}
