package database

import (
	"context"
	"database/sql"

	// database/sql drivers for the non-pgx dialects.
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/schemact/schemact/internal/fault"
)

// sqlAdapter serves the dialects that speak through database/sql.
type sqlAdapter struct {
	driver string
	dsn    string
	db     *sql.DB
}

// NewMySQL creates a MySQL/MariaDB adapter for the given DSN.
func NewMySQL(dsn string) Adapter {
	return &sqlAdapter{driver: "mysql", dsn: dsn}
}

// NewSQLite creates a SQLite adapter for the given file path or DSN.
func NewSQLite(dsn string) Adapter {
	return &sqlAdapter{driver: "sqlite", dsn: dsn}
}

// Connect opens the database handle and verifies it with a ping.
func (a *sqlAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open(a.driver, a.dsn)
	if err != nil {
		return fault.Wrap(fault.Adapter, err, "opening %s database", a.driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return fault.Wrap(fault.Adapter, err, "database connection failed")
	}

	a.db = db

	return nil
}

// Disconnect closes the handle.
func (a *sqlAdapter) Disconnect(_ context.Context) error {
	if a.db == nil {
		return nil
	}

	err := a.db.Close()
	a.db = nil

	if err != nil {
		return fault.Wrap(fault.Adapter, err, "closing %s database", a.driver)
	}

	return nil
}

// Ping verifies connectivity.
func (a *sqlAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fault.New(fault.Adapter, "not connected")
	}

	if err := a.db.PingContext(ctx); err != nil {
		return fault.Wrap(fault.Adapter, err, "ping failed")
	}

	return nil
}

// Query runs sql and returns its rows as column-name-keyed maps.
func (a *sqlAdapter) Query(ctx context.Context, query string) ([]map[string]any, error) {
	if a.db == nil {
		return nil, fault.New(fault.Adapter, "not connected")
	}

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fault.Wrap(fault.Adapter, err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fault.Wrap(fault.Adapter, err, "reading column names")
	}

	var out []map[string]any

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fault.Wrap(fault.Adapter, err, "reading row")
		}

		row := make(map[string]any, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.Adapter, err, "iterating rows")
	}

	return out, nil
}

// Transaction executes the statements in order inside one transaction.
func (a *sqlAdapter) Transaction(ctx context.Context, statements []string) error {
	if a.db == nil {
		return fault.New(fault.Adapter, "not connected")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Wrap(fault.Adapter, err, "beginning transaction")
	}

	defer tx.Rollback() //nolint:errcheck // rollback on committed tx returns ErrTxDone

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fault.Wrap(fault.Adapter, err, "executing statement %q", truncateSQL(stmt))
		}
	}

	if err := tx.Commit(); err != nil {
		return fault.Wrap(fault.Adapter, err, "committing transaction")
	}

	return nil
}
