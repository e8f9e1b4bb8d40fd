package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schemact/schemact/internal/fault"
)

const defaultMaxConns = 5

// Postgres is the pgx-backed adapter.
type Postgres struct {
	url  string
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL adapter for the given connection URL.
// No connection is made until Connect.
func NewPostgres(url string) *Postgres {
	return &Postgres{url: url}
}

// Connect parses the URL, builds a bounded pool, and pings it.
func (a *Postgres) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(a.url)
	if err != nil {
		return fault.Wrap(fault.Adapter, err, "invalid database URL")
	}

	cfg.MaxConns = defaultMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fault.Wrap(fault.Adapter, err, "creating connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return fault.Wrap(fault.Adapter, err, "database connection failed")
	}

	a.pool = pool

	return nil
}

// Disconnect closes the pool.
func (a *Postgres) Disconnect(_ context.Context) error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	return nil
}

// Ping verifies connectivity.
func (a *Postgres) Ping(ctx context.Context) error {
	if a.pool == nil {
		return fault.New(fault.Adapter, "not connected")
	}

	if err := a.pool.Ping(ctx); err != nil {
		return fault.Wrap(fault.Adapter, err, "ping failed")
	}

	return nil
}

// Query runs sql and returns its rows as column-name-keyed maps.
func (a *Postgres) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	if a.pool == nil {
		return nil, fault.New(fault.Adapter, "not connected")
	}

	rows, err := a.pool.Query(ctx, sql)
	if err != nil {
		return nil, fault.Wrap(fault.Adapter, err, "query failed")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var out []map[string]any

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fault.Wrap(fault.Adapter, err, "reading row")
		}

		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.Adapter, err, "iterating rows")
	}

	return out, nil
}

// Transaction executes the statements in order inside one transaction.
func (a *Postgres) Transaction(ctx context.Context, statements []string) error {
	if a.pool == nil {
		return fault.New(fault.Adapter, "not connected")
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fault.Wrap(fault.Adapter, err, "beginning transaction")
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fault.Wrap(fault.Adapter, err, "executing statement %q", truncateSQL(stmt))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fault.Wrap(fault.Adapter, err, "committing transaction")
	}

	return nil
}

// truncateSQL shortens a statement for error messages.
func truncateSQL(sql string) string {
	const max = 80

	if len(sql) <= max {
		return sql
	}

	return sql[:max-3] + "..."
}
