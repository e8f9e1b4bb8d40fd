// Package engine orchestrates migration runs: discover files, validate
// size and integrity invariants, compile, execute inside transactions, and
// record outcomes in the ledger.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/schemact/schemact/internal/analyzer"
	"github.com/schemact/schemact/internal/database"
	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/generator"
	"github.com/schemact/schemact/internal/ledger"
	"github.com/schemact/schemact/internal/metrics"
	"github.com/schemact/schemact/internal/parser"
	"github.com/schemact/schemact/internal/validate"
)

// Extension is the DSL migration file extension.
const Extension = ".sigl"

// DefaultMigrationsDir is used when Options leaves MigrationsDir empty.
const DefaultMigrationsDir = "./migrations"

// Options is the explicit configuration record for an Engine. Adapter and
// Generator are required; everything else has a default.
type Options struct {
	Adapter        database.Adapter
	Generator      generator.Generator
	MigrationsDir  string
	LedgerPath     string
	MaxFileSize    int64
	MaxTotalSize   int64
	SkipSizeCheck  bool // explicit opt-out of file size validation
	LockTimeout    time.Duration
	LockRetryDelay time.Duration
	Logger         hclog.Logger
	Metrics        metrics.Sink
}

// Engine runs up, down, and status against one migrations directory, one
// ledger, and one database.
type Engine struct {
	opts    Options
	ledger  *ledger.Ledger
	logger  hclog.Logger
	metrics metrics.Sink
	linter  *analyzer.Analyzer
}

// New validates options, applies defaults, and builds an Engine. Raw-SQL
// linting is enabled automatically for the postgres dialect.
func New(opts Options) (*Engine, error) {
	if opts.Adapter == nil {
		return nil, fault.New(fault.Validation, "engine requires a database adapter")
	}

	if opts.Generator == nil {
		return nil, fault.New(fault.Validation, "engine requires a generator")
	}

	if opts.MigrationsDir == "" {
		opts.MigrationsDir = DefaultMigrationsDir
	}

	if opts.LedgerPath == "" {
		opts.LedgerPath = ledger.DefaultPath
	}

	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}

	var lockOpts []ledger.LockOption

	if opts.LockTimeout > 0 {
		lockOpts = append(lockOpts, ledger.WithAcquireTimeout(opts.LockTimeout))
	}

	if opts.LockRetryDelay > 0 {
		lockOpts = append(lockOpts, ledger.WithRetryDelay(opts.LockRetryDelay))
	}

	e := &Engine{
		opts:    opts,
		ledger:  ledger.New(opts.LedgerPath, lockOpts...),
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	if opts.Generator.Dialect() == "postgres" {
		e.linter = analyzer.New()
	}

	return e, nil
}

// Ledger exposes the engine's ledger for operator actions such as
// force-unlock.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Applied describes one successfully executed migration.
type Applied struct {
	Filename   string
	Statements int
	Duration   time.Duration
}

// UpResult is the outcome of an Up run.
type UpResult struct {
	Applied  []Applied
	Batch    int // batch number assigned, zero when nothing was pending
	Findings []analyzer.Finding
}

// DownResult is the outcome of a Down run.
type DownResult struct {
	RolledBack []string
	Batch      int // batch number removed, zero when nothing was applied
}

// Status is a read-only snapshot of ledger and directory state.
type Status struct {
	Applied      []ledger.Entry
	Pending      []string
	CurrentBatch int
}

// Up applies every pending migration in lexicographic filename order. All
// newly applied migrations are recorded as a single batch sharing one
// timestamp; if recording fails after the transactions committed, the run
// surfaces a critical inconsistency and must be reconciled by hand.
func (e *Engine) Up(ctx context.Context) (*UpResult, error) {
	if err := e.ledger.Load(); err != nil {
		return nil, err
	}

	names, paths, err := e.discover()
	if err != nil {
		return nil, err
	}

	if !e.opts.SkipSizeCheck {
		if err := validate.FileSizes(paths, e.opts.MaxFileSize, e.opts.MaxTotalSize); err != nil {
			return nil, err
		}
	}

	files, err := readAll(names, paths)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.ValidateIntegrity(files); err != nil {
		return nil, err
	}

	pending, err := e.ledger.Pending(names)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		e.logger.Info("nothing to apply", "migrations", len(names))

		return &UpResult{}, nil
	}

	if err := e.preflight(ctx); err != nil {
		return nil, err
	}

	result := &UpResult{}
	batch := make([]ledger.BatchFile, 0, len(pending))

	for _, name := range pending {
		applied, findings, err := e.applyOne(ctx, name, files[name])
		if err != nil {
			return nil, err
		}

		result.Applied = append(result.Applied, *applied)
		result.Findings = append(result.Findings, findings...)
		batch = append(batch, ledger.BatchFile{Filename: name, Content: files[name]})
	}

	if err := e.ledger.RecordBatch(batch); err != nil {
		return nil, &fault.Error{
			Kind: fault.CriticalInconsistency,
			Msg: fmt.Sprintf(
				"all %d migration(s) committed to the database but the ledger could not be updated; "+
					"reconcile %s by hand before running again", len(batch), e.ledger.Path()),
			Err: err,
		}
	}

	result.Batch, err = e.ledger.CurrentBatch()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// applyOne compiles and executes a single pending migration inside one
// transaction, returning its stats and any raw-SQL findings.
func (e *Engine) applyOne(ctx context.Context, name string, content []byte) (*Applied, []analyzer.Finding, error) {
	schema, err := parser.Parse(string(content))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}

	var findings []analyzer.Finding

	if e.linter != nil && len(schema.RawSQL) > 0 {
		findings = e.linter.Analyze(schema)

		for _, f := range findings {
			e.logger.Warn("raw SQL finding",
				"migration", name, "rule", f.Rule, "severity", f.Severity.String(),
				"line", f.Line, "message", f.Message)
		}
	}

	stmts, err := e.opts.Generator.GenerateUp(schema)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}

	e.logger.Debug("applying migration", "file", name, "statements", len(stmts))

	start := time.Now()
	execErr := e.opts.Adapter.Transaction(ctx, stmts)
	duration := time.Since(start)

	e.metrics.Observe(metrics.Event{
		Filename:   name,
		Direction:  "up",
		Statements: len(stmts),
		Duration:   duration,
		Failed:     execErr != nil,
	})

	if execErr != nil {
		return nil, nil, fmt.Errorf("applying %s: %w", name, execErr)
	}

	e.logger.Info("applied migration", "file", name, "duration", duration)

	return &Applied{Filename: name, Statements: len(stmts), Duration: duration}, findings, nil
}

// Down rolls back the most recent batch as a unit, in the reverse of its
// application order. Rollback requires every original DSL file; a missing
// or modified file is fatal.
func (e *Engine) Down(ctx context.Context) (*DownResult, error) {
	if err := e.ledger.Load(); err != nil {
		return nil, err
	}

	batch, err := e.ledger.CurrentBatch()
	if err != nil {
		return nil, err
	}

	if batch == 0 {
		e.logger.Info("nothing to roll back")

		return &DownResult{}, nil
	}

	if err := e.preflight(ctx); err != nil {
		return nil, err
	}

	entries, err := e.ledger.LastBatchEntries()
	if err != nil {
		return nil, err
	}

	result := &DownResult{Batch: batch}

	for _, entry := range entries {
		if err := e.rollbackOne(ctx, entry); err != nil {
			return nil, err
		}

		result.RolledBack = append(result.RolledBack, entry.Filename)
	}

	if err := e.ledger.RollbackLastBatch(); err != nil {
		return nil, &fault.Error{
			Kind: fault.CriticalInconsistency,
			Msg: fmt.Sprintf(
				"batch %d was rolled back in the database but the ledger could not be updated; "+
					"reconcile %s by hand before running again", batch, e.ledger.Path()),
			Err: err,
		}
	}

	return result, nil
}

// rollbackOne compiles and executes one migration's DOWN statements.
func (e *Engine) rollbackOne(ctx context.Context, entry ledger.Entry) error {
	path := filepath.Join(e.opts.MigrationsDir, entry.Filename)

	content, err := os.ReadFile(path)
	if err != nil {
		return &fault.Error{
			Kind:     fault.Integrity,
			Msg:      "rollback requires the original migration file, which could not be read",
			Filename: entry.Filename,
			Err:      err,
		}
	}

	if actual := ledger.ComputeHash(content); actual != entry.Hash {
		return &fault.Error{
			Kind:     fault.Integrity,
			Msg:      "migration file has been modified since it was applied",
			Filename: entry.Filename,
			Expected: entry.Hash,
			Actual:   actual,
		}
	}

	schema, err := parser.Parse(string(content))
	if err != nil {
		return fmt.Errorf("%s: %w", entry.Filename, err)
	}

	stmts, err := e.opts.Generator.GenerateDown(schema)
	if err != nil {
		return fmt.Errorf("%s: %w", entry.Filename, err)
	}

	start := time.Now()
	execErr := e.opts.Adapter.Transaction(ctx, stmts)
	duration := time.Since(start)

	e.metrics.Observe(metrics.Event{
		Filename:   entry.Filename,
		Direction:  "down",
		Statements: len(stmts),
		Duration:   duration,
		Failed:     execErr != nil,
	})

	if execErr != nil {
		return fmt.Errorf("rolling back %s: %w", entry.Filename, execErr)
	}

	e.logger.Info("rolled back migration", "file", entry.Filename, "duration", duration)

	return nil
}

// StatusReport returns applied entries, pending filenames, and the current
// batch without mutating anything or touching the lock.
func (e *Engine) StatusReport() (*Status, error) {
	if err := e.ledger.Load(); err != nil {
		return nil, err
	}

	names, _, err := e.discover()
	if err != nil {
		return nil, err
	}

	applied, err := e.ledger.Entries()
	if err != nil {
		return nil, err
	}

	pending, err := e.ledger.Pending(names)
	if err != nil {
		return nil, err
	}

	batch, err := e.ledger.CurrentBatch()
	if err != nil {
		return nil, err
	}

	return &Status{Applied: applied, Pending: pending, CurrentBatch: batch}, nil
}

// preflight verifies the ledger location accepts writes and the database
// answers a bounded connectivity probe before any work is committed.
func (e *Engine) preflight(ctx context.Context) error {
	if err := e.ledger.VerifyWritable(); err != nil {
		return err
	}

	return database.PingWithRetry(ctx, e.opts.Adapter)
}

// discover enumerates migration files, sorted lexicographically so the
// leading timestamp in each filename yields chronological order.
func (e *Engine) discover() (names []string, paths []string, err error) {
	entries, err := os.ReadDir(e.opts.MigrationsDir)
	if err != nil {
		return nil, nil, fault.Wrap(fault.Validation, err,
			"reading migrations directory %s", e.opts.MigrationsDir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	paths = make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(e.opts.MigrationsDir, name)
	}

	return names, paths, nil
}

// readAll reads every discovered file into a filename-keyed map.
func readAll(names, paths []string) (map[string][]byte, error) {
	files := make(map[string][]byte, len(names))

	for i, name := range names {
		content, err := os.ReadFile(paths[i])
		if err != nil {
			return nil, fault.Wrap(fault.Validation, err, "reading migration file %s", paths[i])
		}

		files[name] = content
	}

	return files, nil
}
