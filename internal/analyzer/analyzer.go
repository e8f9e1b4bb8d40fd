// Package analyzer lints the raw-SQL passthrough lines of a schema before
// they are applied. The DSL has no inverse for raw SQL, so destructive
// statements hiding in a '>' line are the one place a migration can lose
// data without the generator noticing. Lines are parsed with the real
// PostgreSQL parser and checked against a rule registry; findings are
// warnings, never blockers.
package analyzer

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/schemact/schemact/internal/parser"
)

// Finding represents a single risky pattern detected in a raw-SQL line.
type Finding struct {
	Rule       string   // rule identifier, e.g. "drop-table"
	Severity   Severity // danger level
	Line       int      // DSL source line of the raw-SQL statement
	Statement  string   // the offending SQL
	Message    string   // human-readable description
	Suggestion string   // safer alternative, when one exists
}

// Rule checks one parsed statement.
type Rule interface {
	ID() string
	Check(stmt *pg_query.RawStmt, raw *parser.RawSQL) []Finding
}

// Analyzer runs registered rules against a schema's raw-SQL lines.
type Analyzer struct {
	rules []Rule
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(a *Analyzer) { a.rules = rules }
}

// New creates an Analyzer with the default rules unless overridden.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{rules: defaultRules()}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Analyze parses each raw-SQL line and applies every rule. A line the
// PostgreSQL parser cannot understand yields a Low finding rather than an
// error; the database will render the final verdict.
func (a *Analyzer) Analyze(schema *parser.Schema) []Finding {
	var findings []Finding

	for i := range schema.RawSQL {
		raw := &schema.RawSQL[i]

		tree, err := pg_query.Parse(raw.SQL)
		if err != nil {
			findings = append(findings, Finding{
				Rule:      "unparsable",
				Severity:  Low,
				Line:      raw.Line,
				Statement: raw.SQL,
				Message:   "raw SQL could not be parsed as PostgreSQL; it will be passed through unchecked",
			})

			continue
		}

		for _, stmt := range tree.Stmts {
			for _, rule := range a.rules {
				findings = append(findings, rule.Check(stmt, raw)...)
			}
		}
	}

	return findings
}

// MaxSeverity returns the highest severity across findings, Safe when
// there are none.
func MaxSeverity(findings []Finding) Severity {
	max := Safe

	for _, f := range findings {
		if f.Severity > max {
			max = f.Severity
		}
	}

	return max
}
