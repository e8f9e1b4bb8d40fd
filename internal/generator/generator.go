// Package generator turns a parsed schema into dialect-specific DDL. Each
// dialect produces an ordered list of self-contained statements for apply
// (up) and reverse (down).
package generator

import (
	"fmt"
	"strings"

	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/parser"
)

// Generator is the contract shared by all dialects. GenerateUp emits CREATE
// TABLE statements in source order followed by raw-SQL passthrough lines.
// GenerateDown emits DROP TABLE statements in reverse model order; raw SQL
// is never re-emitted because the DSL has no inverse for it.
type Generator interface {
	// Dialect returns the generator's dialect name ("postgres", "mysql",
	// "sqlite").
	Dialect() string

	// GenerateUp returns the statements that apply the schema.
	GenerateUp(schema *parser.Schema) ([]string, error)

	// GenerateDown returns the statements that reverse the schema.
	GenerateDown(schema *parser.Schema) ([]string, error)
}

// New returns the generator for the named dialect.
func New(dialect string) (Generator, error) {
	switch dialect {
	case "postgres", "postgresql":
		return NewPostgres(), nil
	case "mysql", "mariadb":
		return NewMySQL(), nil
	case "sqlite", "sqlite3":
		return NewSQLite(), nil
	default:
		return nil, fault.New(fault.Validation, "unknown database dialect %q", dialect)
	}
}

// onDeleteActions is the closed set of accepted referential actions.
var onDeleteActions = map[string]struct{}{ //nolint:gochecknoglobals // immutable lookup table
	"CASCADE":     {},
	"SET NULL":    {},
	"SET DEFAULT": {},
	"RESTRICT":    {},
	"NO ACTION":   {},
}

// knownDecorators maps decorator names to their required argument count.
// A count of -1 means "no arguments allowed".
var knownDecorators = map[string]int{ //nolint:gochecknoglobals // immutable lookup table
	"pk":       -1,
	"unique":   -1,
	"notnull":  -1,
	"default":  1,
	"ref":      1,
	"onDelete": 1,
}

// checkDecorators validates decorator usage on a column: names must be
// known, argument counts must match, @ref needs a dotted target, and
// @onDelete needs both a valid action and a sibling @ref.
func checkDecorators(model string, col *parser.Column) error {
	for i := range col.Decorators {
		dec := &col.Decorators[i]

		want, ok := knownDecorators[dec.Name]
		if !ok {
			return fault.New(fault.Generator,
				"unknown decorator @%s on %s.%s", dec.Name, model, col.Name)
		}

		switch {
		case want < 0 && len(dec.Args) > 0:
			return fault.New(fault.Generator,
				"@%s on %s.%s takes no arguments", dec.Name, model, col.Name)
		case want > 0 && len(dec.Args) != want:
			return fault.New(fault.Generator,
				"@%s on %s.%s requires exactly %d argument(s)", dec.Name, model, col.Name, want)
		}
	}

	if ref := col.Decorator("ref"); ref != nil {
		if _, _, err := splitRef(ref.Args[0]); err != nil {
			return fault.New(fault.Generator,
				"@ref on %s.%s requires a Table.column argument, got %q", model, col.Name, ref.Args[0])
		}
	}

	if od := col.Decorator("onDelete"); od != nil {
		if !col.HasDecorator("ref") {
			return fault.New(fault.Generator,
				"@onDelete on %s.%s requires @ref on the same column", model, col.Name)
		}

		action := strings.ToUpper(strings.TrimSpace(od.Args[0]))
		if _, ok := onDeleteActions[action]; !ok {
			return fault.New(fault.Generator,
				"invalid ON DELETE action %q on %s.%s", od.Args[0], model, col.Name)
		}
	}

	return nil
}

// splitRef splits a "Table.column" reference target.
func splitRef(arg string) (table, column string, err error) {
	parts := strings.SplitN(arg, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("reference %q is not of the form Table.column", arg)
	}

	return parts[0], parts[1], nil
}

// onDeleteClause returns the normalized action for the column's @onDelete,
// or "" when absent.
func onDeleteClause(col *parser.Column) string {
	od := col.Decorator("onDelete")
	if od == nil {
		return ""
	}

	return strings.ToUpper(strings.TrimSpace(od.Args[0]))
}

// quoteStringLiteral renders a SQL string literal with single-quote
// doubling. Identical in all three dialects.
func quoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// isNumericLexeme reports whether s is a purely numeric literal.
func isNumericLexeme(s string) bool {
	if s == "" {
		return false
	}

	dot := false

	for i := range len(s) {
		c := s[i]

		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !dot && i > 0 && i < len(s)-1:
			dot = true
		default:
			return false
		}
	}

	return true
}

// formatDefault renders a @default argument: the bareword "now" becomes
// CURRENT_TIMESTAMP, booleans use the dialect's literals, numbers pass
// through verbatim, everything else becomes a quoted string literal.
func formatDefault(value, boolTrue, boolFalse string) string {
	switch strings.ToLower(value) {
	case "now":
		return "CURRENT_TIMESTAMP"
	case "true":
		return boolTrue
	case "false":
		return boolFalse
	}

	if isNumericLexeme(value) {
		return value
	}

	return quoteStringLiteral(value)
}

// quoteEnumValues renders enum arguments as a comma-separated list of
// string literals.
func quoteEnumValues(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteStringLiteral(v)
	}

	return strings.Join(quoted, ", ")
}

// typeArg returns the i-th type argument or the fallback when the list is
// absent or too short. An empty parenthesized list counts as absent.
func typeArg(args []string, i int, fallback string) string {
	if i < len(args) {
		return args[i]
	}

	return fallback
}

// statement assembles a CREATE TABLE statement from its quoted table name,
// body lines (column definitions and table-level constraints), and a
// dialect-specific closing.
func statement(quotedTable string, lines []string, closing string) string {
	var b strings.Builder

	b.WriteString("CREATE TABLE ")
	b.WriteString(quotedTable)
	b.WriteString(" (\n  ")
	b.WriteString(strings.Join(lines, ",\n  "))
	b.WriteString("\n")
	b.WriteString(closing)

	return b.String()
}

// terminate ensures a raw-SQL statement ends with a semicolon so every
// emitted statement is self-contained.
func terminate(sql string) string {
	if strings.HasSuffix(strings.TrimSpace(sql), ";") {
		return sql
	}

	return sql + ";"
}
