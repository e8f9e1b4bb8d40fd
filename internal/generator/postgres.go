package generator

import (
	"fmt"
	"strings"

	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/parser"
	"github.com/schemact/schemact/internal/validate"
)

// Postgres generates PostgreSQL DDL. Identifiers are double-quoted and
// capped at 63 characters.
type Postgres struct{}

// NewPostgres creates a PostgreSQL generator.
func NewPostgres() *Postgres { return &Postgres{} }

// Dialect returns "postgres".
func (g *Postgres) Dialect() string { return "postgres" }

// GenerateUp emits CREATE TABLE statements in source order, then raw-SQL
// lines in source order.
func (g *Postgres) GenerateUp(schema *parser.Schema) ([]string, error) {
	var stmts []string

	for i := range schema.Models {
		stmt, err := g.createTable(&schema.Models[i])
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, stmt)
	}

	for _, raw := range schema.RawSQL {
		stmts = append(stmts, terminate(raw.SQL))
	}

	return stmts, nil
}

// GenerateDown emits DROP TABLE statements in reverse model order. CASCADE
// clears dependent objects such as foreign keys.
func (g *Postgres) GenerateDown(schema *parser.Schema) ([]string, error) {
	var stmts []string

	for i := len(schema.Models) - 1; i >= 0; i-- {
		quoted, err := g.quoteIdent(schema.Models[i].Name)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", quoted))
	}

	return stmts, nil
}

func (g *Postgres) quoteIdent(name string) (string, error) {
	if err := validate.Identifier(name, validate.MaxIdentifierPostgres); err != nil {
		return "", err
	}

	return `"` + name + `"`, nil
}

func (g *Postgres) createTable(model *parser.Model) (string, error) {
	table, err := g.quoteIdent(model.Name)
	if err != nil {
		return "", err
	}

	var lines []string

	var constraints []string

	for i := range model.Columns {
		col := &model.Columns[i]

		if err := checkDecorators(model.Name, col); err != nil {
			return "", err
		}

		def, err := g.columnDef(col)
		if err != nil {
			return "", err
		}

		lines = append(lines, def)

		fk, err := g.foreignKey(col)
		if err != nil {
			return "", err
		}

		if fk != "" {
			constraints = append(constraints, fk)
		}
	}

	lines = append(lines, constraints...)

	return statement(table, lines, ");"), nil
}

func (g *Postgres) columnDef(col *parser.Column) (string, error) {
	name, err := g.quoteIdent(col.Name)
	if err != nil {
		return "", err
	}

	typ, err := g.typeSQL(col, name)
	if err != nil {
		return "", err
	}

	parts := []string{name, typ}

	for i := range col.Decorators {
		dec := &col.Decorators[i]

		switch dec.Name {
		case "pk":
			parts = append(parts, "PRIMARY KEY")
		case "unique":
			parts = append(parts, "UNIQUE")
		case "notnull":
			parts = append(parts, "NOT NULL")
		case "default":
			parts = append(parts, "DEFAULT "+formatDefault(dec.Args[0], "TRUE", "FALSE"))
		case "ref", "onDelete":
			// Emitted as a table-level constraint.
		}
	}

	return strings.Join(parts, " "), nil
}

func (g *Postgres) typeSQL(col *parser.Column, quotedName string) (string, error) {
	switch col.Type {
	case "Serial":
		return "SERIAL", nil
	case "Int":
		return "INTEGER", nil
	case "BigInt":
		return "BIGINT", nil
	case "SmallInt":
		return "SMALLINT", nil
	case "VarChar":
		return fmt.Sprintf("VARCHAR(%s)", typeArg(col.TypeArgs, 0, "255")), nil
	case "Char":
		return fmt.Sprintf("CHAR(%s)", typeArg(col.TypeArgs, 0, "1")), nil
	case "Text":
		return "TEXT", nil
	case "Boolean":
		return "BOOLEAN", nil
	case "Timestamp":
		return "TIMESTAMP", nil
	case "Date":
		return "DATE", nil
	case "Time":
		return "TIME", nil
	case "Decimal", "Numeric":
		return fmt.Sprintf("NUMERIC(%s, %s)",
			typeArg(col.TypeArgs, 0, "10"), typeArg(col.TypeArgs, 1, "2")), nil
	case "Real":
		return "REAL", nil
	case "DoublePrecision":
		return "DOUBLE PRECISION", nil
	case "Json":
		return "JSON", nil
	case "Jsonb":
		return "JSONB", nil
	case "Uuid":
		return "UUID", nil
	case "Enum":
		if len(col.TypeArgs) == 0 {
			return "", fault.New(fault.Generator, "Enum column %q requires at least one value", col.Name)
		}

		return fmt.Sprintf("VARCHAR(50) CHECK (%s IN (%s))",
			quotedName, quoteEnumValues(col.TypeArgs)), nil
	default:
		return "", fault.New(fault.Generator, "unknown type %q on column %q", col.Type, col.Name)
	}
}

// foreignKey renders the table-level FOREIGN KEY constraint for a column's
// @ref, or "" when the column has none.
func (g *Postgres) foreignKey(col *parser.Column) (string, error) {
	ref := col.Decorator("ref")
	if ref == nil {
		return "", nil
	}

	refTable, refColumn, err := splitRef(ref.Args[0])
	if err != nil {
		return "", fault.Wrap(fault.Generator, err, "resolving @ref on column %q", col.Name)
	}

	local, err := g.quoteIdent(col.Name)
	if err != nil {
		return "", err
	}

	qTable, err := g.quoteIdent(refTable)
	if err != nil {
		return "", err
	}

	qColumn, err := g.quoteIdent(refColumn)
	if err != nil {
		return "", err
	}

	fk := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", local, qTable, qColumn)

	if action := onDeleteClause(col); action != "" {
		fk += " ON DELETE " + action
	}

	return fk, nil
}
