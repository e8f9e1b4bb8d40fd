package generator

import (
	"fmt"
	"strings"

	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/parser"
	"github.com/schemact/schemact/internal/validate"
)

// pragmaForeignKeys is prepended to every up and down statement list;
// SQLite disables foreign key enforcement per connection by default.
const pragmaForeignKeys = "PRAGMA foreign_keys = ON;"

// SQLite generates SQLite DDL. Identifiers are double-quoted and capped at
// 256 characters.
//
// Integer primary keys become INTEGER PRIMARY KEY AUTOINCREMENT, which is
// SQLite's rowid alias. A non-integer @pk (for example Uuid) becomes a
// plain PRIMARY KEY with no AUTOINCREMENT and does not imply UNIQUE or NOT
// NULL beyond what SQLite itself attaches to primary keys.
type SQLite struct{}

// NewSQLite creates a SQLite generator.
func NewSQLite() *SQLite { return &SQLite{} }

// Dialect returns "sqlite".
func (g *SQLite) Dialect() string { return "sqlite" }

// GenerateUp emits the foreign-key pragma, CREATE TABLE statements in
// source order, then raw-SQL lines in source order.
func (g *SQLite) GenerateUp(schema *parser.Schema) ([]string, error) {
	stmts := []string{pragmaForeignKeys}

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

// GenerateDown emits the foreign-key pragma, then DROP TABLE statements in
// reverse model order.
func (g *SQLite) GenerateDown(schema *parser.Schema) ([]string, error) {
	stmts := []string{pragmaForeignKeys}

	for i := len(schema.Models) - 1; i >= 0; i-- {
		quoted, err := g.quoteIdent(schema.Models[i].Name)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoted))
	}

	return stmts, nil
}

func (g *SQLite) quoteIdent(name string) (string, error) {
	if err := validate.Identifier(name, validate.MaxIdentifierSQLite); err != nil {
		return "", err
	}

	return `"` + name + `"`, nil
}

// integerType reports whether the DSL type maps to SQLite INTEGER affinity
// for primary-key purposes.
func integerType(typ string) bool {
	switch typ {
	case "Serial", "Int", "BigInt", "SmallInt":
		return true
	default:
		return false
	}
}

func (g *SQLite) createTable(model *parser.Model) (string, error) {
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

func (g *SQLite) columnDef(col *parser.Column) (string, error) {
	name, err := g.quoteIdent(col.Name)
	if err != nil {
		return "", err
	}

	typ, err := g.typeSQL(col, name)
	if err != nil {
		return "", err
	}

	parts := []string{name, typ}

	// Serial is the rowid alias whether or not @pk is also present.
	serial := col.Type == "Serial"
	if serial {
		parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
	}

	for i := range col.Decorators {
		dec := &col.Decorators[i]

		switch dec.Name {
		case "pk":
			if serial {
				continue // already the rowid alias
			}

			if integerType(col.Type) {
				parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
			} else {
				parts = append(parts, "PRIMARY KEY")
			}
		case "unique":
			parts = append(parts, "UNIQUE")
		case "notnull":
			parts = append(parts, "NOT NULL")
		case "default":
			parts = append(parts, "DEFAULT "+formatDefault(dec.Args[0], "1", "0"))
		case "ref", "onDelete":
			// Emitted as a table-level constraint.
		}
	}

	return strings.Join(parts, " "), nil
}

func (g *SQLite) typeSQL(col *parser.Column, quotedName string) (string, error) {
	switch col.Type {
	case "Serial", "Int", "BigInt", "SmallInt", "Boolean":
		return "INTEGER", nil
	case "VarChar", "Char", "Text", "Timestamp", "Date", "Time", "Json", "Jsonb", "Uuid":
		return "TEXT", nil
	case "Decimal", "Numeric", "Real", "DoublePrecision":
		return "REAL", nil
	case "Enum":
		if len(col.TypeArgs) == 0 {
			return "", fault.New(fault.Generator, "Enum column %q requires at least one value", col.Name)
		}

		return fmt.Sprintf("TEXT CHECK (%s IN (%s))",
			quotedName, quoteEnumValues(col.TypeArgs)), nil
	default:
		return "", fault.New(fault.Generator, "unknown type %q on column %q", col.Type, col.Name)
	}
}

func (g *SQLite) foreignKey(col *parser.Column) (string, error) {
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
