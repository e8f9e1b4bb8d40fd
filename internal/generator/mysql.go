package generator

import (
	"fmt"
	"strings"

	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/parser"
	"github.com/schemact/schemact/internal/validate"
)

// Default MySQL table options appended to every CREATE TABLE.
const (
	DefaultMySQLEngine    = "InnoDB"
	DefaultMySQLCharset   = "utf8mb4"
	DefaultMySQLCollation = "utf8mb4_unicode_ci"
)

// MySQL generates MySQL/MariaDB DDL. Identifiers are backtick-quoted and
// capped at 64 characters.
type MySQL struct {
	engine    string
	charset   string
	collation string
}

// MySQLOption configures a MySQL generator.
type MySQLOption func(*MySQL)

// WithEngine overrides the storage engine in the table options.
func WithEngine(engine string) MySQLOption {
	return func(g *MySQL) { g.engine = engine }
}

// WithCharset overrides the default character set.
func WithCharset(charset string) MySQLOption {
	return func(g *MySQL) { g.charset = charset }
}

// WithCollation overrides the default collation.
func WithCollation(collation string) MySQLOption {
	return func(g *MySQL) { g.collation = collation }
}

// NewMySQL creates a MySQL generator with the given options.
func NewMySQL(opts ...MySQLOption) *MySQL {
	g := &MySQL{
		engine:    DefaultMySQLEngine,
		charset:   DefaultMySQLCharset,
		collation: DefaultMySQLCollation,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Dialect returns "mysql".
func (g *MySQL) Dialect() string { return "mysql" }

// GenerateUp emits CREATE TABLE statements in source order, then raw-SQL
// lines in source order.
func (g *MySQL) GenerateUp(schema *parser.Schema) ([]string, error) {
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

// GenerateDown emits DROP TABLE statements in reverse model order.
func (g *MySQL) GenerateDown(schema *parser.Schema) ([]string, error) {
	var stmts []string

	for i := len(schema.Models) - 1; i >= 0; i-- {
		quoted, err := g.quoteIdent(schema.Models[i].Name)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoted))
	}

	return stmts, nil
}

func (g *MySQL) quoteIdent(name string) (string, error) {
	if err := validate.Identifier(name, validate.MaxIdentifierMySQL); err != nil {
		return "", err
	}

	return "`" + name + "`", nil
}

func (g *MySQL) createTable(model *parser.Model) (string, error) {
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

	closing := fmt.Sprintf(") ENGINE=%s DEFAULT CHARSET=%s COLLATE=%s;",
		g.engine, g.charset, g.collation)

	return statement(table, lines, closing), nil
}

func (g *MySQL) columnDef(col *parser.Column) (string, error) {
	name, err := g.quoteIdent(col.Name)
	if err != nil {
		return "", err
	}

	typ, err := g.typeSQL(col)
	if err != nil {
		return "", err
	}

	// AUTO_INCREMENT must sit directly after the type, before PRIMARY KEY.
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
			parts = append(parts, "DEFAULT "+formatDefault(dec.Args[0], "1", "0"))
		case "ref", "onDelete":
			// Emitted as a table-level constraint.
		}
	}

	return strings.Join(parts, " "), nil
}

func (g *MySQL) typeSQL(col *parser.Column) (string, error) {
	switch col.Type {
	case "Serial":
		return "INT AUTO_INCREMENT", nil
	case "Int":
		return "INT", nil
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
		return fmt.Sprintf("DECIMAL(%s, %s)",
			typeArg(col.TypeArgs, 0, "10"), typeArg(col.TypeArgs, 1, "2")), nil
	case "Real":
		return "FLOAT", nil
	case "DoublePrecision":
		return "DOUBLE", nil
	case "Json", "Jsonb":
		return "JSON", nil
	case "Uuid":
		return "CHAR(36)", nil
	case "Enum":
		if len(col.TypeArgs) == 0 {
			return "", fault.New(fault.Generator, "Enum column %q requires at least one value", col.Name)
		}

		return fmt.Sprintf("ENUM(%s)", quoteEnumValues(col.TypeArgs)), nil
	default:
		return "", fault.New(fault.Generator, "unknown type %q on column %q", col.Type, col.Name)
	}
}

func (g *MySQL) foreignKey(col *parser.Column) (string, error) {
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
