package parser

// Schema is the root of a parsed DSL compilation unit. Models and raw SQL
// statements keep their source order.
type Schema struct {
	Models []Model
	RawSQL []RawSQL
}

// Model is a table declaration with at least one column.
type Model struct {
	Name    string
	Columns []Column
	Line    int
	Column  int
}

// Column is a single column declaration.
type Column struct {
	Name       string
	Type       string
	TypeArgs   []string // nil when no parenthesized list was given
	Decorators []Decorator
	Line       int
	Col        int
}

// Decorator is a @name(args?) attachment on a column.
type Decorator struct {
	Name string
	Args []string // nil when no parenthesized list was given
	Line int
	Col  int
}

// Decorator returns the column's decorator with the given name, or nil.
func (c *Column) Decorator(name string) *Decorator {
	for i := range c.Decorators {
		if c.Decorators[i].Name == name {
			return &c.Decorators[i]
		}
	}

	return nil
}

// HasDecorator reports whether the column carries the named decorator.
func (c *Column) HasDecorator(name string) bool {
	return c.Decorator(name) != nil
}

// RawSQL is a passthrough statement from a '>' line.
type RawSQL struct {
	SQL  string
	Line int
}
