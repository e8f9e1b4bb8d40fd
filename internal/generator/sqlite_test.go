package generator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemact/schemact/internal/generator"
)

func TestSQLiteGenerateUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "pragma precedes every up script",
			source: "model User { id Serial @pk }",
			want: []string{
				"PRAGMA foreign_keys = ON;",
				"CREATE TABLE \"User\" (\n  \"id\" INTEGER PRIMARY KEY AUTOINCREMENT\n);",
			},
		},
		{
			name:   "integer pk gets AUTOINCREMENT",
			source: "model T { id Int @pk }",
			want: []string{
				"PRAGMA foreign_keys = ON;",
				"CREATE TABLE \"T\" (\n  \"id\" INTEGER PRIMARY KEY AUTOINCREMENT\n);",
			},
		},
		{
			name:   "non-integer pk stays plain",
			source: "model T { id Uuid @pk }",
			want: []string{
				"PRAGMA foreign_keys = ON;",
				"CREATE TABLE \"T\" (\n  \"id\" TEXT PRIMARY KEY\n);",
			},
		},
		{
			name:   "enum renders as TEXT with CHECK",
			source: "model U { role Enum(admin, user) @default(user) }",
			want: []string{
				"PRAGMA foreign_keys = ON;",
				"CREATE TABLE \"U\" (\n  \"role\" TEXT CHECK (\"role\" IN ('admin', 'user')) DEFAULT 'user'\n);",
			},
		},
		{
			name:   "affinity mappings collapse to TEXT INTEGER REAL",
			source: "model M { a VarChar(80) b Boolean c Decimal(6, 2) d Timestamp e BigInt }",
			want: []string{
				"PRAGMA foreign_keys = ON;",
				"CREATE TABLE \"M\" (\n  \"a\" TEXT,\n  \"b\" INTEGER,\n  \"c\" REAL,\n" +
					"  \"d\" TEXT,\n  \"e\" INTEGER\n);",
			},
		},
		{
			name:   "foreign key constraint",
			source: "model Post { authorId Int @ref(User.id) @onDelete(RESTRICT) }",
			want: []string{
				"PRAGMA foreign_keys = ON;",
				"CREATE TABLE \"Post\" (\n  \"authorId\" INTEGER,\n" +
					"  FOREIGN KEY (\"authorId\") REFERENCES \"User\"(\"id\") ON DELETE RESTRICT\n);",
			},
		},
	}

	g := generator.NewSQLite()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stmts, err := g.GenerateUp(mustParse(t, tt.source))
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmts)
		})
	}
}

func TestSQLiteGenerateDown(t *testing.T) {
	t.Parallel()

	schema := mustParse(t, "model A { id Serial @pk }\nmodel B { id Serial @pk }")

	g := generator.NewSQLite()

	stmts, err := g.GenerateDown(schema)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"PRAGMA foreign_keys = ON;",
		`DROP TABLE IF EXISTS "B";`,
		`DROP TABLE IF EXISTS "A";`,
	}, stmts)
}
