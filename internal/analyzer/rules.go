package analyzer

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/schemact/schemact/internal/parser"
)

// defaultRules is the built-in rule set applied to raw-SQL lines.
func defaultRules() []Rule {
	return []Rule{
		&DropRule{},
		&TruncateRule{},
		&UnqualifiedWriteRule{},
		&LockTableRule{},
	}
}

// DropRule flags DROP TABLE in raw SQL: the ledger cannot roll it back.
type DropRule struct{}

// ID returns the rule identifier.
func (r *DropRule) ID() string { return "drop-table" }

// Check flags DROP TABLE statements.
func (r *DropRule) Check(stmt *pg_query.RawStmt, raw *parser.RawSQL) []Finding {
	drop, ok := stmt.Stmt.Node.(*pg_query.Node_DropStmt)
	if !ok || drop.DropStmt == nil || drop.DropStmt.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return nil
	}

	return []Finding{{
		Rule:       r.ID(),
		Severity:   Critical,
		Line:       raw.Line,
		Statement:  raw.SQL,
		Message:    "raw SQL drops a table; the data is unrecoverable and rollback cannot restore it",
		Suggestion: "prefer removing the model from a later migration so the drop is tracked",
	}}
}

// TruncateRule flags TRUNCATE in raw SQL.
type TruncateRule struct{}

// ID returns the rule identifier.
func (r *TruncateRule) ID() string { return "truncate" }

// Check flags TRUNCATE statements.
func (r *TruncateRule) Check(stmt *pg_query.RawStmt, raw *parser.RawSQL) []Finding {
	if _, ok := stmt.Stmt.Node.(*pg_query.Node_TruncateStmt); !ok {
		return nil
	}

	return []Finding{{
		Rule:       r.ID(),
		Severity:   Critical,
		Line:       raw.Line,
		Statement:  raw.SQL,
		Message:    "raw SQL truncates a table; all rows are permanently deleted",
		Suggestion: "ensure a backup exists before applying this migration",
	}}
}

// UnqualifiedWriteRule flags UPDATE or DELETE without a WHERE clause.
type UnqualifiedWriteRule struct{}

// ID returns the rule identifier.
func (r *UnqualifiedWriteRule) ID() string { return "unqualified-write" }

// Check flags whole-table UPDATE and DELETE statements.
func (r *UnqualifiedWriteRule) Check(stmt *pg_query.RawStmt, raw *parser.RawSQL) []Finding {
	var verb string

	switch node := stmt.Stmt.Node.(type) {
	case *pg_query.Node_UpdateStmt:
		if node.UpdateStmt == nil || node.UpdateStmt.WhereClause != nil {
			return nil
		}

		verb = "UPDATE"
	case *pg_query.Node_DeleteStmt:
		if node.DeleteStmt == nil || node.DeleteStmt.WhereClause != nil {
			return nil
		}

		verb = "DELETE"
	default:
		return nil
	}

	return []Finding{{
		Rule:       r.ID(),
		Severity:   High,
		Line:       raw.Line,
		Statement:  raw.SQL,
		Message:    verb + " without a WHERE clause touches every row in the table",
		Suggestion: "add a WHERE clause, or make the intent explicit with WHERE TRUE",
	}}
}

// LockTableRule flags explicit LOCK TABLE statements, which serialize all
// access for the rest of the transaction.
type LockTableRule struct{}

// ID returns the rule identifier.
func (r *LockTableRule) ID() string { return "lock-table" }

// Check flags LOCK TABLE statements.
func (r *LockTableRule) Check(stmt *pg_query.RawStmt, raw *parser.RawSQL) []Finding {
	if _, ok := stmt.Stmt.Node.(*pg_query.Node_LockStmt); !ok {
		return nil
	}

	return []Finding{{
		Rule:       r.ID(),
		Severity:   Medium,
		Line:       raw.Line,
		Statement:  raw.SQL,
		Message:    "explicit LOCK TABLE blocks concurrent access until the migration commits",
		Suggestion: "rely on the statement-level locks the DDL already takes",
	}}
}
