// Package fault defines the single tagged error type shared by every stage
// of the migration pipeline. Callers distinguish failures by Kind rather
// than by a hierarchy of error types.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Parse indicates a lexer or parser failure; Line and Column are set.
	Parse Kind = iota
	// Generator indicates semantic misuse detected during DDL generation.
	Generator
	// Integrity indicates a ledger invariant violation: a recorded file is
	// missing or modified, or the ledger lock could not be acquired.
	Integrity
	// Validation indicates a rejected identifier, migration name, path, or
	// file size.
	Validation
	// Adapter indicates the database was unreachable or a transaction failed.
	Adapter
	// CriticalInconsistency indicates the database committed but the ledger
	// could not be updated. Requires operator intervention.
	CriticalInconsistency
)

// String returns the label used in rendered error messages.
func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse error"
	case Generator:
		return "generator error"
	case Integrity:
		return "integrity error"
	case Validation:
		return "validation error"
	case Adapter:
		return "adapter error"
	case CriticalInconsistency:
		return "critical inconsistency"
	default:
		return "unknown error"
	}
}

// Error is the tagged failure value. Only the fields relevant to the Kind
// are populated.
type Error struct {
	Kind     Kind
	Msg      string
	Filename string // affected migration file, if any
	Line     int    // 1-based source line for Parse errors
	Column   int    // 1-based source column for Parse errors
	Expected string // expected hash for Integrity errors
	Actual   string // actual hash for Integrity errors
	Err      error  // wrapped cause, if any
}

// Error renders the failure with its location where one is known.
func (e *Error) Error() string {
	msg := e.Msg

	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d, column %d", msg, e.Line, e.Column)
	}

	if e.Filename != "" {
		msg = fmt.Sprintf("%s: %s", e.Filename, msg)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// ParseAt creates a Parse error pinned to a source location.
func ParseAt(line, column int, format string, args ...any) *Error {
	return &Error{Kind: Parse, Msg: fmt.Sprintf(format, args...), Line: line, Column: column}
}

// KindOf reports the Kind of err if it is (or wraps) a fault.Error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}

	return 0, false
}

// IsKind reports whether err is (or wraps) a fault.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)

	return ok && k == kind
}
