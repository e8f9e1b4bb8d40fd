// Package validate rejects dangerous identifiers, migration names, paths,
// and oversized inputs before any SQL is generated or any file is read in
// full.
package validate

import (
	"regexp"
	"strings"

	"github.com/schemact/schemact/internal/fault"
)

// Identifier length caps per dialect.
const (
	MaxIdentifierPostgres = 63
	MaxIdentifierMySQL    = 64
	MaxIdentifierSQLite   = 256
)

// identPattern is the only accepted identifier shape.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`) //nolint:gochecknoglobals // compiled once

// dangerousChars are rejected outright, before the shape check, so the
// error names the offending character.
const dangerousChars = `;'"\/*#`

// Identifier rejects names that could escape quoting or exceed the
// dialect's length cap. Rejection is loud; identifiers are never escaped
// or truncated silently.
func Identifier(name string, maxLen int) error {
	if name == "" {
		return fault.New(fault.Validation, "identifier is empty")
	}

	if i := strings.IndexAny(name, dangerousChars); i >= 0 {
		return fault.New(fault.Validation,
			"identifier %q contains forbidden character %q", name, string(name[i]))
	}

	if !identPattern.MatchString(name) {
		return fault.New(fault.Validation,
			"identifier %q must start with a letter or underscore and contain only letters, digits, and underscores", name)
	}

	if len(name) > maxLen {
		return fault.New(fault.Validation,
			"identifier %q exceeds the %d character limit", name, maxLen)
	}

	return nil
}
