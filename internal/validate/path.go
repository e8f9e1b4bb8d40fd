package validate

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/schemact/schemact/internal/fault"
)

// MaxMigrationNameLen caps user-supplied migration names.
const MaxMigrationNameLen = 100

// maxDecodePasses bounds iterative URL decoding so nested encodings like
// "..%252Fetc" cannot smuggle separators past the character check.
const maxDecodePasses = 5

// namePattern is the accepted migration-name shape after decoding and
// normalization.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`) //nolint:gochecknoglobals // compiled once

// MigrationName decodes, normalizes, and validates a user-supplied
// migration name. The returned value is the normalized form to embed in a
// filename.
func MigrationName(name string) (string, error) {
	if name == "" {
		return "", fault.New(fault.Validation, "migration name is empty")
	}

	decoded := name

	for range maxDecodePasses {
		next, err := url.QueryUnescape(decoded)
		if err != nil || next == decoded {
			break
		}

		decoded = next
	}

	decoded = norm.NFC.String(decoded)

	if len(decoded) > MaxMigrationNameLen {
		return "", fault.New(fault.Validation,
			"migration name exceeds %d characters", MaxMigrationNameLen)
	}

	if !namePattern.MatchString(decoded) {
		return "", fault.New(fault.Validation,
			"migration name %q may only contain letters, digits, underscores, and dashes, and must start with a letter or digit", name)
	}

	return decoded, nil
}

// MigrationPath verifies that filename resolves to a strict descendant of
// dir and that dir itself is not a symbolic link. It returns the resolved
// absolute path.
func MigrationPath(dir, filename string) (string, error) {
	info, err := os.Lstat(dir)
	if err != nil {
		return "", fault.Wrap(fault.Validation, err, "inspecting migrations directory %s", dir)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return "", fault.New(fault.Validation,
			"migrations directory %s is a symbolic link", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fault.Wrap(fault.Validation, err, "resolving migrations directory %s", dir)
	}

	target := filepath.Join(absDir, filename)

	rel, err := filepath.Rel(absDir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fault.New(fault.Validation,
			"path %q escapes the migrations directory", filename)
	}

	return target, nil
}
