package validate

import (
	"os"

	"github.com/schemact/schemact/internal/fault"
)

// Default size caps applied before migration files are read.
const (
	DefaultMaxFileSize  = 5 * 1024 * 1024  // 5 MiB per file
	DefaultMaxTotalSize = 50 * 1024 * 1024 // 50 MiB per run
)

// FileSizes checks every path's size against the per-file cap and the
// aggregate against the total cap, using stat only — no file contents are
// read. Caps of zero fall back to the defaults.
func FileSizes(paths []string, maxFile, maxTotal int64) error {
	if maxFile <= 0 {
		maxFile = DefaultMaxFileSize
	}

	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotalSize
	}

	var total int64

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fault.Wrap(fault.Validation, err, "inspecting migration file %s", path)
		}

		if info.Size() > maxFile {
			return fault.New(fault.Validation,
				"migration file %s is %d bytes, exceeding the per-file limit of %d",
				path, info.Size(), maxFile)
		}

		total += info.Size()
	}

	if total > maxTotal {
		return fault.New(fault.Validation,
			"migration files total %d bytes, exceeding the limit of %d", total, maxTotal)
	}

	return nil
}
