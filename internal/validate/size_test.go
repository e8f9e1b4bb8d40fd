package validate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/validate"
)

func writeSized(t *testing.T, dir, name string, size int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))

	return path
}

func TestFileSizes(t *testing.T) {
	t.Parallel()

	t.Run("within caps", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{
			writeSized(t, dir, "a.sigl", 100),
			writeSized(t, dir, "b.sigl", 200),
		}

		require.NoError(t, validate.FileSizes(paths, 1024, 4096))
	})

	t.Run("per-file cap exceeded", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{writeSized(t, dir, "big.sigl", 2048)}

		err := validate.FileSizes(paths, 1024, 1<<20)
		require.Error(t, err)
		assert.True(t, fault.IsKind(err, fault.Validation))
		assert.Contains(t, err.Error(), "per-file limit")
	})

	t.Run("aggregate cap exceeded", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{
			writeSized(t, dir, "a.sigl", 600),
			writeSized(t, dir, "b.sigl", 600),
		}

		err := validate.FileSizes(paths, 1024, 1000)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeding the limit")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		err := validate.FileSizes([]string{filepath.Join(t.TempDir(), "nope.sigl")}, 0, 0)
		require.Error(t, err)
	})

	t.Run("zero caps use defaults", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{writeSized(t, dir, "a.sigl", 10)}

		require.NoError(t, validate.FileSizes(paths, 0, 0))
	})
}
