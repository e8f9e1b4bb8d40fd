package ledger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/ledger"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()

	return ledger.New(filepath.Join(t.TempDir(), ".schemact_ledger.json"))
}

func TestComputeHash(t *testing.T) {
	t.Parallel()

	// SHA-256 of the empty input is a well-known constant.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ledger.ComputeHash(nil))

	hash := ledger.ComputeHash([]byte("model User { id Serial @pk }"))
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, ledger.ComputeHash([]byte("model User { id Serial @pk }")))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file is the empty state", func(t *testing.T) {
		t.Parallel()

		led := newLedger(t)
		require.NoError(t, led.Load())

		batch, err := led.CurrentBatch()
		require.NoError(t, err)
		assert.Zero(t, batch)

		entries, err := led.Entries()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("corrupted file fails loudly", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "ledger.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		led := ledger.New(path)
		err := led.Load()
		require.Error(t, err)
		assert.True(t, fault.IsKind(err, fault.Integrity))
		assert.Contains(t, err.Error(), "corrupted")
	})
}

func TestRecordBatch(t *testing.T) {
	t.Parallel()

	t.Run("empty input is a no-op", func(t *testing.T) {
		t.Parallel()

		led := newLedger(t)
		require.NoError(t, led.RecordBatch(nil))

		// Nothing was persisted either.
		_, err := os.Stat(led.Path())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("entries share one batch and timestamp", func(t *testing.T) {
		t.Parallel()

		led := newLedger(t)

		require.NoError(t, led.RecordBatch([]ledger.BatchFile{
			{Filename: "001_a.sigl", Content: []byte("a")},
			{Filename: "002_b.sigl", Content: []byte("b")},
			{Filename: "003_c.sigl", Content: []byte("c")},
		}))

		entries, err := led.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 3)

		for _, entry := range entries {
			assert.Equal(t, 1, entry.Batch)
			assert.Equal(t, entries[0].AppliedAt, entry.AppliedAt)
			assert.Len(t, entry.Hash, 64)
		}

		batch, err := led.CurrentBatch()
		require.NoError(t, err)
		assert.Equal(t, 1, batch)
	})

	t.Run("subsequent batches increment the counter", func(t *testing.T) {
		t.Parallel()

		led := newLedger(t)

		require.NoError(t, led.RecordBatch([]ledger.BatchFile{{Filename: "001.sigl", Content: []byte("a")}}))
		require.NoError(t, led.RecordBatch([]ledger.BatchFile{{Filename: "002.sigl", Content: []byte("b")}}))

		batch, err := led.CurrentBatch()
		require.NoError(t, err)
		assert.Equal(t, 2, batch)
	})

	t.Run("persisted document uses the documented JSON shape", func(t *testing.T) {
		t.Parallel()

		led := newLedger(t)
		require.NoError(t, led.RecordBatch([]ledger.BatchFile{{Filename: "001.sigl", Content: []byte("x")}}))

		data, err := os.ReadFile(led.Path())
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Contains(t, doc, "migrations")
		assert.Contains(t, doc, "currentBatch")

		first := doc["migrations"].([]any)[0].(map[string]any)
		assert.Contains(t, first, "filename")
		assert.Contains(t, first, "hash")
		assert.Contains(t, first, "appliedAt")
		assert.Contains(t, first, "batch")

		// Pretty-printed with two-space indent.
		assert.Contains(t, string(data), "\n  \"migrations\"")
	})
}

func TestPending(t *testing.T) {
	t.Parallel()

	led := newLedger(t)
	require.NoError(t, led.RecordBatch([]ledger.BatchFile{
		{Filename: "001.sigl", Content: []byte("a")},
		{Filename: "003.sigl", Content: []byte("c")},
	}))

	pending, err := led.Pending([]string{"001.sigl", "002.sigl", "003.sigl", "004.sigl"})
	require.NoError(t, err)
	assert.Equal(t, []string{"002.sigl", "004.sigl"}, pending)
}

func TestValidateIntegrity(t *testing.T) {
	t.Parallel()

	led := newLedger(t)
	require.NoError(t, led.RecordBatch([]ledger.BatchFile{
		{Filename: "001.sigl", Content: []byte("original")},
	}))

	t.Run("matching content passes", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, led.ValidateIntegrity(map[string][]byte{"001.sigl": []byte("original")}))
	})

	t.Run("missing file fails", func(t *testing.T) {
		t.Parallel()

		err := led.ValidateIntegrity(map[string][]byte{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("modified file fails with both hashes", func(t *testing.T) {
		t.Parallel()

		err := led.ValidateIntegrity(map[string][]byte{"001.sigl": []byte("tampered")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "modified")

		var fe *fault.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, fault.Integrity, fe.Kind)
		assert.Equal(t, ledger.ComputeHash([]byte("original")), fe.Expected)
		assert.Equal(t, ledger.ComputeHash([]byte("tampered")), fe.Actual)
	})
}

func TestLastBatchEntries(t *testing.T) {
	t.Parallel()

	led := newLedger(t)
	require.NoError(t, led.RecordBatch([]ledger.BatchFile{{Filename: "001.sigl", Content: []byte("a")}}))
	require.NoError(t, led.RecordBatch([]ledger.BatchFile{
		{Filename: "002.sigl", Content: []byte("b")},
		{Filename: "003.sigl", Content: []byte("c")},
	}))

	entries, err := led.LastBatchEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Reverse append order, the order a rollback must use.
	assert.Equal(t, "003.sigl", entries[0].Filename)
	assert.Equal(t, "002.sigl", entries[1].Filename)
}

func TestRollbackLastBatch(t *testing.T) {
	t.Parallel()

	t.Run("record then rollback restores the prior state", func(t *testing.T) {
		t.Parallel()

		led := newLedger(t)
		require.NoError(t, led.RecordBatch([]ledger.BatchFile{{Filename: "001.sigl", Content: []byte("a")}}))

		before, err := led.Entries()
		require.NoError(t, err)

		require.NoError(t, led.RecordBatch([]ledger.BatchFile{
			{Filename: "002.sigl", Content: []byte("b")},
			{Filename: "003.sigl", Content: []byte("c")},
		}))

		require.NoError(t, led.RollbackLastBatch())

		after, err := led.Entries()
		require.NoError(t, err)
		assert.Equal(t, before, after)

		batch, err := led.CurrentBatch()
		require.NoError(t, err)
		assert.Equal(t, 1, batch)
	})

	t.Run("rollback of an empty ledger is a no-op", func(t *testing.T) {
		t.Parallel()

		led := newLedger(t)
		require.NoError(t, led.RollbackLastBatch())

		batch, err := led.CurrentBatch()
		require.NoError(t, err)
		assert.Zero(t, batch)
	})
}

func TestVerifyWritable(t *testing.T) {
	t.Parallel()

	led := newLedger(t)
	require.NoError(t, led.VerifyWritable())
}
