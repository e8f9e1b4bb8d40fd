package ledger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/ledger"
)

func lockPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "ledger.json.lock")
}

// writeLockFile plants a lock file as another holder would have left it.
func writeLockFile(t *testing.T, path string, pid int, hostname, acquiredAt string) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"pid":        pid,
		"hostname":   hostname,
		"lockId":     "00000000-0000-0000-0000-000000000000",
		"acquiredAt": acquiredAt,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o644))
}

func TestFileLock_acquireAndRelease(t *testing.T) {
	t.Parallel()

	path := lockPath(t)
	lock := ledger.NewFileLock(path)

	require.NoError(t, lock.Acquire())

	// The lock file documents its holder.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal(data, &info))
	assert.EqualValues(t, os.Getpid(), info["pid"])
	assert.NotEmpty(t, info["lockId"])
	assert.NotEmpty(t, info["hostname"])
	assert.NotEmpty(t, info["acquiredAt"])

	require.NoError(t, lock.Release())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileLock_contention(t *testing.T) {
	t.Parallel()

	path := lockPath(t)

	first := ledger.NewFileLock(path)
	require.NoError(t, first.Acquire())

	defer first.Release() //nolint:errcheck // test cleanup

	second := ledger.NewFileLock(path,
		ledger.WithAcquireTimeout(300*time.Millisecond),
		ledger.WithRetryDelay(50*time.Millisecond),
	)

	err := second.Acquire()
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Integrity))
	assert.Contains(t, err.Error(), "held by pid")
}

func TestFileLock_mutualExclusion(t *testing.T) {
	t.Parallel()

	path := lockPath(t)

	const workers = 8

	var (
		mu      sync.Mutex
		holders int
		maxHeld int
		wg      sync.WaitGroup
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			lock := ledger.NewFileLock(path,
				ledger.WithAcquireTimeout(5*time.Second),
				ledger.WithRetryDelay(10*time.Millisecond),
			)

			if err := lock.Acquire(); err != nil {
				return // timed out under contention; exclusion still holds
			}

			mu.Lock()
			holders++
			if holders > maxHeld {
				maxHeld = holders
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()

			_ = lock.Release()
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, maxHeld, "two acquirers held the lock at once")
}

func TestFileLock_staleSameHostDeadPid(t *testing.T) {
	t.Parallel()

	path := lockPath(t)

	hostname, err := os.Hostname()
	require.NoError(t, err)

	// A pid far beyond pid_max cannot be alive; the record is old enough
	// to be considered stale.
	writeLockFile(t, path, 1<<30, hostname,
		time.Now().Add(-time.Hour).UTC().Format(time.RFC3339))

	lock := ledger.NewFileLock(path,
		ledger.WithAcquireTimeout(2*time.Second),
		ledger.WithStaleAfter(time.Minute),
	)

	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())
}

func TestFileLock_neverStealsFresh(t *testing.T) {
	t.Parallel()

	path := lockPath(t)

	hostname, err := os.Hostname()
	require.NoError(t, err)

	// Dead pid, but the record is fresh: not stale yet.
	writeLockFile(t, path, 1<<30, hostname, time.Now().UTC().Format(time.RFC3339))

	lock := ledger.NewFileLock(path,
		ledger.WithAcquireTimeout(200*time.Millisecond),
		ledger.WithRetryDelay(50*time.Millisecond),
		ledger.WithStaleAfter(time.Hour),
	)

	require.Error(t, lock.Acquire())
}

func TestFileLock_neverStealsRemoteHost(t *testing.T) {
	t.Parallel()

	path := lockPath(t)

	// Old record and dead pid, but from another host: liveness cannot be
	// disproven, so the lock is honored.
	writeLockFile(t, path, 1<<30, "some-other-host",
		time.Now().Add(-24*time.Hour).UTC().Format(time.RFC3339))

	lock := ledger.NewFileLock(path,
		ledger.WithAcquireTimeout(200*time.Millisecond),
		ledger.WithRetryDelay(50*time.Millisecond),
		ledger.WithStaleAfter(time.Minute),
	)

	err := lock.Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some-other-host")
}

func TestFileLock_corruptedTimestamp(t *testing.T) {
	t.Parallel()

	path := lockPath(t)

	hostname, err := os.Hostname()
	require.NoError(t, err)

	writeLockFile(t, path, os.Getpid(), hostname, "not-a-timestamp")

	lock := ledger.NewFileLock(path, ledger.WithAcquireTimeout(200*time.Millisecond))

	acquireErr := lock.Acquire()
	require.Error(t, acquireErr)
	assert.True(t, fault.IsKind(acquireErr, fault.Integrity))
	assert.Contains(t, acquireErr.Error(), "corrupted timestamp")
}

func TestFileLock_forceUnlock(t *testing.T) {
	t.Parallel()

	path := lockPath(t)

	other := ledger.NewFileLock(path)
	require.NoError(t, other.Acquire())

	mine := ledger.NewFileLock(path)
	require.NoError(t, mine.ForceUnlock())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
