package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/schemact/schemact/internal/fault"
)

// Default lock acquisition parameters.
const (
	DefaultAcquireTimeout = 30 * time.Second
	DefaultRetryDelay     = 100 * time.Millisecond
	DefaultStaleAfter     = 5 * time.Minute
)

// lockInfo is the JSON payload written to the lock file.
type lockInfo struct {
	PID        int    `json:"pid"`
	Hostname   string `json:"hostname"`
	LockID     string `json:"lockId"`
	AcquiredAt string `json:"acquiredAt"`
}

// FileLock guards the ledger with an atomic lock file. Acquisition links
// an exclusively-created temporary file onto the lock path; placing that
// link is the single linearization point between competing processes.
type FileLock struct {
	path       string
	timeout    time.Duration
	retryDelay time.Duration
	staleAfter time.Duration
	owned      bool
}

// LockOption configures a FileLock.
type LockOption func(*FileLock)

// WithAcquireTimeout bounds the total time spent acquiring the lock.
func WithAcquireTimeout(d time.Duration) LockOption {
	return func(l *FileLock) { l.timeout = d }
}

// WithRetryDelay sets the sleep between acquisition attempts.
func WithRetryDelay(d time.Duration) LockOption {
	return func(l *FileLock) { l.retryDelay = d }
}

// WithStaleAfter sets the age beyond which a same-host lock with a dead
// owner is considered stale.
func WithStaleAfter(d time.Duration) LockOption {
	return func(l *FileLock) { l.staleAfter = d }
}

// NewFileLock creates a lock guarding the given lock file path.
func NewFileLock(path string, opts ...LockOption) *FileLock {
	l := &FileLock{
		path:       path,
		timeout:    DefaultAcquireTimeout,
		retryDelay: DefaultRetryDelay,
		staleAfter: DefaultStaleAfter,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Acquire takes the lock, retrying until the acquire timeout elapses. On
// timeout it fails with an integrity error naming the current holder.
func (l *FileLock) Acquire() error {
	deadline := time.Now().Add(l.timeout)

	for {
		held, err := l.tryAcquire()
		if err != nil {
			return err
		}

		if held {
			l.owned = true

			return nil
		}

		if time.Now().After(deadline) {
			return l.contentionError()
		}

		time.Sleep(l.retryDelay)
	}
}

// tryAcquire makes a single acquisition attempt. It returns false without
// error when another holder is live.
func (l *FileLock) tryAcquire() (bool, error) {
	if err := l.reapStale(); err != nil {
		return false, err
	}

	if _, err := os.Stat(l.path); err == nil {
		return false, nil // live holder
	} else if !os.IsNotExist(err) {
		return false, fault.Wrap(fault.Integrity, err, "inspecting lock file %s", l.path)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := lockInfo{
		PID:        os.Getpid(),
		Hostname:   hostname,
		LockID:     uuid.NewString(),
		AcquiredAt: time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return false, fault.Wrap(fault.Integrity, err, "encoding lock file")
	}

	// Exclusive creation makes a colliding attempt on the same temp path
	// fail locally instead of corrupting the other attempt's payload.
	tmp := fmt.Sprintf("%s.%d.tmp", l.path, os.Getpid())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}

		return false, fault.Wrap(fault.Integrity, err, "creating lock temp file %s", tmp)
	}

	_, werr := f.Write(payload)

	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp)

		return false, fault.New(fault.Integrity, "writing lock temp file %s", tmp)
	}

	// Linking the temp file onto the lock path is the single linearization
	// point: unlike rename, link fails when the target already exists, so
	// a losing attempt can never replace the winner.
	linkErr := os.Link(tmp, l.path)

	os.Remove(tmp)

	if linkErr != nil {
		if os.IsExist(linkErr) {
			return false, nil
		}

		return false, fault.Wrap(fault.Integrity, linkErr, "placing lock file")
	}

	// Re-read to confirm the lock records this attempt's id.
	current, err := l.read()
	if err != nil {
		return false, err
	}

	return current != nil && current.LockID == info.LockID, nil
}

// reapStale removes the lock file when its holder is provably dead: the
// record is older than staleAfter, was taken on this host, and its pid no
// longer exists here. Locks from other hosts are always treated as live.
func (l *FileLock) reapStale() error {
	info, err := l.read()
	if err != nil || info == nil {
		return err
	}

	acquiredAt, err := time.Parse(time.RFC3339, info.AcquiredAt)
	if err != nil {
		return fault.New(fault.Integrity,
			"lock file %s has a corrupted timestamp %q", l.path, info.AcquiredAt)
	}

	if time.Since(acquiredAt) < l.staleAfter {
		return nil
	}

	hostname, herr := os.Hostname()
	if herr != nil || info.Hostname != hostname {
		return nil
	}

	if processAlive(info.PID) {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fault.Wrap(fault.Integrity, err, "removing stale lock file %s", l.path)
	}

	return nil
}

// read returns the current lock file contents, nil when absent.
func (l *FileLock) read() (*lockInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil //nolint:nilnil // nil,nil signals "no lock file"
		}

		return nil, fault.Wrap(fault.Integrity, err, "reading lock file %s", l.path)
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fault.New(fault.Integrity, "lock file %s is corrupted", l.path)
	}

	return &info, nil
}

// Release removes the lock file. Safe to call when not held.
func (l *FileLock) Release() error {
	if !l.owned {
		return nil
	}

	l.owned = false

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fault.Wrap(fault.Integrity, err, "releasing lock file %s", l.path)
	}

	return nil
}

// ForceUnlock unconditionally removes the lock file, regardless of owner.
// Operator-visible escape hatch for abandoned locks.
func (l *FileLock) ForceUnlock() error {
	l.owned = false

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fault.Wrap(fault.Integrity, err, "force-unlocking %s", l.path)
	}

	return nil
}

func (l *FileLock) contentionError() error {
	info, err := l.read()
	if err == nil && info != nil {
		return fault.New(fault.Integrity,
			"ledger lock is held by pid %d on %s (acquired %s); timed out after %s",
			info.PID, info.Hostname, info.AcquiredAt, l.timeout)
	}

	return fault.New(fault.Integrity, "ledger lock acquisition timed out after %s", l.timeout)
}

// processAlive probes a pid with signal 0. When the probe cannot disprove
// liveness (permission denied, unsupported platform), the process is
// reported alive so the lock is never stolen on guesswork.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return false
	}

	return true
}
