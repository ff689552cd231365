// Package lockfile prevents two bot processes from sharing one state
// directory. Two instances attached to the same WhatsApp session store would
// both answer customers and corrupt each other's conversations, so startup
// takes an exclusive flock that the kernel releases automatically when the
// process exits, cleanly or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "orderbot.lock"

// Lock is an acquired exclusive lock on a state directory.
type Lock struct {
	file *os.File
	path string
}

// LockError reports a lock held by another process.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("another order bot instance holds %s (%s)", e.LockPath, e.Holder)
	}
	return fmt.Sprintf("another order bot instance holds %s", e.LockPath)
}

func (e *LockError) Unwrap() error { return e.Cause }

// Acquire takes an exclusive non-blocking lock on the state directory,
// creating the directory if needed. On conflict the returned error names the
// holding process when its PID can still be read from the lock file.
func Acquire(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	lockPath := filepath.Join(stateDir, LockFileName)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder := readHolder(file)
		file.Close()
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	if err := file.Truncate(0); err == nil {
		fmt.Fprintf(file, "pid=%d\n", os.Getpid())
		file.Sync()
	}

	slog.Debug("State directory lock acquired", "path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath}, nil
}

// Release drops the lock and removes the lock file. Safe to call once; the
// kernel would release the flock at process exit anyway.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	os.Remove(l.path)
	slog.Debug("State directory lock released", "path", l.path)
}

// readHolder best-effort reads the "pid=N" line written by the holder.
func readHolder(file *os.File) string {
	buf := make([]byte, 64)
	n, err := file.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf[:n]))
}
