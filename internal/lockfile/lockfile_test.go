package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		t.Errorf("expected lock file to exist: %v", err)
	}

	lock.Release()

	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("expected lock file removed after release")
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected state directory created: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	lock, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	lock.Release()
	lock.Release() // must not panic

	var nilLock *Lock
	nilLock.Release() // nil receiver is a no-op
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	first.Release()

	second, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	second.Release()
}

func TestLockErrorUnwraps(t *testing.T) {
	cause := errors.New("resource temporarily unavailable")
	err := &LockError{LockPath: "/tmp/orderbot.lock", Holder: "pid=42", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected LockError to unwrap its cause")
	}
	if got := err.Error(); got == "" || !errors.As(error(err), new(*LockError)) {
		t.Errorf("unexpected error rendering: %q", got)
	}
}
