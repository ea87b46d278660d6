package embed

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock serialises model downloads into a shared cache directory
// across processes.
type FileLock struct {
	path string
	lock *flock.Flock
	held bool
}

// NewFileLock returns an unlocked lock on dir/.download.lock.
func NewFileLock(dir string) *FileLock {
	path := filepath.Join(dir, ".download.lock")
	return &FileLock{path: path, lock: flock.New(path)}
}

func (l *FileLock) prepare() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	return nil
}

// Lock blocks until the lock is held.
func (l *FileLock) Lock() error {
	if err := l.prepare(); err != nil {
		return err
	}
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("acquire %s: %w", l.path, err)
	}
	l.held = true
	return nil
}

// TryLock reports whether the lock was acquired without waiting.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.prepare(); err != nil {
		return false, err
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.path, err)
	}
	l.held = ok
	return ok, nil
}

// Unlock releases the lock; unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release %s: %w", l.path, err)
	}
	return nil
}

func (l *FileLock) Path() string { return l.path }
