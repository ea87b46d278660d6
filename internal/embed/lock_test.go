package embed

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_LockCreatesNestedDirectory(t *testing.T) {
	// Given: a cache directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "models", "cache")
	lock := NewFileLock(dir)

	// When: locking
	require.NoError(t, lock.Lock())
	defer func() { _ = lock.Unlock() }()

	// Then: the lock file exists
	_, err := os.Stat(lock.Path())
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".download.lock"), lock.Path())
}

func TestFileLock_UnlockIsIdempotent(t *testing.T) {
	lock := NewFileLock(t.TempDir())

	require.NoError(t, lock.Unlock())
	require.NoError(t, lock.Lock())
	require.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}

func TestFileLock_TryLockFailsWhileHeld(t *testing.T) {
	// Given: one holder of the lock
	dir := t.TempDir()
	first := NewFileLock(dir)
	require.NoError(t, first.Lock())

	// When: a second lock tries without waiting
	second := NewFileLock(dir)
	ok, err := second.TryLock()

	// Then: it is refused until the first is released
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock())
	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestFileLock_SerialisesHolders(t *testing.T) {
	dir := t.TempDir()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := NewFileLock(dir)
			if err := lock.Lock(); err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			_ = lock.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}
