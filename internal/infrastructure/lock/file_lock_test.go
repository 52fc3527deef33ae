package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var", "sync.lock")
	l := NewFileLock(path, time.Hour)
	ctx := context.Background()

	lease, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lease.Release(ctx))
	assert.NoFileExists(t, path)
	require.NoError(t, lease.Release(ctx), "release is idempotent")

	lease, err = l.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestFileLock_ReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	require.NoError(t, os.WriteFile(path, []byte("123 old"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	l := NewFileLock(path, time.Hour)
	lease, err := l.Acquire(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "123 old", string(data))
	require.NoError(t, lease.Release(context.Background()))
}

func TestFileLock_FreshForeignLockIsHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	require.NoError(t, os.WriteFile(path, []byte("999 now"), 0o644))

	_, err := NewFileLock(path, time.Hour).Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestFileLock_ReleaseKeepsSuccessorLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	l := NewFileLock(path, time.Hour)

	lease, err := l.Acquire(context.Background())
	require.NoError(t, err)

	// another run reclaimed the lock after ours went stale
	require.NoError(t, os.WriteFile(path, []byte("777 successor"), 0o644))

	require.NoError(t, lease.Release(context.Background()))
	assert.FileExists(t, path)
}
