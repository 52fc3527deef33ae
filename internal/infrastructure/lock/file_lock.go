package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLock is a lock file with a TTL. A lock file older than the TTL is
// considered abandoned and is reclaimed by the next run.
type FileLock struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewFileLock creates a file lock at path
func NewFileLock(path string, ttl time.Duration) *FileLock {
	return &FileLock{path: path, ttl: ttl, now: time.Now}
}

// Acquire implements Locker
func (l *FileLock) Acquire(_ context.Context) (Lease, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("lock: create dir: %w", err)
	}

	token := fmt.Sprintf("%d %s", os.Getpid(), l.now().UTC().Format(time.RFC3339Nano))

	for attempt := 0; attempt < 2; attempt++ {
		err := l.create(token)
		if err == nil {
			return &fileLease{path: l.path, token: token}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("lock: create lock file: %w", err)
		}

		info, statErr := os.Stat(l.path)
		if errors.Is(statErr, fs.ErrNotExist) {
			continue
		}
		if statErr != nil {
			return nil, fmt.Errorf("lock: stat lock file: %w", statErr)
		}
		if l.now().Sub(info.ModTime()) < l.ttl {
			return nil, ErrLockHeld
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("lock: reclaim stale lock: %w", err)
		}
	}
	return nil, ErrLockHeld
}

func (l *FileLock) create(token string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(token); err != nil {
		f.Close()
		os.Remove(l.path)
		return err
	}
	return f.Close()
}

type fileLease struct {
	path  string
	token string
	once  sync.Once
	err   error
}

// Release removes the lock file only if it still carries this lease's token,
// so a run whose lock was reclaimed does not delete its successor's lock.
func (f *fileLease) Release(_ context.Context) error {
	f.once.Do(func() {
		data, err := os.ReadFile(f.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			f.err = fmt.Errorf("lock: read lock file: %w", err)
			return
		}
		if string(data) != f.token {
			return
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.err = fmt.Errorf("lock: remove lock file: %w", err)
		}
	})
	return f.err
}

var _ Locker = (*FileLock)(nil)
