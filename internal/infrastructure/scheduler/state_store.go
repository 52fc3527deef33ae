package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// FileSyncStateStore keeps the last successful sync time as a single
// ISO8601 line.
type FileSyncStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileSyncStateStore creates a store at path
func NewFileSyncStateStore(path string) *FileSyncStateStore {
	return &FileSyncStateStore{path: path}
}

// Path returns the state file location
func (s *FileSyncStateStore) Path() string { return s.path }

// LastSync returns found=false when no sync has been recorded yet
func (s *FileSyncStateStore) LastSync(_ context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last-sync state: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return time.Time{}, false, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidState, raw)
	}
	return at, true, nil
}

// SaveLastSync atomically replaces the stored time
func (s *FileSyncStateStore) SaveLastSync(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".last_sync-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(at.UTC().Format(time.RFC3339) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

var _ integration.SyncStateStore = (*FileSyncStateStore)(nil)
