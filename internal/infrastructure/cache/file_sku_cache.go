package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// CacheFileName is the snapshot file created inside the cache directory
const CacheFileName = "sku_to_id.json"

// skuRecord is the persisted form of one cache entry
type skuRecord struct {
	ID int64 `json:"id"`
	TS int64 `json:"ts"`
}

// FileSkuCache persists SKU → ID mappings as a single JSON object. Reads load
// the whole file; writes replace it through a temp file and rename, so a
// concurrent reader never sees a truncated snapshot.
type FileSkuCache struct {
	path string
	mu   sync.Mutex
}

// NewFileSkuCache creates the cache directory if needed
func NewFileSkuCache(dir string) (*FileSkuCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &FileSkuCache{path: filepath.Join(dir, CacheFileName)}, nil
}

// Path returns the snapshot location
func (c *FileSkuCache) Path() string { return c.path }

func (c *FileSkuCache) load() (map[string]skuRecord, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]skuRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read snapshot: %w", err)
	}
	records := map[string]skuRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cache: decode snapshot: %w", err)
	}
	return records, nil
}

// Get implements integration.SkuCache
func (c *FileSkuCache) Get(_ context.Context, sku string) (integration.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return integration.CacheEntry{}, false, err
	}
	key := integration.NormalizeSKU(sku)
	rec, ok := records[key]
	if !ok {
		return integration.CacheEntry{}, false, nil
	}
	return integration.CacheEntry{SKU: key, ExternalID: rec.ID, CachedAt: time.Unix(rec.TS, 0)}, true, nil
}

// Put implements integration.SkuCache. An unreadable snapshot is replaced.
func (c *FileSkuCache) Put(_ context.Context, entry integration.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		records = map[string]skuRecord{}
	}
	records[integration.NormalizeSKU(entry.SKU)] = skuRecord{ID: entry.ExternalID, TS: entry.CachedAt.Unix()}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	return writeFileAtomic(c.path, data)
}

// writeFileAtomic writes data next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: replace snapshot: %w", err)
	}
	return nil
}

var _ integration.SkuCache = (*FileSkuCache)(nil)
