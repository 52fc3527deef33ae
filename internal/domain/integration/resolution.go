package integration

import "time"

// ResolutionSource tells where a resolved ID came from
type ResolutionSource string

const (
	ResolutionSourceCache ResolutionSource = "cache"
	ResolutionSourceAPI   ResolutionSource = "api"
)

// Resolution is the tagged outcome of SKU → commerce ID mapping.
// A failed resolution is a value, not an error.
type Resolution struct {
	OK     bool
	ID     int64
	SKU    string
	Source ResolutionSource
	Reason string
}

// Resolved builds a successful resolution
func Resolved(sku string, id int64, source ResolutionSource) Resolution {
	return Resolution{OK: true, ID: id, SKU: sku, Source: source}
}

// NotFound builds a failed resolution
func NotFound(sku string) Resolution {
	return Resolution{OK: false, SKU: sku, Reason: ReasonNotFound}
}

// CacheEntry maps a normalized SKU to a commerce product ID
type CacheEntry struct {
	SKU        string
	ExternalID int64
	CachedAt   time.Time
}

// FreshAt reports whether the entry is still within ttl at now.
func (e CacheEntry) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt) < ttl
}
