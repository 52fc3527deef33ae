package integration

import (
	"context"
	"time"
)

// ERPClient reads and mutates product and inventory records in the ERP.
// Authenticate must succeed before any other call.
type ERPClient interface {
	Authenticate(ctx context.Context) error
	FetchProducts(ctx context.Context, since *time.Time) ([]ProductRecord, error)
	FindProductBySKU(ctx context.Context, sku string) (*ProductRecord, error)
	// AdjustStock returns errors only for transport failures; business
	// failures come back as AdjustResult{OK: false}.
	AdjustStock(ctx context.Context, productID int64, quantity int, locationID *int64) (AdjustResult, error)
}

// CommerceResponse is a decoded commerce platform response
type CommerceResponse struct {
	Code int
	Body Node
	Raw  []byte
}

// IsSuccess reports a 2xx status
func (r *CommerceResponse) IsSuccess() bool {
	return r != nil && r.Code >= 200 && r.Code < 300
}

// CommerceClient reads and patches commerce platform resources.
type CommerceClient interface {
	Get(ctx context.Context, path string) (*CommerceResponse, error)
	Patch(ctx context.Context, path string, payload map[string]any) (*CommerceResponse, error)
}

// SkuCache stores SKU → commerce ID mappings. Get reports found=false for
// unknown keys; freshness is judged by the caller.
type SkuCache interface {
	Get(ctx context.Context, sku string) (CacheEntry, bool, error)
	Put(ctx context.Context, entry CacheEntry) error
}

// AuditSink receives the rows of a finished pipeline run.
type AuditSink interface {
	Record(ctx context.Context, batch AuditBatch) error
}

// SyncStateStore persists the last successful sync time.
type SyncStateStore interface {
	LastSync(ctx context.Context) (time.Time, bool, error)
	SaveLastSync(ctx context.Context, at time.Time) error
}
