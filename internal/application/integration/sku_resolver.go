package integration

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// DefaultSkuCacheTTL is how long a resolved SKU stays fresh
const DefaultSkuCacheTTL = time.Hour

// SkuResolver maps SKUs to commerce product IDs through a TTL cache and the
// commerce search endpoint.
type SkuResolver struct {
	client     integration.CommerceClient
	cache      integration.SkuCache
	ttl        time.Duration
	searchPath string
	now        func() time.Time
}

// SkuResolverOption configures a SkuResolver
type SkuResolverOption func(*SkuResolver)

// WithCacheTTL overrides the cache freshness window
func WithCacheTTL(ttl time.Duration) SkuResolverOption {
	return func(r *SkuResolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSearchPath overrides the primary search path
func WithSearchPath(path string) SkuResolverOption {
	return func(r *SkuResolver) {
		if path != "" {
			r.searchPath = path
		}
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) SkuResolverOption {
	return func(r *SkuResolver) { r.now = now }
}

// NewSkuResolver creates a resolver. cache may be nil, in which case every
// call goes to the commerce API.
func NewSkuResolver(client integration.CommerceClient, cache integration.SkuCache, opts ...SkuResolverOption) *SkuResolver {
	r := &SkuResolver{
		client:     client,
		cache:      cache,
		ttl:        DefaultSkuCacheTTL,
		searchPath: "/products",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the commerce ID for sku. Unknown SKUs produce a NotFound
// resolution, never an error.
func (r *SkuResolver) Resolve(ctx context.Context, sku string, forceRefresh bool) integration.Resolution {
	key := integration.NormalizeSKU(sku)
	if key == "" {
		return integration.NotFound(key)
	}
	log := logger.L(ctx).With(zap.String("sku", key))

	if !forceRefresh && r.cache != nil {
		entry, found, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("SKU cache read failed", zap.Error(err))
		case found && entry.FreshAt(r.now(), r.ttl):
			log.Debug("SKU resolved from cache", zap.Int64("id", entry.ExternalID))
			return integration.Resolved(key, entry.ExternalID, integration.ResolutionSourceCache)
		}
	}

	for _, path := range r.searchPaths(key) {
		id, ok := r.search(ctx, path)
		if !ok {
			continue
		}
		r.remember(ctx, key, id)
		log.Debug("SKU resolved from API", zap.Int64("id", id), zap.String("path", path))
		return integration.Resolved(key, id, integration.ResolutionSourceAPI)
	}

	log.Info("SKU not found on commerce platform")
	return integration.NotFound(key)
}

// searchPaths lists the primary filter path followed by the legacy one
func (r *SkuResolver) searchPaths(sku string) []string {
	escaped := url.QueryEscape(sku)
	sep := "?"
	if strings.Contains(r.searchPath, "?") {
		sep = "&"
	}
	return []string{
		fmt.Sprintf("%s%sfilters[reference]=%s&limit=1", r.searchPath, sep, escaped),
		fmt.Sprintf("/products/?filter[reference]=[%s]&display=[id]", escaped),
	}
}

func (r *SkuResolver) search(ctx context.Context, path string) (int64, bool) {
	resp, err := r.client.Get(ctx, path)
	if err != nil {
		logger.L(ctx).Warn("SKU search failed", zap.String("path", path), zap.Error(err))
		return 0, false
	}
	if !resp.IsSuccess() {
		logger.L(ctx).Debug("SKU search rejected", zap.String("path", path), zap.Int("code", resp.Code))
		return 0, false
	}
	return resp.Body.FindID("id")
}

func (r *SkuResolver) remember(ctx context.Context, sku string, id int64) {
	if r.cache == nil {
		return
	}
	entry := integration.CacheEntry{SKU: sku, ExternalID: id, CachedAt: r.now()}
	if err := r.cache.Put(ctx, entry); err != nil {
		logger.L(ctx).Warn("SKU cache write failed", zap.String("sku", sku), zap.Error(err))
	}
}
