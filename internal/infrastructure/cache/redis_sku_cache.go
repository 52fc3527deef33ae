package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisSkuCache shares SKU → ID mappings between hosts. Entries carry their
// own timestamp and never expire in Redis; staleness is judged by the resolver.
type RedisSkuCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSkuCache creates a cache with an existing client
func NewRedisSkuCache(client *redis.Client, keyPrefix string) *RedisSkuCache {
	if keyPrefix == "" {
		keyPrefix = "catalogsync:sku:"
	}
	return &RedisSkuCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisSkuCache) key(sku string) string {
	return c.keyPrefix + integration.NormalizeSKU(sku)
}

// Get implements integration.SkuCache
func (c *RedisSkuCache) Get(ctx context.Context, sku string) (integration.CacheEntry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(sku)).Bytes()
	if errors.Is(err, redis.Nil) {
		return integration.CacheEntry{}, false, nil
	}
	if err != nil {
		return integration.CacheEntry{}, false, fmt.Errorf("cache: redis get: %w", err)
	}
	entry, err := decodeEntry(sku, raw)
	if err != nil {
		return integration.CacheEntry{}, false, err
	}
	return entry, true, nil
}

// Put implements integration.SkuCache
func (c *RedisSkuCache) Put(ctx context.Context, entry integration.CacheEntry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(entry.SKU), raw, 0).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

func encodeEntry(entry integration.CacheEntry) ([]byte, error) {
	raw, err := json.Marshal(skuRecord{ID: entry.ExternalID, TS: entry.CachedAt.Unix()})
	if err != nil {
		return nil, fmt.Errorf("cache: encode entry: %w", err)
	}
	return raw, nil
}

func decodeEntry(sku string, raw []byte) (integration.CacheEntry, error) {
	var rec skuRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return integration.CacheEntry{}, fmt.Errorf("cache: decode entry: %w", err)
	}
	return integration.CacheEntry{
		SKU:        integration.NormalizeSKU(sku),
		ExternalID: rec.ID,
		CachedAt:   time.Unix(rec.TS, 0),
	}, nil
}

var _ integration.SkuCache = (*RedisSkuCache)(nil)
