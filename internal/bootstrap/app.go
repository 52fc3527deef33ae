// Package bootstrap assembles the sync pipeline and its backends from
// configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/audit"
	"github.com/erp/catalogsync/internal/infrastructure/cache"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/ecommerce"
	"github.com/erp/catalogsync/internal/infrastructure/erp"
	"github.com/erp/catalogsync/internal/infrastructure/lock"
	"github.com/erp/catalogsync/internal/infrastructure/messaging"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/erp/catalogsync/internal/infrastructure/scheduler"
	"github.com/erp/catalogsync/internal/infrastructure/storage"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

const lockKey = "catalogsync:lock"

// App is a fully wired sync process
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	ERP       *erp.OdooClient
	Commerce  *ecommerce.PrestaShopClient
	Resolver  *appintegration.SkuResolver
	Pipeline  *appintegration.SyncPipeline
	Runner    *appintegration.SyncRunner
	Artifacts *audit.ArtifactSink
	// History is nil unless an audit database is configured
	History   *persistence.GormAuditHistoryRepository
	Database  *persistence.Database
	Redis     *redis.Client
	Telemetry *telemetry.Provider

	closers []func(ctx context.Context) error
}

// New wires every component named in cfg. Remote backends (Redis, the
// audit database, Kafka, S3) are only touched when configured.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: log}

	if err := app.init(ctx); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		Endpoint:      cfg.Telemetry.Endpoint,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
		Insecure:      cfg.Telemetry.Insecure,
		ServiceName:   cfg.App.Name,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry = provider
	a.closers = append(a.closers, provider.Shutdown)

	if cfg.Cache.Backend == "redis" || cfg.Lock.Backend == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.Redis = client
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	}

	skuCache, err := a.skuCache()
	if err != nil {
		return err
	}

	odoo, err := erp.NewOdooClient(&erp.OdooConfig{
		DB:       cfg.Odoo.DB,
		User:     cfg.Odoo.User,
		Password: cfg.Odoo.Password,
	}, erp.NewXMLRPCCaller(cfg.Odoo.BaseURL, cfg.Odoo.Timeout))
	if err != nil {
		return err
	}
	a.ERP = odoo

	prestaCfg := ecommerce.NewPrestaShopConfig(cfg.Presta.URL, cfg.Presta.Key)
	prestaCfg.AuthScheme = ecommerce.AuthScheme(cfg.Presta.AuthScheme)
	prestaCfg.UseXML = cfg.Presta.UseXML
	prestaCfg.SearchPath = cfg.Presta.SearchPath
	prestaCfg.TimeoutSeconds = int(cfg.Presta.Timeout / time.Second)
	presta, err := ecommerce.NewPrestaShopClient(prestaCfg, ecommerce.NewKeyAuthenticator(prestaCfg.AuthScheme, cfg.Presta.Key, nil))
	if err != nil {
		return err
	}
	a.Commerce = presta

	a.Resolver = appintegration.NewSkuResolver(presta, skuCache,
		appintegration.WithCacheTTL(cfg.Cache.TTL),
		appintegration.WithSearchPath(presta.SearchPath()),
	)
	adapter := appintegration.NewReconciliationAdapter(a.Resolver, presta, odoo)

	sink, err := a.auditSink(ctx)
	if err != nil {
		return err
	}

	metrics, err := telemetry.NewSyncMetrics(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	a.Pipeline = appintegration.NewSyncPipeline(odoo, adapter, sink, appintegration.WithMetrics(metrics))
	a.Runner = appintegration.NewSyncRunner(a.Pipeline, a.locker(), scheduler.NewFileSyncStateStore(cfg.Sync.StateFile), cfg.Sync.DryRun)
	return nil
}

func (a *App) skuCache() (integration.SkuCache, error) {
	if a.Config.Cache.Backend == "redis" {
		return cache.NewRedisSkuCache(a.Redis, ""), nil
	}
	return cache.NewFileSkuCache(a.Config.Cache.Dir)
}

func (a *App) locker() lock.Locker {
	if a.Config.Lock.Backend == "redis" {
		return lock.NewRedisLock(a.Redis, lockKey, a.Config.Lock.TTL)
	}
	return lock.NewFileLock(a.Config.Lock.Path, a.Config.Lock.TTL)
}

// auditSink fans a finished batch out to the artifact writer and, when
// configured, the history database and the Kafka topic.
func (a *App) auditSink(ctx context.Context) (integration.AuditSink, error) {
	cfg := a.Config

	a.Artifacts = audit.NewArtifactSink(cfg.Audit.Dir, audit.Format(cfg.Audit.Format), cfg.Sync.CSVAlways)
	if cfg.Storage.Enabled() {
		store, err := storage.NewS3ArtifactStore(&cfg.Storage, storage.WithLogger(a.Logger))
		if err != nil {
			return nil, fmt.Errorf("artifact storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			a.Logger.Warn("Artifact bucket check failed", zap.Error(err))
		}
		a.Artifacts.WithUploader(store)
	}
	sinks := audit.NewMultiSink(a.Artifacts)

	if cfg.Audit.DBDSN != "" {
		db, err := persistence.NewDatabase(persistence.DatabaseConfig{
			Driver:   cfg.Audit.DBDriver,
			DSN:      cfg.Audit.DBDSN,
			LogLevel: cfg.Log.Level,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("audit database: %w", err)
		}
		a.Database = db
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		a.History = persistence.NewGormAuditHistoryRepository(db.DB)
		sinks.Add(a.History)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := messaging.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		publisher := messaging.NewKafkaAuditPublisher(writer)
		a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })
		sinks.Add(publisher)
	}
	return sinks, nil
}

// Close releases backends in reverse order of creation
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
