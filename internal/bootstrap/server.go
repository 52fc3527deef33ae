package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/lock"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/scheduler"
	"github.com/erp/catalogsync/internal/interfaces/http/handler"
	"github.com/erp/catalogsync/internal/interfaces/http/router"
)

// Version is reported by /healthz
var Version = "dev"

// Engine builds the webhook and audit HTTP surface
func (a *App) Engine() *gin.Engine {
	if a.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	system := handler.NewSystemHandler(a.Config.App.Name, Version)
	if a.Redis != nil {
		system.AddCheck("redis", handler.PingerFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}))
	}
	if a.Database != nil {
		system.AddCheck("database", handler.PingerFunc(func(context.Context) error {
			return a.Database.Ping()
		}))
	}

	cfg := router.Config{
		Logger:      a.Logger,
		HookToken:   a.Config.Webhook.Token,
		MaxBodySize: a.Config.HTTP.MaxBodySize,
		System:      system,
		Webhook:     handler.NewWebhookHandler(a.Pipeline, a.Config.Sync.DryRun),
	}
	if a.History != nil {
		cfg.Audit = handler.NewAuditHistoryHandler(a.History)
	}
	return router.NewEngine(cfg)
}

// ScheduledJob returns the periodic stock sync used in serve mode. A run
// skipped because another one holds the lock is not an error.
func (a *App) ScheduledJob() scheduler.SyncJob {
	return func(ctx context.Context) error {
		summary, err := a.Runner.Run(ctx, appintegration.RunRequest{
			Flow:  integration.FlowStock,
			Range: a.Config.Sync.DefaultRange,
		})
		if errors.Is(err, lock.ErrLockHeld) {
			logger.L(ctx).Info("Scheduled sync skipped, lock held")
			return nil
		}
		if err != nil {
			return err
		}
		logger.L(ctx).Info("Scheduled sync finished",
			zap.String("summary", summary.Summary),
			zap.Int("count", summary.Count),
			zap.Int("updated", summary.Updated()),
		)
		return nil
	}
}

// Serve runs the HTTP server and, when enabled, the periodic trigger until
// ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort("", a.Config.HTTP.Port),
		Handler:      a.Engine(),
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}

	var trigger *scheduler.SyncTrigger
	if a.Config.Scheduler.Enabled {
		t, err := scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
			Interval:   a.Config.Scheduler.Interval,
			RunOnStart: true,
		}, a.ScheduledJob(), a.Logger)
		if err != nil {
			return err
		}
		if err := t.Start(ctx); err != nil {
			return err
		}
		trigger = t
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			a.Logger.Warn("Scheduler stop failed", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}
