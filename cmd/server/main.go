// server runs the webhook endpoints and, when SCHEDULER_ENABLED is set, the
// periodic stock sync. It is equivalent to `syncctl serve`.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/bootstrap"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Dir:    cfg.Log.Dir,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting catalogsync server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.HTTP.Port),
		zap.Bool("dry_run", cfg.Sync.DryRun),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		os.Exit(1)
	}

	serveErr := app.Serve(ctx)
	if err := app.Close(context.Background()); err != nil {
		log.Warn("Shutdown incomplete", zap.Error(err))
	}
	if serveErr != nil {
		log.Error("Server stopped", zap.Error(serveErr))
		os.Exit(1)
	}
	log.Info("Server exited")
}
