package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/bootstrap"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/lock"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "syncctl",
		Usage:   "Sync ERP products and stock to the shop",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before the environment",
			},
		},
		Commands: []*cli.Command{
			syncCommand(integration.FlowStock, "Push ERP stock levels to the shop"),
			syncCommand(integration.FlowProducts, "Push ERP prices and quantities to the shop"),
			saleCommand(),
			resolveCommand(),
			historyCommand(),
			serveCommand(),
		},
	}
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "dryrun",
			Usage: "compute and record changes without writing",
		},
		&cli.StringFlag{
			Name:  "range",
			Value: appintegration.DefaultRange.String(),
			Usage: "cutoff window as <N><h|d|m>, used with --force or when no last sync is recorded",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "ignore the last sync timestamp and use --range",
		},
	}
}

func syncCommand(flow integration.Flow, usage string) *cli.Command {
	return &cli.Command{
		Name:  flow.String(),
		Usage: usage,
		Flags: syncFlags(),
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, app *bootstrap.App) error {
				rng := c.String("range")
				if !c.IsSet("range") {
					rng = app.Config.Sync.DefaultRange
				}
				summary, err := app.Runner.Run(ctx, appintegration.RunRequest{
					Flow:   flow,
					DryRun: c.Bool("dryrun"),
					Range:  rng,
					Force:  c.Bool("force"),
				})
				if errors.Is(err, lock.ErrLockHeld) {
					fmt.Fprintln(c.App.Writer, lockedLine(flow))
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, summaryLine(summary))
				return nil
			})
		},
	}
}

func saleCommand() *cli.Command {
	return &cli.Command{
		Name:  "sale",
		Usage: "Decrement ERP stock for a sold SKU",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sku", Required: true, Usage: "sold SKU"},
			&cli.IntFlag{Name: "qty", Required: true, Usage: "sold quantity"},
			&cli.BoolFlag{Name: "dryrun", Usage: "look up without writing"},
		},
		Action: func(c *cli.Context) error {
			if c.Int("qty") < 0 {
				return fmt.Errorf("qty must not be negative")
			}
			return withApp(c, func(ctx context.Context, app *bootstrap.App) error {
				summary, err := app.Pipeline.RunSale(ctx,
					[]appintegration.SaleItem{{SKU: c.String("sku"), Quantity: c.Int("qty")}},
					appintegration.RunOptions{DryRun: app.Runner.DryRun(c.Bool("dryrun"))},
				)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, summaryLine(summary))
				return nil
			})
		},
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Look up the shop product ID for a SKU",
		ArgsUsage: "SKU",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "refresh", Usage: "bypass the cache"},
		},
		Action: func(c *cli.Context) error {
			sku := c.Args().First()
			if sku == "" {
				return fmt.Errorf("a SKU is required")
			}
			return withApp(c, func(ctx context.Context, app *bootstrap.App) error {
				fmt.Fprintln(c.App.Writer, resolutionLine(app.Resolver.Resolve(ctx, sku, c.Bool("refresh"))))
				return nil
			})
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent audit runs, or rows for one SKU",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sku", Usage: "show rows for this SKU"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum entries"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, app *bootstrap.App) error {
				if app.History == nil {
					return fmt.Errorf("no audit database configured (AUDIT_DB_DSN)")
				}
				if sku := c.String("sku"); sku != "" {
					rows, err := app.History.RowsForSKU(ctx, sku, c.Int("limit"))
					if err != nil {
						return err
					}
					printRows(c.App.Writer, rows)
					return nil
				}
				result, err := app.History.FindRuns(ctx, persistence.AuditRunFilter{}, 1, c.Int("limit"))
				if err != nil {
					return err
				}
				printRuns(c.App.Writer, result.Runs)
				return nil
			})
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the webhook server and the periodic stock sync",
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, app *bootstrap.App) error {
				return app.Serve(ctx)
			})
		},
	}
}

// withRunID tags ctx with a fresh request id so each invocation gets its
// own log correlation and audit artifact name.
func withRunID(ctx context.Context, log *zap.Logger) context.Context {
	ctx, _ = logger.WithRequestID(ctx, log, uuid.NewString())
	return ctx
}

// withApp loads configuration, wires the application and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func withApp(c *cli.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := config.LoadWithEnvFile(c.String("env-file"))
	if err != nil {
		return err
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Dir:    cfg.Log.Dir,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = withRunID(ctx, log)

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	return fn(ctx, app)
}
