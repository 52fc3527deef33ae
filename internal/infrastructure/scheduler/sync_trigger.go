package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// SyncJob runs one sync pass. The context carries a request-scoped logger.
type SyncJob func(ctx context.Context) error

// SyncTriggerConfig holds configuration for the periodic trigger
type SyncTriggerConfig struct {
	// Interval between runs
	Interval time.Duration

	// RunOnStart fires once immediately after Start
	RunOnStart bool
}

// Validate checks the trigger configuration
func (c SyncTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// SyncTrigger fires a sync job on a fixed interval. Runs happen one at a
// time on the loop goroutine; time.Ticker drops ticks that arrive while a
// run is still going.
type SyncTrigger struct {
	config SyncTriggerConfig
	job    SyncJob
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	runs      int
	lastErr   error
}

// NewSyncTrigger creates a new trigger
func NewSyncTrigger(config SyncTriggerConfig, job SyncJob, log *zap.Logger) (*SyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job is required", ErrInvalidConfig)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncTrigger{config: config, job: job, logger: log}, nil
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight run
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runs returns how many runs have completed and the last run's error
func (t *SyncTrigger) Runs() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs, t.lastErr
}

func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.fire(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(ctx)
		}
	}
}

// fire runs the job once under a fresh request id
func (t *SyncTrigger) fire(ctx context.Context) {
	requestID := uuid.NewString()
	runCtx, runLogger := logger.WithRequestID(ctx, t.logger, requestID)

	start := time.Now()
	err := t.safeRun(runCtx)

	t.mu.Lock()
	t.runs++
	t.lastErr = err
	t.mu.Unlock()

	if err != nil {
		runLogger.Error("Scheduled sync failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	runLogger.Info("Scheduled sync finished", zap.Duration("duration", time.Since(start)))
}

func (t *SyncTrigger) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled sync panicked: %v", r)
		}
	}()
	return t.job(ctx)
}
