package integration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/lock"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// DefaultRange is the cutoff window used when none or an invalid one is given
const DefaultRange = time.Hour

var rangePattern = regexp.MustCompile(`^(\d+)([hdm])$`)

// ParseRange parses "<N><h|d|m>" (hours, days, minutes). Invalid or empty
// input yields DefaultRange and ok=false.
func ParseRange(raw string) (time.Duration, bool) {
	m := rangePattern.FindStringSubmatch(raw)
	if m == nil {
		return DefaultRange, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultRange, false
	}
	unit := map[string]time.Duration{"h": time.Hour, "d": 24 * time.Hour, "m": time.Minute}[m[2]]
	return time.Duration(n) * unit, true
}

// RunRequest describes one scheduled or CLI run
type RunRequest struct {
	Flow   integration.Flow
	DryRun bool
	// Range is the cutoff window, e.g. "30m", "1h", "2d"
	Range string
	// Force ignores the persisted last-sync time
	Force bool
}

// SyncRunner wraps a pipeline run with the cross-process lock, the since
// window and last-sync bookkeeping.
type SyncRunner struct {
	pipeline    *SyncPipeline
	locker      lock.Locker
	state       integration.SyncStateStore
	forceDryRun bool
	now         func() time.Time
}

// NewSyncRunner creates a runner. forceDryRun mirrors DRY_RUN=true and wins
// over the per-run flag.
func NewSyncRunner(pipeline *SyncPipeline, locker lock.Locker, state integration.SyncStateStore, forceDryRun bool) *SyncRunner {
	return &SyncRunner{
		pipeline:    pipeline,
		locker:      locker,
		state:       state,
		forceDryRun: forceDryRun,
		now:         time.Now,
	}
}

// Pipeline exposes the wrapped pipeline
func (r *SyncRunner) Pipeline() *SyncPipeline {
	return r.pipeline
}

// DryRun resolves the effective dry-run mode for a requested value
func (r *SyncRunner) DryRun(requested bool) bool {
	return r.forceDryRun || requested
}

// Run executes one products or stock run. Lock contention returns an error
// matching lock.ErrLockHeld.
func (r *SyncRunner) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	switch req.Flow {
	case integration.FlowProducts, integration.FlowStock:
	default:
		return nil, fmt.Errorf("unsupported flow %q", req.Flow)
	}

	dryRun := r.DryRun(req.DryRun)
	log := logger.L(ctx).With(zap.String("flow", req.Flow.String()))

	if r.locker != nil {
		lease, err := r.locker.Acquire(ctx)
		if err != nil {
			if errors.Is(err, lock.ErrLockHeld) {
				log.Info("Another run is in progress, skipping")
			}
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Lock release failed", zap.Error(err))
			}
		}()
	}

	startedAt := r.now()
	since := r.since(ctx, req, startedAt)
	log.Info("Sync run starting",
		zap.Time("since", since),
		zap.Bool("dryrun", dryRun),
		zap.Bool("force", req.Force),
	)

	opts := RunOptions{DryRun: dryRun, Since: &since}
	var (
		summary *RunSummary
		err     error
	)
	if req.Flow == integration.FlowProducts {
		summary, err = r.pipeline.RunProducts(ctx, opts)
	} else {
		summary, err = r.pipeline.RunStock(ctx, nil, opts)
	}
	if err != nil {
		return nil, err
	}

	if !dryRun && r.state != nil {
		if err := r.state.SaveLastSync(ctx, startedAt); err != nil {
			log.Error("Failed to persist last-sync time", zap.Error(err))
		}
	}
	return summary, nil
}

// since picks the ERP cutoff: the persisted last-sync time unless forced or
// absent, otherwise now minus the range.
func (r *SyncRunner) since(ctx context.Context, req RunRequest, now time.Time) time.Time {
	window, ok := ParseRange(req.Range)
	if !ok && req.Range != "" {
		logger.L(ctx).Warn("Invalid range, using default", zap.String("range", req.Range), zap.Duration("default", DefaultRange))
	}
	fallback := now.Add(-window)

	if req.Force || r.state == nil {
		return fallback
	}
	last, found, err := r.state.LastSync(ctx)
	if err != nil {
		logger.L(ctx).Warn("Unreadable last-sync state, using range", zap.Error(err))
		return fallback
	}
	if !found {
		return fallback
	}
	return last
}
