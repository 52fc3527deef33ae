package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// MeterName names instruments produced by the sync pipelines
const MeterName = "catalogsync"

// Metric attribute keys
const (
	MetricAttrFlow    = attribute.Key("flow")
	MetricAttrAction  = attribute.Key("action")
	MetricAttrSummary = attribute.Key("summary")
	MetricAttrDryRun  = attribute.Key("dryrun")
)

// SyncMetrics counts processed items and finished runs
type SyncMetrics struct {
	items    metric.Int64Counter
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewSyncMetrics creates instruments on meter. A nil meter uses the global provider.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	items, err := meter.Int64Counter("catalogsync.items",
		metric.WithDescription("Items processed per terminal action"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create items counter: %w", err)
	}
	runs, err := meter.Int64Counter("catalogsync.runs",
		metric.WithDescription("Finished pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	duration, err := meter.Float64Histogram("catalogsync.run.duration",
		metric.WithDescription("Pipeline run duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &SyncMetrics{items: items, runs: runs, duration: duration}, nil
}

// RecordRun adds one run and its per-action item counts
func (m *SyncMetrics) RecordRun(ctx context.Context, batch integration.AuditBatch, summary string, elapsed time.Duration) {
	if m == nil {
		return
	}
	base := []attribute.KeyValue{
		MetricAttrFlow.String(batch.Flow.String()),
		MetricAttrDryRun.Bool(batch.DryRun),
	}

	for action, n := range batch.Counts() {
		if n == 0 {
			continue
		}
		attrs := append([]attribute.KeyValue{MetricAttrAction.String(action.String())}, base...)
		m.items.Add(ctx, int64(n), metric.WithAttributes(attrs...))
	}

	runAttrs := append([]attribute.KeyValue{MetricAttrSummary.String(summary)}, base...)
	m.runs.Add(ctx, 1, metric.WithAttributes(runAttrs...))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(base...))
}
