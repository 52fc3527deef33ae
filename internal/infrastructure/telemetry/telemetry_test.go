package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.stock",
		telemetry.AttrFlow.String("stock"),
		telemetry.AttrDryRun.Bool(true),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.stock", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("sync.flow", "stock"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("sync.dryrun", true))
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.products")
	telemetry.RecordError(span, errors.New("odoo down"))
	telemetry.RecordError(span, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "odoo down", spans[0].Status().Description)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, telemetry.Sampler(1).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(0).Description(), "root:AlwaysOffSampler")
	assert.Contains(t, telemetry.Sampler(0.25).Description(), "root:TraceIDRatioBased")
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := telemetry.NewProvider(context.Background(), telemetry.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Sum[int64]{}
}

func TestSyncMetrics_RecordRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := telemetry.NewSyncMetrics(mp.Meter(telemetry.MeterName))
	require.NoError(t, err)

	batch := integration.AuditBatch{
		Flow: integration.FlowStock,
		Rows: []integration.AuditRow{
			{SKU: "A1", Action: integration.AuditActionUpdated},
			{SKU: "B2", Action: integration.AuditActionUpdated},
			{SKU: "C3", Action: integration.AuditActionSkipped},
		},
	}
	m.RecordRun(context.Background(), batch, "done", 1500*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	items := sumFor(t, rm, "catalogsync.items")
	var total int64
	for _, dp := range items.DataPoints {
		total += dp.Value
		if v, ok := dp.Attributes.Value(telemetry.MetricAttrAction); ok && v.AsString() == "updated" {
			assert.Equal(t, int64(2), dp.Value)
		}
	}
	assert.Equal(t, int64(3), total)

	runs := sumFor(t, rm, "catalogsync.runs")
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, int64(1), runs.DataPoints[0].Value)
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.SyncMetrics
	assert.NotPanics(t, func() {
		m.RecordRun(context.Background(), integration.AuditBatch{}, "done", time.Second)
	})
}
