package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names spans produced by the sync pipelines
const TracerName = "catalogsync"

// Span attribute keys
const (
	AttrFlow      = attribute.Key("sync.flow")
	AttrDryRun    = attribute.Key("sync.dryrun")
	AttrRequestID = attribute.Key("sync.request_id")
	AttrSKU       = attribute.Key("sync.sku")
	AttrAction    = attribute.Key("sync.action")
	AttrItems     = attribute.Key("sync.items")
)

// StartSpan starts an internal span on the global tracer provider.
// The caller ends the span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks the span failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
