package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of count spans and metrics
const ScopeName = "stockcount"

// Span attribute keys
const (
	AttrCountID      = attribute.Key("stockcount.count_id")
	AttrProductID    = attribute.Key("stockcount.product_id")
	AttrAdjustmentID = attribute.Key("stockcount.adjustment_id")
	AttrAppliedCount = attribute.Key("stockcount.applied_count")
	AttrMergedLines  = attribute.Key("stockcount.merged_lines")
	AttrFailedLines  = attribute.Key("stockcount.failed_lines")
)

// StartCountSpan starts an internal span named "stockcount.<operation>"
// tagged with the count it works on. The caller must End it.
func StartCountSpan(ctx context.Context, operation string, countID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrCountID.String(countID.String()))
	return start(ctx, operation, attrs)
}

// StartLineSpan is StartCountSpan for operations scoped to one count line.
func StartLineSpan(ctx context.Context, operation string, countID, productID uuid.UUID) (context.Context, trace.Span) {
	return StartCountSpan(ctx, operation, countID, AttrProductID.String(productID.String()))
}

// StartAdjustmentSpan starts a span for an operation addressed by adjustment id
func StartAdjustmentSpan(ctx context.Context, operation string, adjustmentID uuid.UUID) (context.Context, trace.Span) {
	return start(ctx, operation, []attribute.KeyValue{AttrAdjustmentID.String(adjustmentID.String())})
}

func start(ctx context.Context, operation string, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(ScopeName).Start(ctx, ScopeName+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}
