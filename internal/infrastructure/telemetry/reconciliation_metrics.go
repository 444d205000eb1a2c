package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrOperation      = attribute.Key("operation")
	AttrAdjustmentKind = attribute.Key("adjustment_kind")
	AttrMovementKind   = attribute.Key("movement_kind")
	AttrOutcome        = attribute.Key("outcome")
	AttrErrorKind      = attribute.Key("error_kind")
)

// CommitDurationBuckets are the commit latency histogram bounds, in seconds
var CommitDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// ReconciliationMetrics counts the writes that matter for stock accuracy.
// A nil *ReconciliationMetrics is valid and records nothing.
type ReconciliationMetrics struct {
	adjustmentWrites   metric.Int64Counter
	adjustmentsApplied metric.Int64Counter
	commits            metric.Int64Counter
	commitDuration     metric.Float64Histogram
	movementsRecorded  metric.Int64Counter
	movementsFolded    metric.Int64Counter
	merges             metric.Int64Counter
}

type counterSpec struct {
	target      *metric.Int64Counter
	name        string
	description string
	unit        string
}

// NewReconciliationMetrics registers the instruments on meter
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	m := &ReconciliationMetrics{}
	counters := []counterSpec{
		{&m.adjustmentWrites, "stockcount_adjustment_writes_total", "Pending adjustment ledger writes", "{write}"},
		{&m.adjustmentsApplied, "stockcount_adjustments_applied_total", "Adjustments applied to on-hand stock by commits", "{adjustment}"},
		{&m.commits, "stockcount_commits_total", "Commit attempts by outcome", "{commit}"},
		{&m.movementsRecorded, "stockcount_movements_recorded_total", "Post-cutoff movements appended to the ledger", "{movement}"},
		{&m.movementsFolded, "stockcount_movements_folded_total", "Post-cutoff movements folded into line snapshots", "{movement}"},
		{&m.merges, "stockcount_merges_total", "Line merges by outcome", "{merge}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}

	h, err := meter.Float64Histogram("stockcount_commit_duration_seconds",
		metric.WithDescription("Time spent committing a count's adjustments"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(CommitDurationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create commit duration histogram: %w", err)
	}
	m.commitDuration = h
	return m, nil
}

// RecordAdjustmentWrite counts a create, amend, delete or reject
func (m *ReconciliationMetrics) RecordAdjustmentWrite(ctx context.Context, operation, kind string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrOperation.String(operation)}
	if kind != "" {
		attrs = append(attrs, AttrAdjustmentKind.String(kind))
	}
	m.adjustmentWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCommit counts a commit attempt and how many adjustments it applied
func (m *ReconciliationMetrics) RecordCommit(ctx context.Context, applied int, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := metric.WithAttributes(outcomeAttrs(err)...)
	m.commits.Add(ctx, 1, outcome)
	m.commitDuration.Record(ctx, d.Seconds(), outcome)
	if err == nil && applied > 0 {
		m.adjustmentsApplied.Add(ctx, int64(applied))
	}
}

// RecordMovement counts an appended movement
func (m *ReconciliationMetrics) RecordMovement(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.movementsRecorded.Add(ctx, 1, metric.WithAttributes(AttrMovementKind.String(kind)))
}

// RecordMerge counts a line merge and the movements it folded
func (m *ReconciliationMetrics) RecordMerge(ctx context.Context, folded int, err error) {
	if m == nil {
		return
	}
	m.merges.Add(ctx, 1, metric.WithAttributes(outcomeAttrs(err)...))
	if err == nil && folded > 0 {
		m.movementsFolded.Add(ctx, int64(folded))
	}
}

func outcomeAttrs(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{AttrOutcome.String("success")}
	}
	kind := "unknown"
	var de *shared.DomainError
	if errors.As(err, &de) {
		kind = string(de.Kind)
	}
	return []attribute.KeyValue{AttrOutcome.String("failure"), AttrErrorKind.String(kind)}
}
