package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOperationsTotal   = "scmsvn.operations.total"
	metricOperationDuration = "scmsvn.operation.duration.seconds"
	metricBlameFilesTotal   = "scmsvn.blame.files.total"

	attrOp      = "op"
	attrStatus  = "status"
	attrOutcome = "outcome"
)

// Per-file blame outcomes.
const (
	BlameOutcomeBlamed      = "blamed"
	BlameOutcomeUnversioned = "skipped_unversioned"
	BlameOutcomeModified    = "skipped_modified"
	BlameOutcomeFailed      = "failed"
)

// durationBucketBoundaries covers 5ms to 10m: single status calls up to blame
// batches over large working copies.
var durationBucketBoundaries = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// ScmMetrics holds the instruments of the scm operations.
type ScmMetrics struct {
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	blameFilesTotal   metric.Int64Counter
}

// NewScmMetrics creates the instruments from mt.
func NewScmMetrics(mt metric.Meter) (*ScmMetrics, error) {
	b := newMetricBuilder(mt)

	m := &ScmMetrics{
		operationsTotal:   b.counter(metricOperationsTotal, "SCM operations by op and status", "{operation}"),
		operationDuration: b.histogram(metricOperationDuration, "SCM operation duration in seconds", "s", durationBucketBoundaries...),
		blameFilesTotal:   b.counter(metricBlameFilesTotal, "Files handled by blame batches by outcome", "{file}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return m, nil
}

// RecordOperation records one finished operation. Safe on a nil receiver.
func (m *ScmMetrics) RecordOperation(ctx context.Context, op, status string, d time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	m.operationsTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordBlamed counts one file of a blame batch. Safe on a nil receiver.
func (m *ScmMetrics) RecordBlamed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}

	m.blameFilesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}
