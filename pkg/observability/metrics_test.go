package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/scmsvn/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.ScmMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	metrics, err := observability.NewScmMetrics(meter)
	require.NoError(t, err)

	return metrics, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumByAttr(t *testing.T, m *metricdata.Metrics, key string) map[string]int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	out := make(map[string]int64)

	for _, dp := range sum.DataPoints {
		v, found := dp.Attributes.Value(attribute.Key(key))
		require.True(t, found)

		out[v.AsString()] += dp.Value
	}

	return out
}

func TestScmMetrics_RecordOperation(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)
	ctx := context.Background()

	metrics.RecordOperation(ctx, "fork_point", "ok", 100*time.Millisecond)
	metrics.RecordOperation(ctx, "fork_point", "empty", 50*time.Millisecond)
	metrics.RecordOperation(ctx, "changed_lines", "error", time.Second)

	rm := collectMetrics(t, reader)

	total := findMetric(rm, "scmsvn.operations.total")
	require.NotNil(t, total, "scmsvn.operations.total metric not found")
	assert.Equal(t, map[string]int64{"ok": 1, "empty": 1, "error": 1}, sumByAttr(t, total, "status"))
	assert.Equal(t, map[string]int64{"fork_point": 2, "changed_lines": 1}, sumByAttr(t, total, "op"))

	duration := findMetric(rm, "scmsvn.operation.duration.seconds")
	require.NotNil(t, duration, "scmsvn.operation.duration.seconds metric not found")

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}

	assert.Equal(t, uint64(3), count)
}

func TestScmMetrics_RecordBlamed(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)
	ctx := context.Background()

	metrics.RecordBlamed(ctx, observability.BlameOutcomeBlamed)
	metrics.RecordBlamed(ctx, observability.BlameOutcomeBlamed)
	metrics.RecordBlamed(ctx, observability.BlameOutcomeModified)
	metrics.RecordBlamed(ctx, observability.BlameOutcomeUnversioned)

	rm := collectMetrics(t, reader)

	files := findMetric(rm, "scmsvn.blame.files.total")
	require.NotNil(t, files, "scmsvn.blame.files.total metric not found")
	assert.Equal(t, map[string]int64{
		"blamed":              2,
		"skipped_modified":    1,
		"skipped_unversioned": 1,
	}, sumByAttr(t, files, "outcome"))
}

func TestScmMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *observability.ScmMetrics

	assert.NotPanics(t, func() {
		metrics.RecordOperation(context.Background(), "blame", "ok", time.Millisecond)
		metrics.RecordBlamed(context.Background(), observability.BlameOutcomeFailed)
	})
}
