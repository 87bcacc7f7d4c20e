package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/scmsvn/pkg/observability"
)

func newFilteredProvider(exporter *tracetest.InMemoryExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}

func TestAttributeFilter_AllowsKnownKeys(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := newFilteredProvider(exporter, nil)

	_, span := tp.Tracer("test").Start(context.Background(), "scm.blame")
	span.SetAttributes(
		attribute.String("scm.path", "/wc/trunk"),
		attribute.String("scm.status", "ok"),
		attribute.Int("svn.revision", 42),
		attribute.String("error.type", "timeout"),
		attribute.String("cli.command", "blame"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.Equal(t, "/wc/trunk", attrs["scm.path"])
	assert.Equal(t, "ok", attrs["scm.status"])
	assert.Equal(t, int64(42), attrs["svn.revision"])
	assert.Equal(t, "timeout", attrs["error.type"])
	assert.Equal(t, "blame", attrs["cli.command"])
}

func TestAttributeFilter_BlocksCredentials(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := newFilteredProvider(exporter, nil)

	_, span := tp.Tracer("test").Start(context.Background(), "scm.fork_point")
	span.SetAttributes(
		attribute.String("svn.password", "hunter2"),
		attribute.String("svn.passphrase", "pp"),
		attribute.String("svn.private_key", "/home/u/.ssh/id"),
		attribute.String("scm.Token", "abc"),
		attribute.String("user.email", "alice@example.com"),
		attribute.String("scm.path", "/wc"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.NotContains(t, attrs, "svn.password")
	assert.NotContains(t, attrs, "svn.passphrase")
	assert.NotContains(t, attrs, "svn.private_key")
	assert.NotContains(t, attrs, "scm.Token")
	assert.NotContains(t, attrs, "user.email")
	assert.Equal(t, "/wc", attrs["scm.path"])
}

func TestAttributeFilter_WarnsOnBlockedKey(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	tp := newFilteredProvider(exporter, logger)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attribute.String("svn.password", "val"))
	span.End()

	assert.Contains(t, buf.String(), "svn.password")
	assert.Contains(t, buf.String(), "blocked")
}

// spanAttrMap converts a span's attributes into a map for easy assertion.
func spanAttrMap(s tracetest.SpanStub) map[string]any {
	m := make(map[string]any, len(s.Attributes))
	for _, a := range s.Attributes {
		m[string(a.Key)] = a.Value.AsInterface()
	}

	return m
}
