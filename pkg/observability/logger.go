package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"

	redactedValue = "<redacted>"
)

// TracingHandler is an [slog.Handler] that adds the trace_id and span_id of
// the active span and the service metadata to every record. String values
// equal to or containing a registered secret are redacted.
type TracingHandler struct {
	inner   slog.Handler
	secrets []string
}

// NewTracingHandler wraps inner. Service attributes are attached up front so
// they stay at the top level under WithGroup.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// WithSecrets returns a handler that redacts the given values. Empty values are ignored.
func (th *TracingHandler) WithSecrets(secrets ...string) *TracingHandler {
	merged := append([]string(nil), th.secrets...)

	for _, s := range secrets {
		if s != "" {
			merged = append(merged, s)
		}
	}

	return &TracingHandler{inner: th.inner, secrets: merged}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds the span context and redacts secrets, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if len(th.secrets) > 0 {
		record = th.redactRecord(record)
	}

	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a handler with additional attributes on the inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(th.secrets) > 0 {
		for i := range attrs {
			attrs[i] = th.redactAttr(attrs[i])
		}
	}

	return &TracingHandler{inner: th.inner.WithAttrs(attrs), secrets: th.secrets}
}

// WithGroup returns a handler with a group prefix on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name), secrets: th.secrets}
}

func (th *TracingHandler) redactRecord(record slog.Record) slog.Record {
	out := slog.NewRecord(record.Time, record.Level, th.redact(record.Message), record.PC)

	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(th.redactAttr(a))

		return true
	})

	return out
}

func (th *TracingHandler) redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, th.redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]any, len(group))

		for i, ga := range group {
			redacted[i] = th.redactAttr(ga)
		}

		return slog.Group(a.Key, redacted...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, th.redact(err.Error()))
		}
	}

	return a
}

func (th *TracingHandler) redact(s string) string {
	for _, secret := range th.secrets {
		s = strings.ReplaceAll(s, secret, redactedValue)
	}

	return s
}
