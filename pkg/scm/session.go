package scm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/scmsvn/pkg/observability"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

const tracerName = "github.com/Sumatoshi-tech/scmsvn/pkg/scm"

// Operation outcomes recorded on spans and metrics.
const (
	statusOK      = "ok"
	statusEmpty   = "empty"
	statusUnknown = "unknown"
	statusError   = "error"
)

var (
	// ErrNoSessions is returned when a component has no SessionFactory.
	ErrNoSessions = errors.New("scm: no session factory configured")
	// ErrForeignURL is returned when a working copy URL is not below its repository root.
	ErrForeignURL = errors.New("scm: url outside repository root")
)

// SessionFactory opens a client session. Every operation opens one session
// and closes it before returning.
type SessionFactory func(ctx context.Context) (svnlib.Client, error)

// CLISessions opens sessions backed by the svn binary.
func CLISessions(runner svnlib.Runner, auth svnlib.Auth) SessionFactory {
	return func(context.Context) (svnlib.Client, error) {
		return svnlib.NewCLIClient(runner, auth)
	}
}

// Config holds the collaborators shared by all components.
type Config struct {
	Sessions SessionFactory
	// Workers bounds concurrent blame tasks. Zero means runtime.NumCPU()+1.
	Workers int
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.ScmMetrics
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() + 1
	}

	return c
}

// withSession runs fn with a fresh session. Close errors are logged and never
// replace the result of fn.
func withSession[T any](ctx context.Context, cfg Config, fn func(svnlib.Client) (T, error)) (T, error) {
	var zero T

	if cfg.Sessions == nil {
		return zero, ErrNoSessions
	}

	client, err := cfg.Sessions(ctx)
	if err != nil {
		return zero, fmt.Errorf("open svn session: %w", err)
	}

	defer func() {
		closeErr := client.Close()
		if closeErr != nil {
			cfg.Logger.WarnContext(ctx, "failed to close svn session", "error", closeErr)
		}
	}()

	return fn(client)
}

// operation wraps one exposed call in a span and records its metrics.
type operation struct {
	name  string
	cfg   Config
	ctx   context.Context
	span  trace.Span
	start time.Time
}

func startOperation(ctx context.Context, cfg Config, name, path string) (context.Context, *operation) {
	ctx, span := cfg.Tracer.Start(ctx, "scm."+name, trace.WithAttributes(attribute.String("scm.path", path)))

	return ctx, &operation{name: name, cfg: cfg, ctx: ctx, span: span, start: time.Now()}
}

// end closes the span. status is one of ok, empty, unknown or error.
func (o *operation) end(status string, err error) {
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}

	o.span.SetAttributes(attribute.String("scm.status", status))
	o.span.End()
	o.cfg.Metrics.RecordOperation(o.ctx, o.name, status, time.Since(o.start))
}
