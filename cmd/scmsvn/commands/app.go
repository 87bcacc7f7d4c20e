package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scmsvn/pkg/config"
	"github.com/Sumatoshi-tech/scmsvn/pkg/observability"
	"github.com/Sumatoshi-tech/scmsvn/pkg/scm"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
	"github.com/Sumatoshi-tech/scmsvn/pkg/version"
)

const (
	metricsPath         = "/metrics"
	metricsReadTimeout  = 5 * time.Second
	metricsShutdownWait = 2 * time.Second
)

// app is the per-invocation wiring of config, telemetry and the provider.
type app struct {
	provider  *scm.Provider
	providers observability.Providers
	logger    *slog.Logger
	out       *printer
	metrics   *http.Server
}

func startApp(cmd *cobra.Command, deps Deps, opts *globalOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(version.Version)
	obsCfg.LogOutput = cmd.ErrOrStderr()

	if opts.verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewScmMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = scm.CLISessions(svnlib.NewExecRunner(cfg.SVN.Binary), cfg.Auth())
	}

	a := &app{
		provider: scm.NewProvider(scm.Config{
			Sessions: sessions,
			Workers:  cfg.Blame.Workers,
			Logger:   providers.Logger,
			Tracer:   providers.Tracer,
			Metrics:  metrics,
		}),
		providers: providers,
		logger:    providers.Logger,
		out:       newPrinter(deps.Stdout, opts.format),
	}

	if cfg.Telemetry.MetricsAddr != "" && providers.MetricsHandler != nil {
		err = a.serveMetrics(cfg.Telemetry.MetricsAddr)
		if err != nil {
			return nil, errors.Join(err, providers.Shutdown(context.Background()))
		}
	}

	return a, nil
}

// serveMetrics exposes the Prometheus handler for the lifetime of the command.
func (a *app) serveMetrics(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, a.providers.MetricsHandler)

	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: metricsReadTimeout}

	go func() {
		serveErr := a.metrics.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	a.logger.Debug("serving metrics", "addr", listener.Addr().String(), "path", metricsPath)

	return nil
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownWait)
		defer cancel()

		err := a.metrics.Shutdown(ctx)
		if err != nil {
			a.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	err := a.providers.Shutdown(context.Background())
	if err != nil {
		a.logger.Warn("observability shutdown failed", "error", err)
	}
}

// run starts the app, calls fn and tears the app down.
func run(cmd *cobra.Command, deps Deps, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := startApp(cmd, deps, opts)
	if err != nil {
		return err
	}

	defer a.close()

	ctx, span := a.providers.Tracer.Start(cmd.Context(), "cli."+cmd.Name())
	defer span.End()

	return fn(ctx, a)
}
