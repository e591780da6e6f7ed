package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/cells/internal/config"
	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
	"github.com/vango-dev/cells/pkg/observe"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	metrics    bool
	trace      bool
	noColor    bool
}

// env holds what every command shares: the resolved configuration,
// the logger, and the instrumentation installed as the cell default.
type env struct {
	flags    globalFlags
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	tracer   *sdktrace.TracerProvider
}

func (rt *env) start(cmd *cobra.Command) error {
	cfg, err := rt.loadConfig()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.Log.Level = rt.flags.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = rt.flags.logFormat
	}
	if f.Changed("metrics") {
		cfg.Metrics.Enabled = rt.flags.metrics
	}
	if f.Changed("trace") {
		cfg.Tracing.Enabled = rt.flags.trace
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg

	rt.logger = newLogger(cmd.ErrOrStderr(), cfg)
	cell.SetDefaultDiagnostics(cell.LogDiagnostics(rt.logger))

	var insts []cell.Instrumentation
	if cfg.Metrics.Enabled {
		rt.registry = prometheus.NewRegistry()
		insts = append(insts, observe.Prometheus(
			observe.WithNamespace(cfg.Metrics.Namespace),
			observe.WithSubsystem(cfg.Metrics.Subsystem),
			observe.WithRegistry(rt.registry),
		))
	}
	if cfg.Tracing.Enabled {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cmd.OutOrStdout()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return errors.FromError(err, "C051")
		}
		rt.tracer = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		insts = append(insts, observe.Tracing(
			observe.WithTracerName(cfg.Tracing.TracerName),
			observe.WithTracerProvider(rt.tracer),
		))
	}
	cell.SetDefaultInstrumentation(observe.Multi(insts...))

	rt.logger.Debug("cellctl started",
		"command", cmd.Name(),
		"config", cfg.Path(),
		"metrics", cfg.Metrics.Enabled,
		"trace", cfg.Tracing.Enabled,
	)
	return nil
}

func (rt *env) loadConfig() (*config.Config, error) {
	if rt.flags.configPath != "" {
		return config.LoadFile(rt.flags.configPath)
	}
	return config.LoadOptional(".")
}

func (rt *env) stop(cmd *cobra.Command) error {
	defer cell.SetDefaultDiagnostics(nil)
	defer cell.SetDefaultInstrumentation(nil)

	if rt.tracer != nil {
		if err := rt.tracer.Shutdown(context.Background()); err != nil {
			return errors.FromError(err, "C051")
		}
	}
	if rt.registry != nil {
		if err := writeMetrics(cmd.OutOrStdout(), rt.registry); err != nil {
			return errors.FromError(err, "C051")
		}
	}
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// printError writes err to w with its code, detail and hint. With JSON
// logging the error is written as one JSON object instead.
func (rt *env) printError(w io.Writer, err error) {
	errors.SetColors(!rt.flags.noColor)

	e := errors.FromError(err, "C050")
	if rt.jsonOutput() {
		fmt.Fprintln(w, e.FormatJSON())
		return
	}
	errors.Fprint(w, e)
}

func (rt *env) jsonOutput() bool {
	if rt.flags.logFormat != "" {
		return rt.flags.logFormat == "json"
	}
	return rt.cfg != nil && rt.cfg.Log.Format == "json"
}
