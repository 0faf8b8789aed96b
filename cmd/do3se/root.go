package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/do3se-driver/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/do3se-driver/internal/adapter/kafka"
	"github.com/couchcryptid/do3se-driver/internal/config"
	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/fields"
	"github.com/couchcryptid/do3se-driver/internal/kernel"
	"github.com/couchcryptid/do3se-driver/internal/observability"
	"github.com/couchcryptid/do3se-driver/internal/pipeline"
)

// app carries the process-wide dependencies shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	tracker *observability.Tracker

	debug       bool
	metricsAddr string
	workers     int
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "do3se",
		Short:         "Drive ozone deposition model runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve /healthz, /readyz, /status and /metrics on this address (overrides METRICS_ADDR)")
	cmd.PersistentFlags().IntVar(&a.workers, "workers", 0, "worker pool size (overrides WORKERS)")

	cmd.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newGridCmd(a),
		newPlanCmd(a),
		newExecuteCmd(a),
		newFieldsCmd(),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if a.workers > 0 {
		cfg.Workers = a.workers
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(cfg)
	a.metrics = observability.NewMetrics()
	a.tracker = observability.NewTracker()
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func (a *app) signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serve starts the HTTP endpoints when an address is configured. The
// returned function shuts the server down within the shutdown timeout.
func (a *app) serve(ready sharedobs.ReadinessChecker) func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	srv := httpadapter.NewServer(a.cfg.MetricsAddr, ready, a.tracker, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
	}
}

// sink returns the Kafka summary writer, or nil when publishing is off.
func (a *app) sink() (pipeline.Sink, func()) {
	if !a.cfg.PublishSummaries() {
		return nil, func() {}
	}
	w := kafkaadapter.NewWriter(a.cfg.KafkaBrokers, a.cfg.KafkaSummaryTopic, a.logger)
	a.logger.Info("publishing summaries", "topic", a.cfg.KafkaSummaryTopic, "brokers", a.cfg.KafkaBrokers)
	return w, func() {
		if err := w.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
}

func (a *app) pipeline(inputs []string) *pipeline.Pipeline {
	return pipeline.New(kernel.ReferenceFactory(inputs), a.logger, a.metrics)
}

// runFlags are the options shared by run, grid and plan.
type runFlags struct {
	fields    string
	inputs    string
	noHeaders bool
	gsOnly    bool
	trim      int
	set       []string
}

func (f *runFlags) register(cmd *cobra.Command, withTrim bool) {
	cmd.Flags().StringVar(&f.fields, "fields", "+default", "output fields: +default, +all or a comma-separated list")
	cmd.Flags().StringVar(&f.inputs, "inputs", "", "input fields in column order (default "+strings.Join(fields.DefaultInputs, ",")+")")
	cmd.Flags().BoolVar(&f.noHeaders, "no-headers", false, "omit the header line from output CSV")
	cmd.Flags().BoolVar(&f.gsOnly, "gs-only", false, "only write rows inside the growing season")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "override a parameter, key=value (repeatable)")
	if withTrim {
		cmd.Flags().IntVar(&f.trim, "trim", 0, "header lines to skip in input CSV")
	}
}

func (f *runFlags) options() (domain.RunOptions, error) {
	outputs, err := fields.ParseSelection(f.fields)
	if err != nil {
		return domain.RunOptions{}, err
	}
	inputs, err := fields.ParseInputs(f.inputs)
	if err != nil {
		return domain.RunOptions{}, err
	}
	overrides, err := parseOverrides(f.set)
	if err != nil {
		return domain.RunOptions{}, err
	}
	return domain.RunOptions{
		Inputs:            inputs,
		Fields:            outputs,
		Headers:           !f.noHeaders,
		GrowingSeasonOnly: f.gsOnly,
		Trim:              f.trim,
		Overrides:         overrides,
	}, nil
}

// parseOverrides turns key=value pairs into parameters. Values that parse as
// numbers or booleans keep that type.
func parseOverrides(pairs []string) (domain.Params, error) {
	p := make(domain.Params, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: want key=value", pair)
		}
		p[key] = overrideValue(strings.TrimSpace(raw))
	}
	return p, nil
}

func overrideValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
