// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/tolstack/pkg/calc"
	"github.com/AleutianAI/tolstack/pkg/logging"
	"github.com/AleutianAI/tolstack/pkg/ux"
	"github.com/AleutianAI/tolstack/services/stackup/config"
	"github.com/AleutianAI/tolstack/services/stackup/export"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/AleutianAI/tolstack/services/stackup/stackfile"
	"github.com/AleutianAI/tolstack/services/stackup/store"
	"github.com/AleutianAI/tolstack/services/stackup/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

// errHistoryDisabled is returned by history commands when the store is off.
var errHistoryDisabled = errors.New("history is disabled (set store.enabled in the config)")

// app holds the state shared by every command of one invocation.
type app struct {
	configPath string
	output     string

	cfg config.Config
	log *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tolstack",
		Short: "Tolerance stack-up analysis",
		Long: `tolstack evaluates one-dimensional tolerance stacks with the closed,
worst case, RSS, modified RSS and six sigma methods, and checks each
result against its requirements.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.log.Close()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "output mode: rich, plain or machine (default: detect)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	a.log = logging.New(lc)
	a.log.SetDefault()
	return nil
}

func (a *app) printer(cmd *cobra.Command) *ux.Printer {
	mode := a.output
	if mode == "" {
		mode = a.cfg.Output.Mode
	}
	return ux.NewPrinter(cmd.OutOrStdout(), ux.DetectMode(mode, os.Stdout))
}

func (a *app) buildOptions() stackfile.BuildOptions {
	return stackfile.BuildOptions{
		ProcessSigma: a.cfg.Analysis.ProcessSigma,
		SixSigmaAt:   a.cfg.Analysis.SixSigmaAt,
		Logger:       a.log.Slog(),
	}
}

// runOptions builds report options. names overrides the configured
// method filter when non-empty.
func (a *app) runOptions(names []string, metrics *telemetry.Metrics) (report.Options, error) {
	if len(names) == 0 {
		names = a.cfg.Analysis.Methods
	}
	methods := make([]calc.Method, 0, len(names))
	for _, n := range names {
		m, err := calc.ParseMethod(n)
		if err != nil {
			return report.Options{}, err
		}
		methods = append(methods, m)
	}
	return report.Options{
		Methods: methods,
		Seed:    a.cfg.Analysis.Seed,
		Metrics: metrics,
		Logger:  a.log.Slog(),
	}, nil
}

// analyzeFile loads, builds and analyzes one stack file.
func (a *app) analyzeFile(ctx context.Context, path string, opts report.Options) (*report.Report, error) {
	f, err := stackfile.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := stackfile.Build(f, a.buildOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	opts.Source = path
	return report.Run(ctx, p, opts)
}

// openHistory opens the run store. It returns nil, nil when history is
// disabled.
func (a *app) openHistory() (*store.DB, error) {
	if !a.cfg.Store.Enabled {
		return nil, nil
	}
	db, err := store.Open(store.FromConfig(a.cfg.Store, a.log.Slog()))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return db, nil
}

// openExport opens the configured report sinks. The result may be empty.
func (a *app) openExport(ctx context.Context) (export.Multi, error) {
	sinks, err := export.FromConfig(ctx, a.cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	return sinks, nil
}

// observability is the telemetry of one command.
type observability struct {
	metrics  *telemetry.Metrics
	registry *prometheus.Registry
	shutdown func(context.Context) error
}

// startTelemetry initializes tracing from the config. Metrics are only
// collected when withRegistry is set.
func (a *app) startTelemetry(ctx context.Context, cmd *cobra.Command, withRegistry bool) (*observability, error) {
	var reg *prometheus.Registry
	if withRegistry {
		reg = prometheus.NewRegistry()
	}
	tc := telemetry.FromTracing(a.cfg.Tracing, reg)
	tc.ServiceVersion = version
	tc.Writer = cmd.ErrOrStderr()

	shutdown, err := telemetry.Init(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	o := &observability{registry: reg, shutdown: shutdown}
	if reg != nil {
		if o.metrics, err = telemetry.NewMetrics(otel.Meter(telemetry.ScopeName)); err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("create metrics: %w", err)
		}
	}
	return o, nil
}

func (o *observability) close(logger *slog.Logger) {
	if err := o.shutdown(context.Background()); err != nil {
		logger.Warn("telemetry shutdown failed", "error", err)
	}
}
