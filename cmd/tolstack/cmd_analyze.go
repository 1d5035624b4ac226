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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/AleutianAI/tolstack/services/stackup/telemetry"
	"github.com/AleutianAI/tolstack/services/stackup/tui"
	"github.com/spf13/cobra"
)

// errRejectLimit is returned when a requirement rejects more than --max-ppm.
var errRejectLimit = errors.New("reject rate above limit")

type analyzeFlags struct {
	json     bool
	noSave   bool
	methods  []string
	curves   int
	samples  int
	textfile string
	maxPPM   float64
	browse   bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze <stack-file>...",
		Short: "Analyze the stacks of one or more stack files",
		Long: `Analyze every stack in each file and evaluate its requirements.

Reports are saved to the run history unless --no-save is given or the
store is disabled, and sent to every exporter in the config.

Examples:
  tolstack analyze gearbox.yaml
  tolstack analyze gearbox.yaml --methods wc,rss
  tolstack analyze gearbox.yaml --json --curves 200 > report.json
  tolstack analyze gearbox.yaml --max-ppm 100`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.json, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&f.noSave, "no-save", false, "do not save the report to the run history")
	cmd.Flags().StringSliceVar(&f.methods, "methods", nil, "methods to report: closed, wc, rss, mrss, six_sigma (default: config)")
	cmd.Flags().IntVar(&f.curves, "curves", 0, "density points per plotted input (JSON only)")
	cmd.Flags().IntVar(&f.samples, "samples", 0, "random draws per plotted input (JSON only)")
	cmd.Flags().StringVar(&f.textfile, "textfile", "", "write Prometheus metrics to this file (default: config)")
	cmd.Flags().Float64Var(&f.maxPPM, "max-ppm", 0, "fail when any requirement rejects more parts per million than this")
	cmd.Flags().BoolVar(&f.browse, "tui", false, "browse the report interactively (one file only)")
	cmd.MarkFlagsMutuallyExclusive("json", "tui")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, paths []string, f analyzeFlags) error {
	if f.browse && len(paths) > 1 {
		return fmt.Errorf("--tui takes one stack file, got %d", len(paths))
	}
	ctx := cmd.Context()
	textfile := f.textfile
	if textfile == "" {
		textfile = a.cfg.Metrics.TextfilePath
	}

	obs, err := a.startTelemetry(ctx, cmd, textfile != "")
	if err != nil {
		return err
	}
	defer obs.close(a.log.Slog())

	opts, err := a.runOptions(f.methods, obs.metrics)
	if err != nil {
		return err
	}
	opts.CurvePoints = f.curves
	opts.CurveSamples = f.samples

	var history interface {
		Save(ctx context.Context, r *report.Report) error
	}
	if !f.noSave {
		db, err := a.openHistory()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
			history = db
		}
	}

	sinks, err := a.openExport(ctx)
	if err != nil {
		return err
	}
	defer sinks.Close()

	reports := make([]*report.Report, 0, len(paths))
	for _, path := range paths {
		r, err := a.analyzeFile(ctx, path, opts)
		if err != nil {
			return err
		}
		if history != nil {
			if err := history.Save(ctx, r); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
		}
		if err := sinks.Export(ctx, r); err != nil {
			a.log.Warn("failed to export run", "run_id", r.RunID, "error", err)
		}
		reports = append(reports, r)
	}

	switch {
	case f.json:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		var v any = reports
		if len(reports) == 1 {
			v = reports[0]
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	case f.browse:
		if err := tui.Browse(reports[0], cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return err
		}
	default:
		p := a.printer(cmd)
		for _, r := range reports {
			report.Render(p, r)
		}
	}

	if textfile != "" {
		if err := telemetry.WriteTextfile(textfile, obs.registry); err != nil {
			return err
		}
	}
	return checkRejects(reports, f.maxPPM)
}

// checkRejects fails when a requirement's reject rate exceeds maxPPM.
// maxPPM <= 0 disables the check.
func checkRejects(reports []*report.Report, maxPPM float64) error {
	if maxPPM <= 0 {
		return nil
	}
	for _, r := range reports {
		for _, s := range r.Stacks {
			for _, q := range s.Requirements {
				if q.OK() && q.RejectPPM > maxPPM {
					return fmt.Errorf("%w: %s / %s rejects %s PPM (limit %s)",
						errRejectLimit, s.Name, q.Name, dim.Num(q.RejectPPM), dim.Num(maxPPM))
				}
			}
		}
	}
	return nil
}
