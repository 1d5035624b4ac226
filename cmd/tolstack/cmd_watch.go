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
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/tolstack/pkg/ux"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/AleutianAI/tolstack/services/stackup/watch"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var methods []string
	cmd := &cobra.Command{
		Use:   "watch <stack-file>...",
		Short: "Re-analyze stack files whenever they change",
		Long: `Analyze each file once, then again every time it is saved.

Errors in a file are reported and watching continues. Runs are not saved
to the history. Stop with Ctrl-C.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args, methods)
		},
	}
	cmd.Flags().StringSliceVar(&methods, "methods", nil, "methods to report (default: config)")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, paths []string, methods []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := a.runOptions(methods, nil)
	if err != nil {
		return err
	}
	p := a.printer(cmd)

	analyze := func(ctx context.Context, changed []string) {
		for _, path := range changed {
			r, err := a.analyzeFile(ctx, path, opts)
			if err != nil {
				p.Error(err.Error())
				continue
			}
			report.Render(p, r)
		}
	}

	w, err := watch.New(paths, analyze, watch.Options{
		Debounce: a.cfg.Watch.Debounce,
		Logger:   a.log.Slog(),
	})
	if err != nil {
		return err
	}
	defer w.Close()

	analyze(ctx, w.Files())
	if p.Mode() != ux.ModeMachine {
		p.Muted("Watching for changes. Press Ctrl-C to stop.")
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
