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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/validation"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/AleutianAI/tolstack/services/stackup/store"
	"github.com/AleutianAI/tolstack/services/stackup/tui"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved analysis runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(func(db *store.DB) error {
				runs, err := db.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				renderRuns(a, cmd, runs)
				return nil
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")

	var asJSON, browse bool
	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := validation.SanitizeRunID(args[0])
			if err != nil {
				return err
			}
			return a.withHistory(func(db *store.DB) error {
				r, err := db.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				switch {
				case asJSON:
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(r)
				case browse:
					return tui.Browse(r, cmd.InOrStdin(), cmd.OutOrStdout())
				}
				report.Render(a.printer(cmd), r)
				return nil
			})
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	show.Flags().BoolVar(&browse, "tui", false, "browse the report interactively")
	show.MarkFlagsMutuallyExclusive("json", "tui")

	del := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := validation.SanitizeRunID(args[0])
			if err != nil {
				return err
			}
			return a.withHistory(func(db *store.DB) error {
				if err := db.Delete(cmd.Context(), id); err != nil {
					return err
				}
				a.printer(cmd).Success(fmt.Sprintf("Deleted run %s", id))
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

// withHistory opens the store for the duration of fn.
func (a *app) withHistory(fn func(db *store.DB) error) error {
	db, err := a.openHistory()
	if err != nil {
		return err
	}
	if db == nil {
		return errHistoryDisabled
	}
	defer db.Close()

	err = fn(db)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w (see tolstack history list)", err)
	}
	return err
}

func renderRuns(a *app, cmd *cobra.Command, runs []report.Summary) {
	p := a.printer(cmd)
	if len(runs) == 0 {
		p.Info("No saved runs.")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, s := range runs {
		rows = append(rows, []string{
			s.RunID,
			s.CreatedAt.Local().Format(time.DateTime),
			s.Project,
			s.Source,
			strconv.Itoa(s.Stacks),
			strconv.Itoa(s.Failures),
			dim.NumN(s.WorstRejectPPM, 2),
		})
	}
	p.Table([]string{"Run", "Created", "Project", "Source", "Stacks", "Failures", "Worst PPM"}, rows)
}
