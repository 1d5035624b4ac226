// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/requirement"
	"github.com/AleutianAI/tolstack/pkg/ux"
)

var resultHeaders = []string{"Method", dim.KeyNominal, dim.KeyTolerance, dim.KeyAbsoluteBounds, dim.KeyStdDevEff, "Note"}

var requirementHeaders = []string{
	dim.KeyName, "Method", requirement.KeyLimits, dim.KeyDistribution,
	dim.KeySkew, dim.KeyCp, dim.KeyCpk, dim.KeyYieldProbability, dim.KeyRejectPPM,
}

// Render prints r through p: an input table, a result table and a
// requirement table per stack, then any assumptions.
func Render(p *ux.Printer, r *Report) {
	p.Title(r.Project)
	if r.Description != "" {
		p.Muted(r.Description)
	}
	p.Info(fmt.Sprintf("Run: %s", r.RunID))

	for _, s := range r.Stacks {
		RenderStack(p, s)
	}

	if notes := assumptionLines(r); len(notes) > 0 {
		p.WarningBox("Assumptions", strings.Join(notes, "\n"))
	}
}

// RenderStack prints one stack: its inputs, method results and
// requirement evaluations.
func RenderStack(p *ux.Printer, s StackReport) {
	title := s.Name
	if s.Description != "" {
		title += ": " + s.Description
	}
	p.Title(title)

	if len(s.Dimensions) > 0 {
		inputs := make([][]string, len(s.Dimensions))
		for i, f := range s.Dimensions {
			inputs[i] = f.Values()
		}
		p.Table(s.Dimensions[0].Keys(), inputs)
	}

	results := make([][]string, 0, len(s.Results))
	for _, m := range s.Results {
		if !m.OK() {
			results = append(results, []string{m.Title, "", "", "", "", m.Error})
			continue
		}
		row := []string{m.Title}
		for _, key := range resultHeaders[1:5] {
			v, _ := m.Fields.Get(key)
			row = append(row, v)
		}
		results = append(results, append(row, ""))
	}
	p.Table(resultHeaders, results)

	if len(s.Requirements) == 0 {
		return
	}
	reqs := make([][]string, 0, len(s.Requirements))
	for _, q := range s.Requirements {
		if !q.OK() {
			reqs = append(reqs, []string{q.Name, string(q.Method), dim.Bounds(q.Lower, q.Upper), q.Error})
			continue
		}
		row := make([]string, 0, len(requirementHeaders))
		for _, key := range requirementHeaders {
			if key == "Method" {
				row = append(row, string(q.Method))
				continue
			}
			v, _ := q.Fields.Get(key)
			row = append(row, v)
		}
		reqs = append(reqs, row)
	}
	p.Table(requirementHeaders, reqs)

	for _, q := range s.Requirements {
		switch {
		case !q.OK():
			p.Error(fmt.Sprintf("%s: %s", q.Name, q.Error))
		case q.RejectPPM > 0 && q.Cpk < 1:
			p.Warning(fmt.Sprintf("%s: C_pk %s, %s rejects per million", q.Name, dim.Num(q.Cpk), dim.PPM(1-q.Yield)))
		default:
			p.Success(fmt.Sprintf("%s: C_pk %s", q.Name, dim.Num(q.Cpk)))
		}
	}
}

func assumptionLines(r *Report) []string {
	var lines []string
	for _, s := range r.Stacks {
		for _, a := range s.Assumptions {
			var what []string
			if a.Distribution {
				what = append(what, "normal distribution")
			}
			if a.ProcessSigma {
				what = append(what, fmt.Sprintf("± %sσ process", dim.Num(dim.DefaultTargetProcessSigma)))
			}
			lines = append(lines, fmt.Sprintf("%s / %s: %s", s.Name, a.Dimension, strings.Join(what, ", ")))
		}
	}
	return lines
}
