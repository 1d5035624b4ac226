// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table prints rows under headers.
//
// Description:
//
//	Rich mode draws a rounded, colored lipgloss table. Plain mode draws the
//	same table with ASCII borders and no color. Machine mode writes a
//	header line and one line per row, tab separated, with tabs and
//	newlines inside cells replaced by spaces.
//
//	Rows shorter than headers are padded with empty cells.
func (p *Printer) Table(headers []string, rows [][]string) {
	rows = padRows(len(headers), rows)

	if p.mode == ModeMachine {
		fmt.Fprintln(p.w, tsvLine(headers))
		for _, r := range rows {
			fmt.Fprintln(p.w, tsvLine(r))
		}
		return
	}

	t := table.New().
		Headers(headers...).
		Rows(rows...)

	if p.mode == ModeRich {
		t = t.Border(lipgloss.RoundedBorder()).
			BorderStyle(Styles.Border).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return Styles.Header
				}
				return Styles.Cell
			})
	} else {
		plain := lipgloss.NewStyle().Padding(0, 1)
		t = t.Border(lipgloss.ASCIIBorder()).
			StyleFunc(func(int, int) lipgloss.Style { return plain })
	}
	fmt.Fprintln(p.w, t.Render())
}

// KeyValue prints a two column table of labels and values.
func (p *Printer) KeyValue(keys, values []string) {
	rows := make([][]string, len(keys))
	for i, k := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		rows[i] = []string{k, v}
	}
	p.Table([]string{"Field", "Value"}, rows)
}

func padRows(width int, rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) >= width {
			out[i] = r
			continue
		}
		padded := make([]string, width)
		copy(padded, r)
		out[i] = padded
	}
	return out
}

var tsvEscaper = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func tsvLine(cells []string) string {
	clean := make([]string, len(cells))
	for i, c := range cells {
		clean[i] = tsvEscaper.Replace(c)
	}
	return strings.Join(clean, "\t")
}
