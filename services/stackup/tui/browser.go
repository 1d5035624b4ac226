// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui implements the interactive report browser.
//
// One page is shown per stack, followed by a summary page. Pages are the
// plain text rendering of the report, so the browser shows exactly what
// the CLI prints.
//
// Thread Safety: Models are values owned by the bubbletea program.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/ux"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 2
	footerHeight = 2
)

// Browser is the bubbletea model of the report browser.
type Browser struct {
	report *report.Report
	pages  []page

	current  int
	viewport viewport.Model
	width    int
	height   int

	ready    bool
	showHelp bool
	quitting bool
}

type page struct {
	title string
	body  string
}

// NewBrowser builds the pages of r.
func NewBrowser(r *report.Report) Browser {
	pages := make([]page, 0, len(r.Stacks)+1)
	for _, s := range r.Stacks {
		var b strings.Builder
		report.RenderStack(ux.NewPrinter(&b, ux.ModePlain), s)
		pages = append(pages, page{title: s.Name, body: b.String()})
	}
	pages = append(pages, page{title: "Summary", body: summary(r)})
	return Browser{report: r, pages: pages}
}

func summary(r *report.Report) string {
	s := r.Summary()
	var b strings.Builder
	p := ux.NewPrinter(&b, ux.ModePlain)
	p.KeyValue(
		[]string{"Run", "Project", "Source", "Created", "Stacks", "Failures", "Worst reject PPM"},
		[]string{s.RunID, s.Project, s.Source, s.CreatedAt.Format("2006-01-02 15:04:05 MST"),
			fmt.Sprint(s.Stacks), fmt.Sprint(s.Failures), dim.NumN(s.WorstRejectPPM, 2)},
	)

	var rows [][]string
	for _, st := range r.Stacks {
		for _, a := range st.Assumptions {
			var what []string
			if a.Distribution {
				what = append(what, "distribution")
			}
			if a.ProcessSigma {
				what = append(what, "process sigma")
			}
			rows = append(rows, []string{st.Name, a.Dimension, strings.Join(what, ", ")})
		}
	}
	if len(rows) > 0 {
		p.Table([]string{"Stack", "Dimension", "Assumed"}, rows)
	}
	return b.String()
}

// Init implements tea.Model.
func (m Browser) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := max(m.height-headerHeight-footerHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, h)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = h
		}
		m.viewport.SetContent(m.pages[m.current].body)
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			switch msg.String() {
			case "q", "?", "esc":
				m.showHelp = false
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "?":
			m.showHelp = true
			return m, nil
		case "left", "h", "shift+tab":
			m.show(m.current - 1)
			return m, nil
		case "right", "l", "tab":
			m.show(m.current + 1)
			return m, nil
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// show switches to page i when it exists.
func (m *Browser) show(i int) {
	if i < 0 || i >= len(m.pages) || i == m.current {
		return
	}
	m.current = i
	if m.ready {
		m.viewport.SetContent(m.pages[i].body)
		m.viewport.GotoTop()
	}
}

// Current returns the index and title of the page shown.
func (m Browser) Current() (int, string) {
	return m.current, m.pages[m.current].title
}

// View implements tea.Model.
func (m Browser) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	if m.showHelp {
		b.WriteString(help())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(ux.Styles.Muted.Render(m.footer()))
	return b.String()
}

func (m Browser) header() string {
	title := ux.Styles.Title.Render(m.report.Project)
	pos := ux.Styles.Subtitle.Render(fmt.Sprintf("%d/%d %s", m.current+1, len(m.pages), m.pages[m.current].title))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", pos)
}

func (m Browser) footer() string {
	return fmt.Sprintf("←/→ stack  ↑/↓ scroll  ? help  q quit  %3.0f%%", m.viewport.ScrollPercent()*100)
}

var helpKeys = [][2]string{
	{"←, h, shift+tab", "previous stack"},
	{"→, l, tab", "next stack"},
	{"↑/↓, j/k", "scroll"},
	{"pgup/pgdn", "scroll a page"},
	{"g, G", "top, bottom"},
	{"?", "toggle help"},
	{"q, esc", "quit"},
}

func help() string {
	var b strings.Builder
	for _, k := range helpKeys {
		b.WriteString(ux.Styles.Highlight.Render(fmt.Sprintf("%-18s", k[0])))
		b.WriteString(k[1])
		b.WriteString("\n")
	}
	return b.String()
}

// Browse runs the browser on in and out until the user quits.
func Browse(r *report.Report, in io.Reader, out io.Writer) error {
	prog := tea.NewProgram(NewBrowser(r),
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("report browser: %w", err)
	}
	return nil
}
