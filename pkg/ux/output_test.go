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
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow, IconBullet} {
		if got := icon.Render(); !strings.Contains(got, string(icon)) {
			t.Errorf("Render() = %q, want it to contain %q", got, icon)
		}
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)

	p.Title("hidden title")
	p.Muted("hidden muted")
	p.Success("saved")
	p.Warning("assumed")
	p.Error("failed")
	p.Info("line")
	p.Box("Run", "abc")
	p.WarningBox("Assumptions", "2 dimensions")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("machine mode printed decorative text: %q", out)
	}
	for _, want := range []string{"OK: saved\n", "WARN: assumed\n", "ERROR: failed\n", "line\n", "Run: abc\n", "WARN Assumptions: 2 dimensions\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Title("Stack")
	p.Success("saved")
	p.Muted("note")

	out := buf.String()
	for _, want := range []string{"Stack\n", "✓ saved\n", "note\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
	if p.Mode() != ModePlain {
		t.Errorf("Mode() = %v", p.Mode())
	}
	if p.Writer() != &buf {
		t.Error("Writer() should return the destination")
	}
}

func TestPrinter_Rich(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeRich)

	p.Title("Stack")
	p.Box("Run", "abc")
	p.Info("detail")

	out := buf.String()
	for _, want := range []string{"Stack", "Run", "abc", "detail", "│"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

// =============================================================================
// Table Tests
// =============================================================================

func TestTable_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)

	p.Table([]string{"Name", "Nom.", "Tol."}, [][]string{
		{"A", "0.375", "+0 / -0.031"},
		{"B\tx", "0.032"},
	})

	want := "Name\tNom.\tTol.\n" +
		"A\t0.375\t+0 / -0.031\n" +
		"B x\t0.032\t\n"
	if buf.String() != want {
		t.Errorf("Table() = %q, want %q", buf.String(), want)
	}
}

func TestTable_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Table([]string{"Method", "Nominal"}, [][]string{
		{"WC", "0.0615"},
		{"RSS", "0.0615"},
	})

	out := buf.String()
	for _, want := range []string{"Method", "Nominal", "WC", "RSS", "0.0615", "+", "|"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTable_Rich(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeRich)
	p.Table([]string{"Method"}, [][]string{{"MRSS"}})

	out := buf.String()
	if !strings.Contains(out, "MRSS") || !strings.Contains(out, "╭") {
		t.Errorf("rich table = \n%s", out)
	}
}

func TestKeyValue(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)
	p.KeyValue([]string{"C_p", "C_pk"}, []string{"2"})

	want := "Field\tValue\nC_p\t2\nC_pk\t\n"
	if buf.String() != want {
		t.Errorf("KeyValue() = %q, want %q", buf.String(), want)
	}
}
