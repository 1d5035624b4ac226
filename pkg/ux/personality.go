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
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode controls the richness of CLI output.
type Mode string

const (
	// ModeRich enables colors, icons, boxes and bordered tables.
	ModeRich Mode = "rich"

	// ModePlain keeps icons and tables but drops color.
	ModePlain Mode = "plain"

	// ModeMachine writes tab separated values suitable for scripts.
	ModeMachine Mode = "machine"
)

// EnvMode names the environment variable that overrides mode detection.
const EnvMode = "TOLSTACK_OUTPUT"

// ParseMode converts a string to a Mode. Unknown values are ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "r":
		return ModeRich
	case "machine", "quiet", "tsv", "q":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks the output mode for f.
//
// Description:
//
//	An explicit value wins, then TOLSTACK_OUTPUT, then the terminal check:
//	a terminal gets ModeRich and anything else (pipe, file) ModeMachine.
func DetectMode(explicit string, f *os.File) Mode {
	if explicit != "" {
		return ParseMode(explicit)
	}
	if env := os.Getenv(EnvMode); env != "" {
		return ParseMode(env)
	}
	if IsTerminal(f) {
		return ModeRich
	}
	return ModeMachine
}

// IsTerminal reports whether f is a terminal, including Cygwin and MSYS
// pseudo terminals.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
