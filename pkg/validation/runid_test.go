// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid ids
		{"uuid", "0b9c2f6e-3c1d-4f0e-9a57-2d1f3b4c5e6f", false},
		{"single char", "a", false},
		{"dotted", "run.2026.10", false},
		{"underscore", "nightly_build-7", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid ids
		{"empty", "", true},
		{"leading hyphen", "-run", true},
		{"leading dot", ".run", true},
		{"slash", "runs/1", true},
		{"parent dir", "a..b", true},
		{"space", "run 1", true},
		{"too long", strings.Repeat("a", 65), true},
		{"unicode", "lauf-ä", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRunID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRunID) {
				t.Errorf("ValidateRunID(%q) error %v does not wrap ErrInvalidRunID", tt.id, err)
			}
		})
	}
}

func TestValidateRunIDs(t *testing.T) {
	if err := ValidateRunIDs([]string{"a", "b-1"}); err != nil {
		t.Errorf("ValidateRunIDs() unexpected error = %v", err)
	}
	err := ValidateRunIDs([]string{"a", "b/1", "c d"})
	if err == nil {
		t.Fatal("ValidateRunIDs() expected error")
	}
	if !strings.Contains(err.Error(), "b/1") || !strings.Contains(err.Error(), "c d") {
		t.Errorf("ValidateRunIDs() error %q should list every invalid id", err)
	}
}

func TestSanitizeRunID(t *testing.T) {
	got, err := SanitizeRunID("  run-1\n")
	if err != nil {
		t.Fatalf("SanitizeRunID() error = %v", err)
	}
	if got != "run-1" {
		t.Errorf("SanitizeRunID() = %q, want %q", got, "run-1")
	}
	if _, err := SanitizeRunID("   "); err == nil {
		t.Error("SanitizeRunID() should reject blank input")
	}
}
