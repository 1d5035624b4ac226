// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks identifiers that end up in storage keys, object
// names and log fields.
//
// Run ids name badger keys and GCS objects, so they are restricted to
// characters that cannot escape a key prefix or a path segment.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRunID indicates a run id outside the accepted format.
var ErrInvalidRunID = errors.New("invalid run id")

// runIDPattern allows letters, digits, dots, underscores and hyphens,
// starting with a letter or digit. A UUID fits with room to spare.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateRunID validates a run id before it is used as a key.
//
// Valid ids:
//   - 1-64 characters
//   - Letters and digits
//   - Dots, underscores and hyphens after the first character
//   - No ".." sequence
//
// Example:
//
//	if err := validation.ValidateRunID(id); err != nil {
//	    return nil, err
//	}
//	// Safe to use in a key or object name
func ValidateRunID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRunID)
	}
	if !runIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q (1-64 letters, digits, dots, underscores or hyphens)", ErrInvalidRunID, id)
	}
	return nil
}

// ValidateRunIDs validates several ids and lists every invalid one.
func ValidateRunIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateRunID(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, invalid)
	}
	return nil
}

// SanitizeRunID trims surrounding space from user input and validates it.
//
//	id, err := validation.SanitizeRunID(args[0])
//	if err != nil {
//	    return err
//	}
func SanitizeRunID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := ValidateRunID(id); err != nil {
		return "", err
	}
	return id, nil
}
