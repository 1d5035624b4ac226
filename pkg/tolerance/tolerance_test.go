// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tolerance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Ordering(t *testing.T) {
	tests := []struct {
		name         string
		upper, lower float64
		wantUpper    float64
		wantLower    float64
	}{
		{"double positive", 0.005, 0.004, 0.005, 0.004},
		{"double negative", -0.005, -0.006, -0.005, -0.006},
		{"flipped", -0.005, 0.005, 0.005, -0.005},
		{"unilateral upper", 0, -0.031, 0, -0.031},
		{"unilateral lower", 0.012, 0, 0.012, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Asymmetric(tt.upper, tt.lower)
			assert.Equal(t, tt.wantUpper, b.Upper())
			assert.Equal(t, tt.wantLower, b.Lower())
			assert.GreaterOrEqual(t, b.T(), 0.0)
			assert.LessOrEqual(t, b.Lower(), b.Upper())
		})
	}
}

func TestNew_AnyArgumentOrder(t *testing.T) {
	values := []float64{-1, -0.25, 0, 0.001, 0.5, 3}
	for _, a := range values {
		for _, b := range values {
			tol := New(a, b)
			assert.GreaterOrEqual(t, tol.T(), 0.0, "New(%v, %v)", a, b)
			assert.Equal(t, tol, New(b, a), "New is symmetric in its arguments")
		}
	}
}

func TestSymmetric(t *testing.T) {
	b := Symmetric(-0.036)
	assert.Equal(t, 0.036, b.Upper())
	assert.Equal(t, -0.036, b.Lower())
	assert.InDelta(t, 0.072, b.T(), 1e-12)
	assert.InDelta(t, 0.036, b.Half(), 1e-12)
	assert.True(t, b.IsSymmetric())
	assert.Equal(t, Symmetric(0.036), Asymmetric(0.036, -0.036))
}

func TestUnequalAlias(t *testing.T) {
	assert.Equal(t, Asymmetric(0.01, -0.004), Unequal(0.01, -0.004))
}

func TestNegate(t *testing.T) {
	b := Asymmetric(0.005, -0.004).Negate()
	assert.Equal(t, 0.004, b.Upper())
	assert.Equal(t, -0.005, b.Lower())
	assert.Equal(t, Symmetric(0.2), Symmetric(0.2).Negate())
}

func TestScale(t *testing.T) {
	b := Asymmetric(0.01, -0.004).Scale(0.5)
	assert.InDelta(t, 0.005, b.Upper(), 1e-12)
	assert.InDelta(t, -0.002, b.Lower(), 1e-12)
}

func TestString(t *testing.T) {
	assert.Equal(t, "± 0.036", Symmetric(0.036).String())
	assert.Equal(t, "+0.01 / -0.004", Asymmetric(0.01, -0.004).String())
	assert.Equal(t, "+0 / -0.031", Asymmetric(0, -0.031).String())
	assert.Equal(t, "+0.005 / +0.004", Asymmetric(0.004, 0.005).String())
	assert.Equal(t, "± 0", Bilateral{}.String())
}
