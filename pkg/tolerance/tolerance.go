// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tolerance models two-sided tolerance bands around a nominal value.
package tolerance

import (
	"fmt"
	"math"
	"strconv"

	"github.com/AleutianAI/tolstack/pkg/stats"
)

// Bilateral is a tolerance band expressed as offsets from a nominal value.
//
// The zero value is a band of width zero. Upper >= Lower always holds;
// constructors swap bounds passed in the wrong order instead of failing.
//
// Thread Safety: Immutable, safe for concurrent use.
type Bilateral struct {
	upper float64
	lower float64
}

// New builds a band from an upper and a lower offset, in either order.
func New(upper, lower float64) Bilateral {
	if upper < lower {
		upper, lower = lower, upper
	}
	return Bilateral{upper: upper, lower: lower}
}

// Symmetric builds the band ± |t|.
func Symmetric(t float64) Bilateral {
	t = math.Abs(t)
	return Bilateral{upper: t, lower: -t}
}

// Asymmetric builds a band with different upper and lower offsets.
//
// Unilateral tolerances are the special cases upper == 0 or lower == 0.
// Both offsets may also share a sign, e.g. +0.005 / +0.004.
func Asymmetric(upper, lower float64) Bilateral {
	return New(upper, lower)
}

// Unequal is an alias for Asymmetric.
func Unequal(upper, lower float64) Bilateral {
	return Asymmetric(upper, lower)
}

// Upper returns the upper offset.
func (b Bilateral) Upper() float64 { return b.upper }

// Lower returns the lower offset.
func (b Bilateral) Lower() float64 { return b.lower }

// T returns the total band width, upper - lower. Never negative.
func (b Bilateral) T() float64 { return b.upper - b.lower }

// Half returns half of the band width.
func (b Bilateral) Half() float64 { return b.T() / 2 }

// IsSymmetric reports whether the band is centered on the nominal.
func (b Bilateral) IsSymmetric() bool { return b.upper == -b.lower }

// Negate mirrors the band about zero: +u / l becomes +(-l) / -u.
func (b Bilateral) Negate() Bilateral {
	return New(-b.lower, -b.upper)
}

// Scale multiplies both offsets by a non-negative factor.
func (b Bilateral) Scale(a float64) Bilateral {
	return New(b.upper*a, b.lower*a)
}

// String renders "± x" for symmetric bands and "+x / -y" otherwise.
func (b Bilateral) String() string {
	if b.IsSymmetric() {
		return "± " + format(b.upper)
	}
	return fmt.Sprintf("%s%s / %s%s",
		signSymbol(b.upper), format(math.Abs(b.upper)),
		signSymbol(b.lower), format(math.Abs(b.lower)))
}

func signSymbol(x float64) string {
	if x < 0 {
		return "-"
	}
	return "+"
}

func format(x float64) string {
	return strconv.FormatFloat(stats.Round(x, stats.DefaultDecimals), 'f', -1, 64)
}
