// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dist

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/AleutianAI/tolstack/pkg/stats"
)

// Uniform is a flat density on [Lower, Upper].
type Uniform struct {
	lower float64
	upper float64
}

// NewUniform builds a uniform distribution. Bounds may be given in either
// order. Equal bounds describe a point mass.
func NewUniform(lower, upper float64) (*Uniform, error) {
	if !stats.IsFinite(lower) || !stats.IsFinite(upper) {
		return nil, fmt.Errorf("uniform [%v, %v]: %w", lower, upper, ErrInvalidParameter)
	}
	if upper < lower {
		lower, upper = upper, lower
	}
	return &Uniform{lower: lower, upper: upper}, nil
}

// Kind returns KindUniform.
func (u *Uniform) Kind() Kind { return KindUniform }

// Lower returns the lower bound.
func (u *Uniform) Lower() float64 { return u.lower }

// Upper returns the upper bound.
func (u *Uniform) Upper() float64 { return u.upper }

// PDF returns 1/(upper-lower) inside the bounds and 0 outside.
func (u *Uniform) PDF(x float64) float64 {
	width := u.upper - u.lower
	if width == 0 || x < u.lower || x > u.upper {
		return 0
	}
	return 1 / width
}

// CDF is 0 below the bounds, linear between and 1 above.
func (u *Uniform) CDF(x float64) float64 {
	switch {
	case x < u.lower:
		return 0
	case x >= u.upper:
		return 1
	default:
		return (x - u.lower) / (u.upper - u.lower)
	}
}

// Sample draws n values. It returns nil when n <= 0.
func (u *Uniform) Sample(rng *rand.Rand, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = u.lower + rng.Float64()*(u.upper-u.lower)
	}
	return out
}

// Mean returns the midpoint of the bounds.
func (u *Uniform) Mean() float64 { return (u.lower + u.upper) / 2 }

// StdDev returns (upper-lower)/sqrt(12).
func (u *Uniform) StdDev() float64 { return (u.upper - u.lower) / math.Sqrt(12) }

func (u *Uniform) String() string {
	return fmt.Sprintf("Uniform Dist. [%s, %s]", round(u.lower), round(u.upper))
}
