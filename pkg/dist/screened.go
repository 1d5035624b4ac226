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
	"math/rand/v2"

	"github.com/AleutianAI/tolstack/pkg/stats"
)

// NormalScreened is a normal process whose output was sorted by a pass/fail
// fixture: parts outside [Lower, Upper] were scrapped.
//
// The density inside the window is the unscreened normal density and is not
// renormalized, so the total mass is the pass rate of the fixture rather
// than 1. This is the domain meaning of "screened" and differs from the
// textbook truncated normal on purpose.
type NormalScreened struct {
	mean   float64
	stdDev float64
	lower  float64
	upper  float64
}

// NewNormalScreened builds a screened normal. Limits may be given in either
// order.
func NewNormalScreened(mean, stdDev, lower, upper float64) (*NormalScreened, error) {
	if !stats.IsFinite(mean) || !stats.IsFinite(lower) || !stats.IsFinite(upper) {
		return nil, fmt.Errorf("normal screened: %w", ErrInvalidParameter)
	}
	if !stats.IsFinite(stdDev) || stdDev < 0 {
		return nil, fmt.Errorf("normal screened std dev %v: %w", stdDev, ErrInvalidStdDev)
	}
	if upper < lower {
		lower, upper = upper, lower
	}
	return &NormalScreened{mean: mean, stdDev: stdDev, lower: lower, upper: upper}, nil
}

// Kind returns KindNormalScreened.
func (d *NormalScreened) Kind() Kind { return KindNormalScreened }

// Mean returns the mean of the unscreened process.
func (d *NormalScreened) Mean() float64 { return d.mean }

// StdDev returns the standard deviation of the unscreened process.
func (d *NormalScreened) StdDev() float64 { return d.stdDev }

// Lower returns the lower screening limit.
func (d *NormalScreened) Lower() float64 { return d.lower }

// Upper returns the upper screening limit.
func (d *NormalScreened) Upper() float64 { return d.upper }

// PDF is 0 outside the screening window and the normal density inside.
func (d *NormalScreened) PDF(x float64) float64 {
	if x < d.lower || x > d.upper {
		return 0
	}
	return stats.NormalPDF(x, d.mean, d.stdDev)
}

// CDF is 0 below the window, 1 above it and the unscreened normal CDF
// inside.
func (d *NormalScreened) CDF(x float64) float64 {
	switch {
	case x < d.lower:
		return 0
	case x > d.upper:
		return 1
	default:
		return stats.NormalCDF(x, d.mean, d.stdDev)
	}
}

// Sample draws n parts from the process and keeps the ones that pass the
// fixture, so fewer than n values may be returned. It returns nil when
// n <= 0.
func (d *NormalScreened) Sample(rng *rand.Rand, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, n)
	for range n {
		x := d.mean + rng.NormFloat64()*d.stdDev
		if x >= d.lower && x <= d.upper {
			out = append(out, x)
		}
	}
	return out
}

func (d *NormalScreened) String() string {
	return fmt.Sprintf("Normal Screened Dist. μ=%s, σ=%s [%s, %s]",
		round(d.mean), round(d.stdDev), round(d.lower), round(d.upper))
}
