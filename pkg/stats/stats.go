// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats holds the "6 sigma" process capability formulas and the
// root-sum-square helpers used by the stack calculator.
//
// All functions are stateless and safe for concurrent use.
package stats

import (
	"errors"
	"math"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrZeroStdDev indicates a capability index was requested for a point
	// distribution (standard deviation of zero).
	ErrZeroStdDev = errors.New("standard deviation is zero")

	// ErrZeroVariance indicates an RSS tolerance of zero where a ratio against
	// it is required.
	ErrZeroVariance = errors.New("rss tolerance is zero")

	// ErrTooFewContributors indicates a modified RSS correction was requested
	// for fewer than two contributors.
	ErrTooFewContributors = errors.New("modified rss requires at least two contributors")
)

// DefaultDecimals is the rounding applied to values handed to renderers.
const DefaultDecimals = 5

// -----------------------------------------------------------------------------
// Process Capability
// -----------------------------------------------------------------------------

// Cp returns the process capability index (UL - LL) / (6 * stdDev).
//
// Inputs:
//   - ul: Upper limit.
//   - ll: Lower limit.
//   - stdDev: Process standard deviation.
//
// Outputs:
//   - float64: The capability index. Zero when err is non-nil.
//   - error: ErrZeroStdDev when stdDev is zero.
func Cp(ul, ll, stdDev float64) (float64, error) {
	if stdDev == 0 {
		return 0, ErrZeroStdDev
	}
	return (ul - ll) / (6 * stdDev), nil
}

// Cpk returns the capability index adjusted for centering.
//
// Description:
//
//	Cpu = (UL - mean) / 3σ and Cpl = (mean - LL) / 3σ. Cpk is the smaller of
//	the two, so a mean shifted toward either limit lowers the index. For a
//	centered process Cpk equals Cp.
//
// Outputs:
//   - float64: The index. Zero when err is non-nil.
//   - error: ErrZeroStdDev when stdDev is zero.
func Cpk(ul, ll, stdDev, mean float64) (float64, error) {
	if stdDev == 0 {
		return 0, ErrZeroStdDev
	}
	return math.Min(
		(ul-mean)/(3*stdDev),
		(mean-ll)/(3*stdDev),
	), nil
}

// -----------------------------------------------------------------------------
// Root Sum Square
// -----------------------------------------------------------------------------

// RSS returns the root sum square of the values.
func RSS(values ...float64) float64 {
	var sumSq float64
	for _, v := range values {
		sumSq += v * v
	}
	return math.Sqrt(sumSq)
}

// CorrectionFactor returns the modified RSS correction factor C_f.
//
// Description:
//
//	C_f = 0.5 * (t_wc - t_rss) / (t_rss * (sqrt(n) - 1)) + 1
//
//	The factor pulls the RSS band toward the worst case band for short
//	stacks and toward the plain RSS band as n grows.
//
// Inputs:
//   - tRSS: RSS half tolerance. Must be non-zero.
//   - tWC: Worst case half tolerance.
//   - n: Number of contributors. Must be at least 2.
//
// Outputs:
//   - float64: The correction factor.
//   - error: ErrTooFewContributors or ErrZeroVariance.
func CorrectionFactor(tRSS, tWC float64, n int) (float64, error) {
	if n < 2 {
		return 0, ErrTooFewContributors
	}
	if tRSS == 0 {
		return 0, ErrZeroVariance
	}
	return (0.5*(tWC-tRSS))/(tRSS*(math.Sqrt(float64(n))-1)) + 1, nil
}

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// NormalCDF returns the cumulative probability of x for a normal
// distribution with the given mean and standard deviation.
//
// A zero stdDev is treated as a point mass at mean.
func NormalCDF(x, mean, stdDev float64) float64 {
	if stdDev == 0 {
		if x < mean {
			return 0
		}
		return 1
	}
	return 0.5 * (1 + math.Erf((x-mean)/(stdDev*math.Sqrt2)))
}

// NormalPDF returns the normal probability density at x.
//
// A zero stdDev yields 0 everywhere so that point masses never leak an
// infinity into plots or sums.
func NormalPDF(x, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	z := (x - mean) / stdDev
	return math.Exp(-0.5*z*z) / (stdDev * math.Sqrt(2*math.Pi))
}

// Sign returns -1 for negative x and 1 otherwise.
//
// Zero counts as positive: a dimension always contributes in one direction.
func Sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// Round rounds x half away from zero to the given number of decimals.
func Round(x float64, decimals int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(decimals))
	r := math.Round(x*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// IsFinite reports whether x is neither NaN nor an infinity.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
