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
	"strconv"

	"github.com/AleutianAI/tolstack/pkg/stats"
)

// Normal is a Gaussian distribution.
//
// A Normal built by Fit keeps the data it was fitted from so renderers can
// overlay a histogram. The data does not influence PDF or CDF.
type Normal struct {
	mean   float64
	stdDev float64
	data   []float64
}

// NewNormal builds a normal distribution.
//
// Inputs:
//   - mean: Location. Must be finite.
//   - stdDev: Spread. Must be finite and >= 0. Zero is a point mass.
//
// Outputs:
//   - *Normal: The distribution.
//   - error: ErrInvalidParameter or ErrInvalidStdDev.
func NewNormal(mean, stdDev float64) (*Normal, error) {
	if !stats.IsFinite(mean) {
		return nil, fmt.Errorf("normal mean %v: %w", mean, ErrInvalidParameter)
	}
	if !stats.IsFinite(stdDev) || stdDev < 0 {
		return nil, fmt.Errorf("normal std dev %v: %w", stdDev, ErrInvalidStdDev)
	}
	return &Normal{mean: mean, stdDev: stdDev}, nil
}

// Fit estimates a normal distribution from measurements.
//
// Description:
//
//	Uses the maximum likelihood estimates: the sample mean and the
//	population standard deviation (divisor n). A single measurement yields a
//	point mass. The measurements are copied and kept for reference.
//
// Inputs:
//   - data: Measurements. Must not be empty and must be finite.
//
// Outputs:
//   - *Normal: The fitted distribution, Data() returns the measurements.
//   - error: ErrInsufficientSamples or ErrInvalidParameter.
func Fit(data []float64) (*Normal, error) {
	if len(data) == 0 {
		return nil, ErrInsufficientSamples
	}

	var sum float64
	for _, x := range data {
		if !stats.IsFinite(x) {
			return nil, fmt.Errorf("fit: measurement %v: %w", x, ErrInvalidParameter)
		}
		sum += x
	}
	n := float64(len(data))
	mean := sum / n

	var sumSq float64
	for _, x := range data {
		d := x - mean
		sumSq += d * d
	}

	kept := make([]float64, len(data))
	copy(kept, data)
	return &Normal{
		mean:   mean,
		stdDev: math.Sqrt(sumSq / n),
		data:   kept,
	}, nil
}

// Kind returns KindNormal.
func (d *Normal) Kind() Kind { return KindNormal }

// Mean returns the mean.
func (d *Normal) Mean() float64 { return d.mean }

// StdDev returns the standard deviation.
func (d *Normal) StdDev() float64 { return d.stdDev }

// Variance returns the squared standard deviation.
func (d *Normal) Variance() float64 { return d.stdDev * d.stdDev }

// Data returns a copy of the measurements the distribution was fitted from,
// or nil.
func (d *Normal) Data() []float64 {
	if d.data == nil {
		return nil
	}
	out := make([]float64, len(d.data))
	copy(out, d.data)
	return out
}

// PDF returns the Gaussian density at x.
func (d *Normal) PDF(x float64) float64 { return stats.NormalPDF(x, d.mean, d.stdDev) }

// CDF returns the Gaussian cumulative probability at x.
func (d *Normal) CDF(x float64) float64 { return stats.NormalCDF(x, d.mean, d.stdDev) }

// Sample draws n values. It returns nil when n <= 0.
func (d *Normal) Sample(rng *rand.Rand, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = d.mean + rng.NormFloat64()*d.stdDev
	}
	return out
}

// Shifted returns a copy of the distribution with its mean moved by delta.
func (d *Normal) Shifted(delta float64) *Normal {
	return &Normal{mean: d.mean + delta, stdDev: d.stdDev, data: d.data}
}

func (d *Normal) String() string {
	return fmt.Sprintf("Normal Dist. μ=%s, σ=%s", round(d.mean), round(d.stdDev))
}

func round(x float64) string {
	return strconv.FormatFloat(stats.Round(x, stats.DefaultDecimals), 'f', -1, 64)
}
