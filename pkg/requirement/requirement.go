// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package requirement evaluates a distribution against specification
// limits.
//
// A Requirement is a pure query object. It never mutates the distribution
// it references and is safe for concurrent reads.
package requirement

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/dist"
	"github.com/AleutianAI/tolstack/pkg/stats"
)

var (
	// ErrNilDistribution indicates a requirement without a distribution.
	ErrNilDistribution = errors.New("requirement distribution is nil")

	// ErrInvalidLimit indicates a NaN or infinite specification limit.
	ErrInvalidLimit = errors.New("specification limit must be finite")
)

// Requirement is a named pair of specification limits and the distribution
// they are checked against.
type Requirement struct {
	name         string
	description  string
	distribution dist.Distribution
	ll           float64
	ul           float64
}

// New builds a Requirement. Limits given in the wrong order are swapped.
//
// Outputs:
//   - *Requirement: The requirement.
//   - error: ErrNilDistribution or ErrInvalidLimit.
func New(name, description string, d dist.Distribution, ll, ul float64) (*Requirement, error) {
	if d == nil {
		return nil, fmt.Errorf("requirement %q: %w", name, ErrNilDistribution)
	}
	if !stats.IsFinite(ll) || !stats.IsFinite(ul) {
		return nil, fmt.Errorf("requirement %q limits [%v, %v]: %w", name, ll, ul, ErrInvalidLimit)
	}
	if ul < ll {
		ll, ul = ul, ll
	}
	return &Requirement{name: name, description: description, distribution: d, ll: ll, ul: ul}, nil
}

// Name returns the requirement name.
func (r *Requirement) Name() string { return r.name }

// Description returns the requirement description.
func (r *Requirement) Description() string { return r.description }

// Distribution returns the evaluated distribution.
func (r *Requirement) Distribution() dist.Distribution { return r.distribution }

// LL returns the lower specification limit.
func (r *Requirement) LL() float64 { return r.ll }

// UL returns the upper specification limit.
func (r *Requirement) UL() float64 { return r.ul }

// Median returns the middle of the limits.
func (r *Requirement) Median() float64 { return (r.ll + r.ul) / 2 }

// K returns the centering offset (mean - median) / ((UL - LL) / 2), the
// same skew a reviewed dimension reports. Cpk = Cp * (1 - |K|). 0 when the
// limits coincide.
func (r *Requirement) K() float64 {
	half := (r.ul - r.ll) / 2
	if half == 0 {
		return 0
	}
	return (r.distribution.Mean() - r.Median()) / half
}

// Cp returns (UL - LL) / (6 * std), 0 for a point distribution.
func (r *Requirement) Cp() float64 {
	cp, err := stats.Cp(r.ul, r.ll, r.distribution.StdDev())
	if err != nil {
		return 0
	}
	return cp
}

// Cpk returns the centering adjusted capability, 0 for a point
// distribution.
func (r *Requirement) Cpk() float64 {
	cpk, err := stats.Cpk(r.ul, r.ll, r.distribution.StdDev(), r.distribution.Mean())
	if err != nil {
		return 0
	}
	return cpk
}

// YieldProbability returns cdf(UL) - cdf(LL).
func (r *Requirement) YieldProbability() float64 {
	return r.distribution.CDF(r.ul) - r.distribution.CDF(r.ll)
}

// YieldLossProbability returns 1 - YieldProbability.
func (r *Requirement) YieldLossProbability() float64 {
	return 1 - r.YieldProbability()
}

// RejectPPM returns the expected rejects per million assemblies.
func (r *Requirement) RejectPPM() float64 {
	return r.YieldLossProbability() * 1e6
}

// Fields returns the display mapping of the requirement.
func (r *Requirement) Fields() dim.Fields {
	return dim.Fields{
		{Key: dim.KeyName, Value: r.name},
		{Key: dim.KeyDescription, Value: r.description},
		{Key: KeyLimits, Value: dim.Bounds(r.ll, r.ul)},
		{Key: KeyMedian, Value: dim.Num(r.Median())},
		{Key: dim.KeyDistribution, Value: r.distribution.String()},
		{Key: dim.KeySkew, Value: dim.Num(r.K())},
		{Key: dim.KeyCp, Value: dim.Num(r.Cp())},
		{Key: dim.KeyCpk, Value: dim.Num(r.Cpk())},
		{Key: dim.KeyYieldProbability, Value: dim.Percent(r.YieldProbability())},
		{Key: dim.KeyRejectPPM, Value: dim.PPM(r.YieldLossProbability())},
	}
}

// Field labels specific to requirements.
const (
	KeyLimits = "Limits"
	KeyMedian = "Median"
)

func (r *Requirement) String() string {
	return fmt.Sprintf("%s: %s [%s, %s] %s", r.name, r.description, dim.Num(r.ll), dim.Num(r.ul), r.distribution)
}
