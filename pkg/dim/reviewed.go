// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/AleutianAI/tolstack/pkg/dist"
	"github.com/AleutianAI/tolstack/pkg/stats"
)

// DefaultTargetProcessSigma is the sigma a tolerance band represents when
// the caller does not say otherwise.
const DefaultTargetProcessSigma = 3.0

var (
	// ErrInvalidProcessSigma indicates a target process sigma that is not a
	// finite positive number.
	ErrInvalidProcessSigma = errors.New("target process sigma must be finite and positive")

	// ErrMeanOutsideTolerance indicates a distribution mean on or beyond a
	// tolerance limit, where the effective standard deviation is undefined.
	ErrMeanOutsideTolerance = errors.New("distribution mean is outside the tolerance band")

	// ErrNilDimension indicates a nil *Dimension was passed for review.
	ErrNilDimension = errors.New("dimension is nil")
)

// Assumptions records data that was fabricated rather than supplied.
type Assumptions struct {
	// Distribution is true when the distribution was inferred from the
	// tolerance band and process sigma.
	Distribution bool `json:"distribution"`

	// ProcessSigma is true when the target process sigma is a default
	// rather than a caller choice.
	ProcessSigma bool `json:"process_sigma"`
}

// Any reports whether anything was assumed.
func (a Assumptions) Any() bool { return a.Distribution || a.ProcessSigma }

// Reviewed is a Dimension annotated with a Distribution and a target
// process sigma.
//
// The distribution is expressed in absolute (signed) coordinates, the same
// space as AbsLower and AbsUpper of the wrapped dimension.
type Reviewed struct {
	dim          *Dimension
	distribution dist.Distribution
	sigma        float64
	assumed      Assumptions
}

// ReviewOption configures Review.
type ReviewOption func(*reviewOptions)

type reviewOptions struct {
	distribution dist.Distribution
	sigma        float64
	sigmaSet     bool
	skew         float64
	logger       *slog.Logger
}

// WithDistribution assigns a distribution instead of inferring one.
func WithDistribution(d dist.Distribution) ReviewOption {
	return func(o *reviewOptions) { o.distribution = d }
}

// WithTargetProcessSigma sets how many standard deviations the tolerance
// half-band represents. Default: 3.
func WithTargetProcessSigma(sigma float64) ReviewOption {
	return func(o *reviewOptions) {
		o.sigma = sigma
		o.sigmaSet = true
	}
}

// WithSkew shifts an inferred distribution's mean by skew * std * sigma.
// Ignored when a distribution is assigned.
func WithSkew(skew float64) ReviewOption {
	return func(o *reviewOptions) { o.skew = skew }
}

// WithLogger sets the logger that reports fabricated data.
// Default: slog.Default().
func WithLogger(l *slog.Logger) ReviewOption {
	return func(o *reviewOptions) { o.logger = l }
}

// Review annotates d with a distribution and a target process sigma.
//
// Description:
//
//	When no distribution is supplied a Normal is inferred on the spot:
//	mean = AbsMedian and std = (AbsUpper - AbsLower) / (2 * sigma). The
//	inference is flagged in Assumptions and logged at warn level, so every
//	statistical read is backed by a distribution.
//
// Inputs:
//   - d: The dimension. Must not be nil.
//   - opts: Distribution, sigma, skew, logger.
//
// Outputs:
//   - *Reviewed: The reviewed dimension.
//   - error: ErrNilDimension or ErrInvalidProcessSigma.
func Review(d *Dimension, opts ...ReviewOption) (*Reviewed, error) {
	o := reviewOptions{sigma: DefaultTargetProcessSigma}
	for _, opt := range opts {
		opt(&o)
	}
	if d == nil {
		return nil, ErrNilDimension
	}
	if !stats.IsFinite(o.sigma) || o.sigma <= 0 {
		return nil, fmt.Errorf("dimension %q sigma %v: %w", d.name, o.sigma, ErrInvalidProcessSigma)
	}
	if !stats.IsFinite(o.skew) {
		return nil, fmt.Errorf("dimension %q skew %v: %w", d.name, o.skew, ErrNotFinite)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reviewed{
		dim:          d,
		distribution: o.distribution,
		sigma:        o.sigma,
		assumed:      Assumptions{ProcessSigma: !o.sigmaSet},
	}
	if r.distribution == nil {
		r.distribution = r.inferNormal(o.skew)
		r.assumed.Distribution = true
		logger.Warn("assumed normal distribution",
			"dimension_id", d.id,
			"dimension", d.name,
			"process_sigma", o.sigma,
			"skew", o.skew,
			"distribution", r.distribution.String())
	}
	return r, nil
}

// inferNormal builds the normal implied by the tolerance band and sigma.
// The std dev is never negative and the constructor cannot fail here.
func (r *Reviewed) inferNormal(skew float64) *dist.Normal {
	d := r.dim
	std := (d.AbsUpper() - d.AbsLower()) / (2 * r.sigma)
	n, err := dist.NewNormal(d.AbsMedian(), std)
	if err != nil {
		panic(fmt.Sprintf("dim: inferred normal for %q: %v", d.name, err))
	}
	if skew != 0 {
		n = n.Shifted(skew * std * r.sigma)
	}
	return n
}

// AssumeNormalDist returns a copy whose distribution is re-inferred from the
// tolerance band and sigma.
func (r *Reviewed) AssumeNormalDist() *Reviewed {
	return r.AssumeNormalDistSkewed(0)
}

// AssumeNormalDistSkewed returns a copy with an inferred normal whose mean
// is shifted by skew * std * sigma. A skew of 0.25 at sigma 6 moves the
// mean 1.5 standard deviations toward the upper limit.
func (r *Reviewed) AssumeNormalDistSkewed(skew float64) *Reviewed {
	out := *r
	out.distribution = out.inferNormal(skew)
	out.assumed.Distribution = true
	return &out
}

// Dimension returns the wrapped dimension.
func (r *Reviewed) Dimension() *Dimension { return r.dim }

// ID returns the wrapped dimension's id.
func (r *Reviewed) ID() int64 { return r.dim.id }

// Name returns the wrapped dimension's name.
func (r *Reviewed) Name() string { return r.dim.name }

// Distribution returns the assigned or inferred distribution.
func (r *Reviewed) Distribution() dist.Distribution { return r.distribution }

// TargetProcessSigma returns the sigma the tolerance band represents.
func (r *Reviewed) TargetProcessSigma() float64 { return r.sigma }

// Assumptions reports what was fabricated during review.
func (r *Reviewed) Assumptions() Assumptions { return r.assumed }

// -----------------------------------------------------------------------------
// Process Capability
// -----------------------------------------------------------------------------

// Cp returns (AbsUpper - AbsLower) / (6 * std), or 0 for a point
// distribution.
func (r *Reviewed) Cp() float64 {
	cp, err := stats.Cp(r.dim.AbsUpper(), r.dim.AbsLower(), r.distribution.StdDev())
	if err != nil {
		return 0
	}
	return cp
}

// Cpk returns the centering adjusted capability index, or 0 for a point
// distribution.
func (r *Reviewed) Cpk() float64 {
	cpk, err := stats.Cpk(r.dim.AbsUpper(), r.dim.AbsLower(), r.distribution.StdDev(), r.distribution.Mean())
	if err != nil {
		return 0
	}
	return cpk
}

// K returns the skew: the offset of the distribution mean from the median
// in ideal standard deviations, divided by sigma. Positive toward AbsUpper.
func (r *Reviewed) K() float64 {
	half := r.dim.tol.Half()
	if half == 0 {
		return 0
	}
	ideal := half / r.sigma
	return (r.distribution.Mean() - r.MeanEff()) / ideal / r.sigma
}

// MeanEff returns the effective mean, the absolute median of the band.
func (r *Reviewed) MeanEff() float64 { return r.dim.AbsMedian() }

// StdDevEff returns the standard deviation of a centered process that
// would put as much of its tail at the nearer limit as the actual,
// possibly shifted, process does.
//
// Description:
//
//	std_eff = T * std / (2 * min(AbsUpper - mean, mean - AbsLower))
//
//	This puts contributors with differing sigma targets on a common
//	footing before they are root-sum-squared.
//
// Outputs:
//   - float64: The effective std dev. 0 for a point distribution.
//   - error: ErrMeanOutsideTolerance when the mean is on or beyond a limit.
func (r *Reviewed) StdDevEff() (float64, error) {
	std := r.distribution.StdDev()
	if std == 0 {
		return 0, nil
	}
	mean := r.distribution.Mean()
	shift := math.Min(r.dim.AbsUpper()-mean, mean-r.dim.AbsLower())
	if shift <= 0 {
		return 0, fmt.Errorf("dimension %q mean %v: %w", r.dim.name, mean, ErrMeanOutsideTolerance)
	}
	return r.dim.tol.T() * std / (2 * shift), nil
}

// ProcessSigmaEff returns the half band expressed in effective standard
// deviations. 0 when the effective std dev is 0 or undefined.
func (r *Reviewed) ProcessSigmaEff() float64 {
	eff, err := r.StdDevEff()
	if err != nil || eff == 0 {
		return 0
	}
	return r.dim.tol.Half() / eff
}

// YieldProbability returns cdf(AbsUpper) - cdf(AbsLower).
func (r *Reviewed) YieldProbability() float64 {
	return r.distribution.CDF(r.dim.AbsUpper()) - r.distribution.CDF(r.dim.AbsLower())
}

// YieldLossProbability returns 1 - YieldProbability.
func (r *Reviewed) YieldLossProbability() float64 {
	return 1 - r.YieldProbability()
}

// RejectPPM returns the expected rejects per million parts.
func (r *Reviewed) RejectPPM() float64 {
	return r.YieldLossProbability() * 1e6
}

// Fields returns the display mapping of the reviewed dimension.
func (r *Reviewed) Fields() Fields {
	f := r.dim.Fields()
	stdEff := ""
	if eff, err := r.StdDevEff(); err == nil {
		stdEff = Num(eff)
	}
	return append(f,
		Field{KeyDistribution, r.distribution.String()},
		Field{KeyProcessSigma, "± " + Num(r.sigma) + "σ"},
		Field{KeySkew, Num(r.K())},
		Field{KeyCp, Num(r.Cp())},
		Field{KeyCpk, Num(r.Cpk())},
		Field{KeyMeanEff, Num(r.MeanEff())},
		Field{KeyStdDevEff, stdEff},
		Field{KeyYieldProbability, Percent(r.YieldProbability())},
		Field{KeyRejectPPM, PPM(r.YieldLossProbability())},
	)
}

func (r *Reviewed) String() string {
	return fmt.Sprintf("%s @ ± %sσ & k=%s", r.dim, Num(r.sigma), Num(r.K()))
}
