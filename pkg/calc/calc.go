// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package calc reduces a stack to a single derived dimension.
//
// Every method uses the same contribution of dimension i:
//
//	nominal   m_i = dir_i * median_i * a_i
//	half band t_i = a_i * T_i / 2
//
// Closed is the only method that keeps the literal nominal and asymmetric
// band. WC, RSS and MRSS return symmetric bands around the summed medians.
// SixSigma is the only method that returns a distribution.
//
// All functions are pure and safe for concurrent use on distinct stacks.
package calc

import (
	"errors"
	"fmt"
	"math"

	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/dist"
	"github.com/AleutianAI/tolstack/pkg/stats"
	"github.com/AleutianAI/tolstack/pkg/tolerance"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptyStack indicates a stack without dimensions.
	ErrEmptyStack = errors.New("stack has no dimensions")

	// ErrInvalidSigma indicates a six sigma multiplier that is not a finite
	// positive number.
	ErrInvalidSigma = errors.New("sigma multiplier must be finite and positive")
)

// Stacker is anything that can list its dimensions in order. Both
// *dim.Stack and *dim.ReviewedStack satisfy it.
type Stacker interface {
	Dimensions() []*dim.Dimension
}

// Method identifies a stack-up method.
type Method string

const (
	MethodClosed   Method = "closed"
	MethodWC       Method = "wc"
	MethodRSS      Method = "rss"
	MethodMRSS     Method = "mrss"
	MethodSixSigma Method = "six_sigma"
)

// Methods lists every method in report order.
var Methods = []Method{MethodClosed, MethodWC, MethodRSS, MethodMRSS, MethodSixSigma}

// Title returns the display name of the method.
func (m Method) Title() string {
	switch m {
	case MethodClosed:
		return "Closed"
	case MethodWC:
		return "WC"
	case MethodRSS:
		return "RSS"
	case MethodMRSS:
		return "MRSS"
	case MethodSixSigma:
		return "'6 Sigma'"
	default:
		return string(m)
	}
}

// ParseMethod maps a method name to a Method.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown method %q", s)
}

// -----------------------------------------------------------------------------
// Methods
// -----------------------------------------------------------------------------

// Closed sums nominals and signed absolute tolerances independently.
//
// Description:
//
//	nominal = Σ dir·nominal·a, upper = Σ a·AbsUpperTol,
//	lower = Σ a·AbsLowerTol. A negative total is stored as a negative
//	dimension with the band mirrored, so the result's absolute bounds are
//	nominal + lower and nominal + upper.
//
// Inputs:
//   - s: The stack.
//   - opts: Extra options for the result dimension.
//
// Outputs:
//   - *dim.Dimension: Named "<stack> - Closed Analysis".
//   - error: ErrEmptyStack.
func Closed(s Stacker, opts ...dim.Option) (*dim.Dimension, error) {
	dims, err := dimsOf(s)
	if err != nil {
		return nil, err
	}
	var nominal, upper, lower float64
	for _, d := range dims {
		a := d.Sensitivity()
		nominal += d.AbsNominal() * a
		upper += d.AbsUpperTol() * a
		lower += d.AbsLowerTol() * a
	}
	tol := tolerance.New(upper, lower)
	if nominal < 0 {
		tol = tolerance.New(-lower, -upper)
	}
	return result(s, MethodClosed, "", nominal, tol, opts)
}

// WC returns the worst case band ± Σ|a·T/2| around the summed medians.
func WC(s Stacker, opts ...dim.Option) (*dim.Dimension, error) {
	dims, err := dimsOf(s)
	if err != nil {
		return nil, err
	}
	return result(s, MethodWC, "", medianSum(dims), tolerance.Symmetric(worstCase(dims)), opts)
}

// RSS returns the root sum square band ± sqrt(Σ(a·T/2)²) around the summed
// medians. Meaningful when every input band spans the same number of
// standard deviations of a normal process.
func RSS(s Stacker, opts ...dim.Option) (*dim.Dimension, error) {
	dims, err := dimsOf(s)
	if err != nil {
		return nil, err
	}
	return result(s, MethodRSS, "(assuming inputs with Normal Dist. & uniform SD)",
		medianSum(dims), tolerance.Symmetric(rss(dims)), opts)
}

// MRSS returns the RSS band widened by the correction factor C_f.
//
// Description:
//
//	C_f = 0.5·(t_wc − t_rss) / (t_rss·(√n − 1)) + 1 and t_mrss = C_f·t_rss,
//	capped at t_wc. For small n the factor alone overshoots WC (two equal
//	bands give 1.5·t_rss > t_wc), so the cap keeps the band between RSS and
//	WC. A stack whose tolerances are all zero gets a zero band.
//
// Outputs:
//   - *dim.Dimension: Named "<stack> - MRSS Analysis".
//   - error: ErrEmptyStack, or stats.ErrTooFewContributors for n < 2.
func MRSS(s Stacker, opts ...dim.Option) (*dim.Dimension, error) {
	dims, err := dimsOf(s)
	if err != nil {
		return nil, err
	}
	tWC, tRSS := worstCase(dims), rss(dims)

	var tMRSS float64
	cf, err := stats.CorrectionFactor(tRSS, tWC, len(dims))
	switch {
	case errors.Is(err, stats.ErrZeroVariance):
		tMRSS = 0
	case err != nil:
		return nil, fmt.Errorf("mrss of %q: %w", nameOf(s), err)
	default:
		tMRSS = math.Min(cf*tRSS, tWC)
	}
	return result(s, MethodMRSS, "(assuming inputs with Normal Dist. & uniform SD)",
		medianSum(dims), tolerance.Symmetric(tMRSS), opts)
}

// SixSigma composes the effective distributions of a reviewed stack.
//
// Description:
//
//	Every contributor is reconciled to its effective standard deviation so
//	differing sigma targets compose on one footing:
//	mean = Σ a·MeanEff, std = sqrt(Σ(a·StdDevEff)²). The result carries
//	Normal(mean, std) and the band ± at·std.
//
// Inputs:
//   - s: The reviewed stack.
//   - at: Sigma multiplier of the reported band. Must be positive.
//   - opts: Extra options for the result dimension.
//
// Outputs:
//   - *dim.Reviewed: Named "<stack> - '6 Sigma' Analysis", sigma = at.
//   - error: ErrEmptyStack, ErrInvalidSigma or dim.ErrMeanOutsideTolerance.
func SixSigma(s *dim.ReviewedStack, at float64, opts ...dim.Option) (*dim.Reviewed, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrEmptyStack
	}
	if !stats.IsFinite(at) || at <= 0 {
		return nil, fmt.Errorf("six sigma at %v: %w", at, ErrInvalidSigma)
	}

	var mean float64
	effs := make([]float64, 0, s.Len())
	for _, r := range s.Reviewed() {
		a := r.Dimension().Sensitivity()
		eff, err := r.StdDevEff()
		if err != nil {
			return nil, fmt.Errorf("six sigma of %q: %w", s.Name, err)
		}
		mean += a * r.MeanEff()
		effs = append(effs, a*eff)
	}
	std := stats.RSS(effs...)

	d, err := result(s, MethodSixSigma, "(assuming inputs with Normal Dist.)",
		mean, tolerance.Symmetric(at*std), opts)
	if err != nil {
		return nil, err
	}
	n, err := dist.NewNormal(mean, std)
	if err != nil {
		return nil, fmt.Errorf("six sigma of %q: %w", s.Name, err)
	}
	return dim.Review(d, dim.WithDistribution(n), dim.WithTargetProcessSigma(at))
}

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

func dimsOf(s Stacker) ([]*dim.Dimension, error) {
	if s == nil {
		return nil, ErrEmptyStack
	}
	dims := s.Dimensions()
	if len(dims) == 0 {
		return nil, fmt.Errorf("%q: %w", nameOf(s), ErrEmptyStack)
	}
	return dims, nil
}

func medianSum(dims []*dim.Dimension) float64 {
	var sum float64
	for _, d := range dims {
		sum += d.AbsMedian() * d.Sensitivity()
	}
	return sum
}

func worstCase(dims []*dim.Dimension) float64 {
	var sum float64
	for _, d := range dims {
		sum += math.Abs(d.Sensitivity() * d.Tolerance().Half())
	}
	return sum
}

func rss(dims []*dim.Dimension) float64 {
	halves := make([]float64, len(dims))
	for i, d := range dims {
		halves[i] = d.Sensitivity() * d.Tolerance().Half()
	}
	return stats.RSS(halves...)
}

func nameOf(s Stacker) string {
	switch v := s.(type) {
	case *dim.Stack:
		return v.Name
	case *dim.ReviewedStack:
		return v.Name
	default:
		return "Stack"
	}
}

func result(s Stacker, m Method, desc string, nominal float64, tol tolerance.Bilateral, opts []dim.Option) (*dim.Dimension, error) {
	all := append([]dim.Option{
		dim.WithName(fmt.Sprintf("%s - %s Analysis", nameOf(s), m.Title())),
		dim.WithDescription(desc),
	}, opts...)
	d, err := dim.New(nominal, tol, all...)
	if err != nil {
		return nil, fmt.Errorf("%s of %q: %w", m, nameOf(s), err)
	}
	return d, nil
}
