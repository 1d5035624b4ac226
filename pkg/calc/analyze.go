// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package calc

import (
	"github.com/AleutianAI/tolstack/pkg/dim"
)

// DefaultSixSigmaAt is the sigma multiplier used when none is chosen.
const DefaultSixSigmaAt = 3.0

// Analysis holds the result of every method run on one stack.
//
// A method that failed has a nil result and an entry in Errors. A failing
// method never prevents the others from running.
type Analysis struct {
	Stack    string
	Closed   *dim.Dimension
	WC       *dim.Dimension
	RSS      *dim.Dimension
	MRSS     *dim.Dimension
	SixSigma *dim.Reviewed
	Errors   map[Method]error
}

// Dimension returns the plain result of m. For MethodSixSigma it is the
// wrapped dimension of the reviewed result.
func (a *Analysis) Dimension(m Method) (*dim.Dimension, bool) {
	var d *dim.Dimension
	switch m {
	case MethodClosed:
		d = a.Closed
	case MethodWC:
		d = a.WC
	case MethodRSS:
		d = a.RSS
	case MethodMRSS:
		d = a.MRSS
	case MethodSixSigma:
		if a.SixSigma != nil {
			d = a.SixSigma.Dimension()
		}
	}
	return d, d != nil
}

// Err returns the error recorded for m, if any.
func (a *Analysis) Err(m Method) error {
	return a.Errors[m]
}

// AnalyzeOption configures Analyze.
type AnalyzeOption func(*analyzeOptions)

type analyzeOptions struct {
	at      float64
	dimOpts []dim.Option
}

// WithSixSigmaAt sets the sigma multiplier of the six sigma band.
// Default: 3.
func WithSixSigmaAt(at float64) AnalyzeOption {
	return func(o *analyzeOptions) { o.at = at }
}

// WithResultOptions passes options to every result dimension.
func WithResultOptions(opts ...dim.Option) AnalyzeOption {
	return func(o *analyzeOptions) { o.dimOpts = append(o.dimOpts, opts...) }
}

// Analyze runs every applicable method on s.
//
// Description:
//
//	Closed, WC, RSS and MRSS run on any stack. SixSigma runs only when s is
//	a *dim.ReviewedStack. Errors are collected per method; MRSS on a single
//	dimension is a recorded error, not a failure of the analysis.
//
// Inputs:
//   - s: A *dim.Stack or *dim.ReviewedStack.
//   - opts: Six sigma multiplier and result dimension options.
//
// Outputs:
//   - *Analysis: The results. Never nil.
func Analyze(s Stacker, opts ...AnalyzeOption) *Analysis {
	o := analyzeOptions{at: DefaultSixSigmaAt}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Analysis{Errors: make(map[Method]error)}
	if s != nil {
		a.Stack = nameOf(s)
	}
	basic := []struct {
		m   Method
		fn  func(Stacker, ...dim.Option) (*dim.Dimension, error)
		dst **dim.Dimension
	}{
		{MethodClosed, Closed, &a.Closed},
		{MethodWC, WC, &a.WC},
		{MethodRSS, RSS, &a.RSS},
		{MethodMRSS, MRSS, &a.MRSS},
	}
	for _, b := range basic {
		d, err := b.fn(s, o.dimOpts...)
		if err != nil {
			a.Errors[b.m] = err
			continue
		}
		*b.dst = d
	}

	if rs, ok := s.(*dim.ReviewedStack); ok {
		six, err := SixSigma(rs, o.at, o.dimOpts...)
		if err != nil {
			a.Errors[MethodSixSigma] = err
		} else {
			a.SixSigma = six
		}
	}
	return a
}
