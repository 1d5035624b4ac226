// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dist provides the probability laws a reviewed dimension can carry.
//
// # Variants
//
// Three variants implement Distribution and are told apart with Kind:
//
//   - Uniform: flat density between two bounds
//   - Normal: Gaussian, optionally fitted from measurement data
//   - NormalScreened: a Normal whose parts outside hard limits were scrapped
//     by a go/no-go fixture
//
// All values are expressed in the assembly's signed coordinate, so a
// distribution attached to a negative-direction dimension has a negative
// mean.
//
// # Thread Safety
//
// Distributions are immutable after construction and safe for concurrent
// use. Sample draws from the caller's *rand.Rand, which is not.
package dist

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	// ErrInvalidStdDev indicates a negative or non-finite standard deviation.
	ErrInvalidStdDev = errors.New("standard deviation must be finite and non-negative")

	// ErrInvalidParameter indicates a non-finite mean or bound.
	ErrInvalidParameter = errors.New("distribution parameter must be finite")

	// ErrInsufficientSamples indicates a fit was attempted on empty data.
	ErrInsufficientSamples = errors.New("insufficient samples to fit distribution")
)

// Kind tags a Distribution variant.
type Kind int

const (
	// KindUniform tags *Uniform.
	KindUniform Kind = iota
	// KindNormal tags *Normal.
	KindNormal
	// KindNormalScreened tags *NormalScreened.
	KindNormalScreened
)

// String returns the variant name used in stack files.
func (k Kind) String() string {
	switch k {
	case KindUniform:
		return "uniform"
	case KindNormal:
		return "normal"
	case KindNormalScreened:
		return "normal_screened"
	default:
		return "unknown"
	}
}

// Distribution is the capability set shared by every variant.
type Distribution interface {
	fmt.Stringer

	// Kind identifies the concrete variant.
	Kind() Kind

	// PDF returns the probability density at x.
	PDF(x float64) float64

	// CDF returns the cumulative probability at x.
	CDF(x float64) float64

	// Sample draws up to n values using rng. It returns nil when n <= 0.
	Sample(rng *rand.Rand, n int) []float64

	// Mean returns the location of the distribution.
	Mean() float64

	// StdDev returns the spread of the distribution.
	StdDev() float64
}

// NewRand returns a deterministic PCG source seeded with seed.
//
// Sampling takes an explicit generator so repeated runs can be reproduced.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
