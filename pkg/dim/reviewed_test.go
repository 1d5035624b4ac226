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
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tolstack/pkg/dist"
	"github.com/AleutianAI/tolstack/pkg/tolerance"
)

func mustReview(t *testing.T, d *Dimension, opts ...ReviewOption) *Reviewed {
	t.Helper()
	r, err := Review(d, append([]ReviewOption{WithLogger(discard)}, opts...)...)
	require.NoError(t, err)
	return r
}

// -----------------------------------------------------------------------------
// Inference
// -----------------------------------------------------------------------------

func TestReview_InfersNormal(t *testing.T) {
	d := mustNew(t, 1, tolerance.Symmetric(1))

	t.Run("default sigma", func(t *testing.T) {
		r := mustReview(t, d)
		require.NotNil(t, r.Distribution())
		assert.Equal(t, dist.KindNormal, r.Distribution().Kind())
		assert.InDelta(t, 1.0, r.Distribution().Mean(), eps)
		assert.InDelta(t, 0.33333, r.Distribution().StdDev(), 1e-5)
		assert.Equal(t, DefaultTargetProcessSigma, r.TargetProcessSigma())
		assert.True(t, r.Assumptions().Distribution)
		assert.True(t, r.Assumptions().ProcessSigma)
	})

	t.Run("six sigma", func(t *testing.T) {
		r := mustReview(t, d, WithTargetProcessSigma(6))
		assert.InDelta(t, 0.16667, r.Distribution().StdDev(), 1e-5)
		assert.False(t, r.Assumptions().ProcessSigma)
	})

	t.Run("negative dimension lives in absolute coordinates", func(t *testing.T) {
		neg := mustNew(t, -1.75, tolerance.Asymmetric(0, -0.06))
		r := mustReview(t, neg)
		assert.InDelta(t, -1.72, r.Distribution().Mean(), eps)
		assert.InDelta(t, 0.01, r.Distribution().StdDev(), eps)
		assert.InDelta(t, 1.0, r.Cp(), 1e-9)
		assert.InDelta(t, 1.0, r.Cpk(), 1e-9)
		assert.InDelta(t, 0.9973, r.YieldProbability(), 1e-4)
	})
}

func TestReview_LogsAssumption(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := mustNew(t, 1, tolerance.Symmetric(1), WithName("shim"))
	_, err := Review(d, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "assumed normal distribution")
	assert.Contains(t, buf.String(), "dimension=shim")

	buf.Reset()
	n, err := dist.NewNormal(1, 0.1)
	require.NoError(t, err)
	_, err = Review(d, WithLogger(logger), WithDistribution(n))
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "supplied distributions are not logged")
}

func TestReview_Invalid(t *testing.T) {
	d := mustNew(t, 1, tolerance.Symmetric(1))

	for _, sigma := range []float64{0, -3, math.NaN(), math.Inf(1)} {
		_, err := Review(d, WithTargetProcessSigma(sigma))
		assert.ErrorIs(t, err, ErrInvalidProcessSigma, "sigma %v", sigma)
	}

	_, err := Review(nil)
	assert.ErrorIs(t, err, ErrNilDimension)

	_, err = Review(d, WithSkew(math.NaN()), WithLogger(discard))
	assert.ErrorIs(t, err, ErrNotFinite)
}

// -----------------------------------------------------------------------------
// Capability
// -----------------------------------------------------------------------------

// Published MITCalc case: 208 ± 0.036 at 6σ with skew 0.25.
func TestReviewed_SkewedCapability(t *testing.T) {
	d := mustNew(t, 208, tolerance.Symmetric(0.036))
	r := mustReview(t, d, WithTargetProcessSigma(6), WithSkew(0.25))

	assert.InDelta(t, 208.009, r.Distribution().Mean(), 1e-9)
	assert.InDelta(t, 0.006, r.Distribution().StdDev(), 1e-12)
	assert.InDelta(t, 2.0, r.Cp(), 1e-5)
	assert.InDelta(t, 1.5, r.Cpk(), 1e-5)
	assert.InDelta(t, 0.25, r.K(), 1e-5)
	assert.InDelta(t, 208.0, r.MeanEff(), 1e-9)

	eff, err := r.StdDevEff()
	require.NoError(t, err)
	assert.InDelta(t, 0.008, eff, 1e-5)
	assert.InDelta(t, 4.5, r.ProcessSigmaEff(), 1e-5)

	assert.InDelta(t, 0.9999966, r.YieldProbability(), 1e-7)
	assert.InDelta(t, 3.4, r.RejectPPM(), 0.05)
}

func TestReviewed_AssumeNormalDistSkewed(t *testing.T) {
	d := mustNew(t, 208, tolerance.Symmetric(0.036))
	r := mustReview(t, d, WithTargetProcessSigma(6))
	assert.InDelta(t, 0.0, r.K(), 1e-12)

	skewed := r.AssumeNormalDistSkewed(0.25)
	assert.InDelta(t, 0.25, skewed.K(), 1e-5)
	assert.InDelta(t, 1.5, skewed.Cpk(), 1e-5)
	assert.InDelta(t, 0.0, r.K(), 1e-12, "receiver untouched")

	back := skewed.AssumeNormalDist()
	assert.InDelta(t, 208.0, back.Distribution().Mean(), 1e-9)
	assert.True(t, back.Assumptions().Distribution)
}

func TestReviewed_SignFlip(t *testing.T) {
	for _, skew := range []float64{0, 0.2, -0.3} {
		pos := mustReview(t, mustNew(t, 5, tolerance.Asymmetric(0.1, -0.05)), WithSkew(skew))
		neg := mustReview(t, mustNew(t, -5, tolerance.Asymmetric(0.1, -0.05)), WithSkew(skew))

		assert.InDelta(t, pos.Cp(), neg.Cp(), 1e-9)
		assert.InDelta(t, pos.Cpk(), neg.Cpk(), 1e-9)
		assert.InDelta(t, pos.K(), neg.K(), 1e-9)
		assert.InDelta(t, pos.YieldProbability(), neg.YieldProbability(), 1e-9)
		assert.InDelta(t, -pos.MeanEff(), neg.MeanEff(), 1e-9)

		pe, err := pos.StdDevEff()
		require.NoError(t, err)
		ne, err := neg.StdDevEff()
		require.NoError(t, err)
		assert.InDelta(t, pe, ne, 1e-9)
	}
}

func TestReviewed_FittedDistribution(t *testing.T) {
	t.Run("positive", func(t *testing.T) {
		fit, err := dist.Fit([]float64{1.1, 0.9})
		require.NoError(t, err)
		r := mustReview(t, mustNew(t, 1, tolerance.Symmetric(0.3)), WithDistribution(fit))

		assert.False(t, r.Assumptions().Distribution)
		assert.InDelta(t, 0.9973, r.YieldProbability(), 1e-4)
	})

	t.Run("negative", func(t *testing.T) {
		fit, err := dist.Fit([]float64{-1.1, -0.9})
		require.NoError(t, err)
		r := mustReview(t, mustNew(t, -1, tolerance.Symmetric(0.3)), WithDistribution(fit))

		assert.InDelta(t, 0.9973, r.YieldProbability(), 1e-4)
	})
}

func TestReviewed_PointMass(t *testing.T) {
	n, err := dist.NewNormal(1, 0)
	require.NoError(t, err)
	r := mustReview(t, mustNew(t, 1, tolerance.Symmetric(0.3)), WithDistribution(n))

	assert.Zero(t, r.Cp())
	assert.Zero(t, r.Cpk())
	eff, err := r.StdDevEff()
	require.NoError(t, err)
	assert.Zero(t, eff)
	assert.Zero(t, r.ProcessSigmaEff())
	assert.Equal(t, 1.0, r.YieldProbability())
	assert.False(t, math.IsNaN(r.RejectPPM()))
}

func TestReviewed_MeanOutsideTolerance(t *testing.T) {
	n, err := dist.NewNormal(2, 0.1)
	require.NoError(t, err)
	r := mustReview(t, mustNew(t, 1, tolerance.Symmetric(0.3)), WithDistribution(n))

	_, err = r.StdDevEff()
	assert.ErrorIs(t, err, ErrMeanOutsideTolerance)

	v, ok := r.Fields().Get(KeyStdDevEff)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestReviewed_UniformDistribution(t *testing.T) {
	u, err := dist.NewUniform(0.7, 1.3)
	require.NoError(t, err)
	r := mustReview(t, mustNew(t, 1, tolerance.Symmetric(0.3)), WithDistribution(u))

	assert.InDelta(t, 1.0, r.YieldProbability(), eps)
	assert.InDelta(t, 0.6/(6*u.StdDev()), r.Cp(), eps)
}

// -----------------------------------------------------------------------------
// Display
// -----------------------------------------------------------------------------

func TestReviewed_Fields(t *testing.T) {
	d := mustNew(t, 208, tolerance.Symmetric(0.036), WithIDGenerator(NewSequence(0)))
	r := mustReview(t, d, WithTargetProcessSigma(6), WithSkew(0.25))
	f := r.Fields()

	assert.Equal(t, KeyID, f[0].Key)
	get := func(k string) string {
		v, ok := f.Get(k)
		require.True(t, ok, k)
		return v
	}
	assert.Equal(t, "± 6σ", get(KeyProcessSigma))
	assert.Equal(t, "0.25", get(KeySkew))
	assert.Equal(t, "2", get(KeyCp))
	assert.Equal(t, "1.5", get(KeyCpk))
	assert.Equal(t, "208", get(KeyMeanEff))
	assert.Equal(t, "0.008", get(KeyStdDevEff))
	assert.Equal(t, "Normal Dist. μ=208.009, σ=0.006", get(KeyDistribution))
}

func TestReviewed_String(t *testing.T) {
	d := mustNew(t, 1, tolerance.Symmetric(0.1), WithName("A"), WithIDGenerator(NewSequence(0)))
	r := mustReview(t, d)
	assert.Equal(t, "0: A  +1 ± 0.1 @ ± 3σ & k=0", r.String())
}
