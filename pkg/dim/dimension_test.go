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
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tolstack/pkg/tolerance"
)

const eps = 1e-9

func mustNew(t *testing.T, nominal float64, tol tolerance.Bilateral, opts ...Option) *Dimension {
	t.Helper()
	d, err := New(nominal, tol, opts...)
	require.NoError(t, err)
	return d
}

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	d := mustNew(t, 10, tolerance.Symmetric(0.1))

	assert.Equal(t, 10.0, d.Nominal())
	assert.Equal(t, 1.0, d.Dir())
	assert.Equal(t, 1.0, d.Sensitivity())
	assert.Equal(t, "Dimension", d.Name())
	assert.Empty(t, d.Description())
	assert.Equal(t, Positive, d.DirSymbol())
}

func TestNew_Direction(t *testing.T) {
	tests := []struct {
		name    string
		nominal float64
		a       float64
		wantDir float64
		wantA   float64
	}{
		{"positive", 10, 1, 1, 1},
		{"negative nominal", -10, 1, -1, 1},
		{"negative sensitivity", 10, -2, -1, 2},
		{"both negative", -10, -0.5, 1, 0.5},
		{"zero nominal", 0, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustNew(t, tt.nominal, tolerance.Symmetric(1), WithSensitivity(tt.a))
			assert.Equal(t, tt.wantDir, d.Dir())
			assert.Equal(t, tt.wantA, d.Sensitivity())
			assert.Equal(t, math.Abs(tt.nominal), d.Nominal())
			assert.GreaterOrEqual(t, d.Nominal(), 0.0)
		})
	}
}

func TestNew_NotFinite(t *testing.T) {
	_, err := New(math.NaN(), tolerance.Symmetric(1))
	assert.ErrorIs(t, err, ErrNotFinite)

	_, err = New(1, tolerance.Symmetric(1), WithSensitivity(math.Inf(1)))
	assert.ErrorIs(t, err, ErrNotFinite)

	_, err = New(1, tolerance.Symmetric(math.Inf(1)))
	assert.ErrorIs(t, err, ErrNotFinite)
}

func TestNew_IDs(t *testing.T) {
	seq := NewSequence(5)
	a := mustNew(t, 1, tolerance.Symmetric(1), WithIDGenerator(seq))
	b := mustNew(t, 1, tolerance.Symmetric(1), WithIDGenerator(seq))

	assert.Equal(t, int64(5), a.ID())
	assert.Equal(t, int64(6), b.ID())
}

func TestSequence_Concurrent(t *testing.T) {
	seq := NewSequence(0)
	seen := sync.Map{}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, dup := seen.LoadOrStore(seq.NextID(), struct{}{})
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), seq.NextID())
}

// -----------------------------------------------------------------------------
// Bounds
// -----------------------------------------------------------------------------

func TestBounds_Positive(t *testing.T) {
	d := mustNew(t, 10, tolerance.Asymmetric(0.2, -0.1))

	assert.InDelta(t, 9.9, d.RelLower(), eps)
	assert.InDelta(t, 10.2, d.RelUpper(), eps)
	assert.InDelta(t, 10.05, d.Median(), eps)
	assert.InDelta(t, 10.0, d.AbsNominal(), eps)
	assert.InDelta(t, 0.2, d.AbsUpperTol(), eps)
	assert.InDelta(t, -0.1, d.AbsLowerTol(), eps)
	assert.InDelta(t, 10.2, d.AbsUpper(), eps)
	assert.InDelta(t, 9.9, d.AbsLower(), eps)
	assert.InDelta(t, 10.05, d.AbsMedian(), eps)
}

func TestBounds_Negative(t *testing.T) {
	d := mustNew(t, -10, tolerance.Asymmetric(0.2, -0.1))

	assert.Equal(t, Negative, d.DirSymbol())
	assert.InDelta(t, 9.9, d.RelLower(), eps)
	assert.InDelta(t, 10.2, d.RelUpper(), eps)
	assert.InDelta(t, -10.0, d.AbsNominal(), eps)
	assert.InDelta(t, 0.1, d.AbsUpperTol(), eps)
	assert.InDelta(t, -0.2, d.AbsLowerTol(), eps)
	assert.InDelta(t, -9.9, d.AbsUpper(), eps)
	assert.InDelta(t, -10.2, d.AbsLower(), eps)
	assert.InDelta(t, -10.05, d.AbsMedian(), eps)
}

func TestBounds_Ordered(t *testing.T) {
	tols := []tolerance.Bilateral{
		tolerance.Symmetric(0.5),
		tolerance.Asymmetric(0, -0.06),
		tolerance.Asymmetric(0.12, 0),
		tolerance.Asymmetric(0.005, 0.004),
		tolerance.Asymmetric(-0.3, 0.1),
	}
	for _, nom := range []float64{-23, -1.75, 0, 0.032, 208} {
		for _, a := range []float64{1, -1, 0.5146} {
			for _, tol := range tols {
				d := mustNew(t, nom, tol, WithSensitivity(a))
				assert.LessOrEqual(t, d.RelLower(), d.RelUpper())
				assert.LessOrEqual(t, d.AbsLower(), d.AbsUpper())
				assert.InDelta(t, d.Tolerance().T(), d.AbsUpper()-d.AbsLower(), eps)
			}
		}
	}
}

func TestConvertToBilateral(t *testing.T) {
	for _, nom := range []float64{10, -10} {
		d := mustNew(t, nom, tolerance.Asymmetric(0.2, -0.1), WithName("bore"))
		b := d.ConvertToBilateral()

		assert.Equal(t, d.ID(), b.ID())
		assert.Equal(t, d.Dir(), b.Dir())
		assert.Equal(t, "bore", b.Name())
		assert.InDelta(t, 10.05, b.Nominal(), eps)
		assert.True(t, b.Tolerance().IsSymmetric())
		assert.InDelta(t, 0.15, b.Tolerance().Upper(), eps)
		assert.InDelta(t, d.AbsLower(), b.AbsLower(), eps, "round trip of lower bound")
		assert.InDelta(t, d.AbsUpper(), b.AbsUpper(), eps, "round trip of upper bound")

		again := b.ConvertToBilateral()
		assert.InDelta(t, b.Nominal(), again.Nominal(), eps, "idempotent")
		assert.InDelta(t, b.Tolerance().Upper(), again.Tolerance().Upper(), eps)

		assert.InDelta(t, 10.0, d.Nominal(), eps, "original untouched")
	}
}

func TestClone(t *testing.T) {
	seq := NewSequence(0)
	d := mustNew(t, 3, tolerance.Symmetric(0.1), WithName("pin"), WithIDGenerator(seq))

	c := d.CloneWith(seq, "pin copy")
	assert.NotEqual(t, d.ID(), c.ID())
	assert.Equal(t, "pin copy", c.Name())
	assert.Equal(t, "pin", d.Name())
	assert.Equal(t, d.Nominal(), c.Nominal())

	same := d.Clone("")
	assert.Equal(t, "pin", same.Name())
	assert.NotEqual(t, d.ID(), same.ID())
}

// -----------------------------------------------------------------------------
// Display
// -----------------------------------------------------------------------------

func TestDimension_Fields(t *testing.T) {
	d := mustNew(t, -10, tolerance.Asymmetric(0.2, -0.1),
		WithName("gap"), WithDescription("housing"), WithIDGenerator(NewSequence(7)))
	f := d.Fields()

	assert.Equal(t, []string{
		KeyID, KeyName, KeyDescription, KeyDir, KeyNominal, KeyTolerance,
		KeySensitivity, KeyRelativeBounds, KeyAbsoluteBounds,
	}, f.Keys())

	get := func(k string) string {
		v, ok := f.Get(k)
		require.True(t, ok, k)
		return v
	}
	assert.Equal(t, "7", get(KeyID))
	assert.Equal(t, "-", get(KeyDir))
	assert.Equal(t, "10", get(KeyNominal))
	assert.Equal(t, "+0.2 / -0.1", get(KeyTolerance))
	assert.Equal(t, "[9.9, 10.2]", get(KeyRelativeBounds))
	assert.Equal(t, "[-10.2, -9.9]", get(KeyAbsoluteBounds))

	_, ok := f.Get("missing")
	assert.False(t, ok)
}

func TestDimension_String(t *testing.T) {
	d := mustNew(t, 1, tolerance.Symmetric(0.1),
		WithName("A"), WithDescription("desc"), WithIDGenerator(NewSequence(3)))
	assert.Equal(t, "3: A desc +1 ± 0.1", d.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0.12346", Num(0.123456))
	assert.Equal(t, "99.99966023", Percent(0.9999966023))
	assert.Equal(t, "3.4", PPM(3.4e-6))
	assert.Equal(t, "[-1, 2]", Bounds(-1, 2))
}
