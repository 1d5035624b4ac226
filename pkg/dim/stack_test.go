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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tolstack/pkg/tolerance"
)

func TestStack_Append(t *testing.T) {
	s := NewStack("", "")
	assert.Equal(t, "Stack", s.Name)
	assert.Zero(t, s.Len())

	a := mustNew(t, 10, tolerance.Symmetric(0.1))
	b := mustNew(t, -4, tolerance.Asymmetric(0.2, -0.1))
	s.Append(a)
	s.Append(b)

	require.Equal(t, 2, s.Len())
	assert.Same(t, a, s.Dimensions()[0])
	assert.Same(t, b, s.Dimensions()[1])
}

func TestStack_SharedDimension(t *testing.T) {
	d := mustNew(t, 10, tolerance.Symmetric(0.1))
	s1 := NewStack("one", "", d)
	s2 := NewStack("two", "", d)
	assert.Same(t, s1.Dims[0], s2.Dims[0])
}

func TestStack_Review(t *testing.T) {
	s := NewStack("gap", "housing to shaft",
		mustNew(t, 10, tolerance.Symmetric(0.1)),
		mustNew(t, -4, tolerance.Asymmetric(0.2, -0.1)),
	)

	rs, err := s.Review(3, WithLogger(discard))
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "gap", rs.Name)
	assert.Len(t, rs.Assumed(), 2)
	for _, r := range rs.Reviewed() {
		assert.True(t, r.Assumptions().Distribution)
		assert.Equal(t, 3.0, r.TargetProcessSigma())
	}

	basic := rs.ToBasic()
	assert.Equal(t, s.Name, basic.Name)
	require.Equal(t, s.Len(), basic.Len())
	for i := range s.Dims {
		assert.Same(t, s.Dims[i], basic.Dims[i])
	}

	_, err = s.Review(0)
	assert.ErrorIs(t, err, ErrInvalidProcessSigma)
}

func TestStack_ReviewLogsSummaryToCallerLogger(t *testing.T) {
	var global, own bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&global, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := NewStack("gap", "", mustNew(t, 10, tolerance.Symmetric(0.1)))
	_, err := s.Review(3, WithLogger(slog.New(slog.NewTextHandler(&own, nil))))
	require.NoError(t, err)

	assert.Contains(t, own.String(), "reviewed stack with assumed normal distributions")
	assert.Empty(t, global.String())

	_, err = s.Review(3)
	require.NoError(t, err)
	assert.Contains(t, global.String(), "reviewed stack with assumed normal distributions")
}

func TestReviewedStack_Assumed(t *testing.T) {
	d := mustNew(t, 10, tolerance.Symmetric(0.1))
	explicitSigma := mustReview(t, d, WithTargetProcessSigma(3))
	inferred := mustReview(t, d)

	rs := NewReviewedStack("mixed", "", inferred)
	rs.Append(explicitSigma)
	assert.Len(t, rs.Assumed(), 2, "inferred distributions count as assumptions")
	assert.Len(t, rs.Rows(), 2)
}

func TestStack_Chain(t *testing.T) {
	s := NewStack("chain", "",
		mustNew(t, 10, tolerance.Symmetric(0.1), WithName("a")),
		mustNew(t, -4, tolerance.Asymmetric(0.2, -0.1), WithName("b")),
	)
	links := s.Chain()
	require.Len(t, links, 2)

	assert.Equal(t, "a", links[0].Name)
	assert.InDelta(t, 0, links[0].Start, eps)
	assert.InDelta(t, 10, links[0].End, eps)
	assert.InDelta(t, 9.9, links[0].Lower, eps)
	assert.InDelta(t, 10.1, links[0].Upper, eps)

	assert.InDelta(t, 10, links[1].Start, eps)
	assert.InDelta(t, 6, links[1].End, eps)
	assert.InDelta(t, 5.8, links[1].Lower, eps)
	assert.InDelta(t, 6.1, links[1].Upper, eps)

	rs, err := s.Review(3, WithLogger(discard))
	require.NoError(t, err)
	assert.Equal(t, links, rs.Chain())
}

func TestStack_RowsAndString(t *testing.T) {
	s := NewStack("gap", "desc",
		mustNew(t, 10, tolerance.Symmetric(0.1), WithName("a")),
		mustNew(t, -4, tolerance.Symmetric(0.2), WithName("b")),
	)
	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].Keys(), rows[1].Keys())

	out := s.String()
	assert.True(t, strings.HasPrefix(out, "gap: desc"))
	assert.Contains(t, out, "a ")
	assert.Contains(t, out, "-4 ± 0.2")
}
