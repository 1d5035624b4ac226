// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dim models toleranced dimensions and the stacks they form.
//
// # Sign Convention
//
// A Dimension stores its nominal as a non-negative magnitude plus a
// direction of +1 or -1. Tolerances are always written against the
// magnitude, as they appear on a drawing. The "absolute" accessors apply
// the direction and reorder the bounds, so AbsLower <= AbsUpper holds for
// every dimension regardless of sign.
//
// # Composition
//
// Reviewed wraps a Dimension with a Distribution and a target process
// sigma. It does not embed the Dimension: plain and reviewed dimensions are
// different things and conversions between them are explicit.
//
// # Thread Safety
//
// Dimension and Reviewed are immutable after construction. Stack and
// ReviewedStack are not safe for concurrent mutation.
package dim

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/tolstack/pkg/stats"
	"github.com/AleutianAI/tolstack/pkg/tolerance"
)

// ErrNotFinite indicates a NaN or infinite numeric input.
var ErrNotFinite = errors.New("value must be finite")

// Direction symbols.
const (
	Positive = "+"
	Negative = "-"
)

// Dimension is a single toleranced quantity in a stack.
type Dimension struct {
	id          int64
	nominal     float64
	dir         float64
	tol         tolerance.Bilateral
	a           float64
	name        string
	description string
}

// Option configures New.
type Option func(*options)

type options struct {
	a           float64
	name        string
	description string
	ids         IDGenerator
}

// WithSensitivity sets the sensitivity coefficient a. A negative a flips
// the direction and is stored as its magnitude. Default: 1.
func WithSensitivity(a float64) Option {
	return func(o *options) { o.a = a }
}

// WithName sets the display name. Default: "Dimension".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithDescription sets the description.
func WithDescription(desc string) Option {
	return func(o *options) { o.description = desc }
}

// WithIDGenerator draws the id from g instead of the process-wide sequence.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// New creates a Dimension from a signed nominal value.
//
// Description:
//
//	The direction is sign(nominal) * sign(a) and both nominal and a are
//	stored as magnitudes. A zero nominal counts as positive.
//
// Inputs:
//   - nominal: Signed nominal value. Must be finite.
//   - tol: Tolerance band written against the magnitude.
//   - opts: Sensitivity, name, description, id source.
//
// Outputs:
//   - *Dimension: The dimension.
//   - error: ErrNotFinite for NaN or infinite nominal or sensitivity.
func New(nominal float64, tol tolerance.Bilateral, opts ...Option) (*Dimension, error) {
	o := options{a: 1, name: "Dimension", ids: defaultIDs}
	for _, opt := range opts {
		opt(&o)
	}
	if !stats.IsFinite(nominal) {
		return nil, fmt.Errorf("nominal %v: %w", nominal, ErrNotFinite)
	}
	if !stats.IsFinite(o.a) {
		return nil, fmt.Errorf("sensitivity %v: %w", o.a, ErrNotFinite)
	}
	if !stats.IsFinite(tol.Upper()) || !stats.IsFinite(tol.Lower()) {
		return nil, fmt.Errorf("tolerance %s: %w", tol, ErrNotFinite)
	}
	if o.ids == nil {
		o.ids = defaultIDs
	}

	return &Dimension{
		id:          o.ids.NextID(),
		nominal:     abs(nominal),
		dir:         stats.Sign(nominal) * stats.Sign(o.a),
		tol:         tol,
		a:           abs(o.a),
		name:        o.name,
		description: o.description,
	}, nil
}

// ID returns the unique identifier.
func (d *Dimension) ID() int64 { return d.id }

// Name returns the display name.
func (d *Dimension) Name() string { return d.name }

// Description returns the description.
func (d *Dimension) Description() string { return d.description }

// Nominal returns the nominal magnitude. Never negative.
func (d *Dimension) Nominal() float64 { return d.nominal }

// Dir returns +1 or -1.
func (d *Dimension) Dir() float64 { return d.dir }

// DirSymbol returns "+" or "-".
func (d *Dimension) DirSymbol() string {
	if d.dir >= 0 {
		return Positive
	}
	return Negative
}

// Tolerance returns the band as written against the magnitude.
func (d *Dimension) Tolerance() tolerance.Bilateral { return d.tol }

// Sensitivity returns the sensitivity coefficient a. Never negative.
func (d *Dimension) Sensitivity() float64 { return d.a }

// AbsNominal returns the signed nominal, Dir * Nominal.
func (d *Dimension) AbsNominal() float64 { return d.dir * d.nominal }

// RelLower returns Nominal + lower offset.
func (d *Dimension) RelLower() float64 { return d.nominal + d.tol.Lower() }

// RelUpper returns Nominal + upper offset.
func (d *Dimension) RelUpper() float64 { return d.nominal + d.tol.Upper() }

// Median returns the middle of the relative bounds.
func (d *Dimension) Median() float64 { return (d.RelLower() + d.RelUpper()) / 2 }

// AbsMedian returns the signed median, Dir * Median.
func (d *Dimension) AbsMedian() float64 { return d.dir * d.Median() }

// AbsTolerance returns the band in signed coordinates. For a negative
// dimension +u / l becomes +(-l) / -u.
func (d *Dimension) AbsTolerance() tolerance.Bilateral {
	if d.dir >= 0 {
		return d.tol
	}
	return d.tol.Negate()
}

// AbsUpperTol returns the upper offset in signed coordinates.
func (d *Dimension) AbsUpperTol() float64 { return d.AbsTolerance().Upper() }

// AbsLowerTol returns the lower offset in signed coordinates.
func (d *Dimension) AbsLowerTol() float64 { return d.AbsTolerance().Lower() }

// AbsUpper returns the largest signed value the dimension can take.
func (d *Dimension) AbsUpper() float64 { return d.AbsNominal() + d.AbsUpperTol() }

// AbsLower returns the smallest signed value the dimension can take.
func (d *Dimension) AbsLower() float64 { return d.AbsNominal() + d.AbsLowerTol() }

// ConvertToBilateral returns the equivalent symmetric dimension.
//
// Description:
//
//	The median becomes the nominal and the band becomes ± T/2. The id,
//	direction, sensitivity and labels are kept, and so are AbsLower and
//	AbsUpper. Converting an already symmetric dimension is a no-op.
func (d *Dimension) ConvertToBilateral() *Dimension {
	out := *d
	out.nominal = d.Median()
	out.tol = tolerance.Symmetric(d.tol.Half())
	return &out
}

// Clone copies the dimension under a fresh id from the process-wide
// sequence. An empty name keeps the current one.
func (d *Dimension) Clone(name string) *Dimension {
	return d.CloneWith(defaultIDs, name)
}

// CloneWith copies the dimension under a fresh id from ids.
func (d *Dimension) CloneWith(ids IDGenerator, name string) *Dimension {
	out := *d
	out.id = ids.NextID()
	if name != "" {
		out.name = name
	}
	return &out
}

// Fields returns the display mapping of the dimension.
func (d *Dimension) Fields() Fields {
	return Fields{
		{KeyID, fmt.Sprint(d.id)},
		{KeyName, d.name},
		{KeyDescription, d.description},
		{KeyDir, d.DirSymbol()},
		{KeyNominal, Num(d.nominal)},
		{KeyTolerance, d.tol.String()},
		{KeySensitivity, Num(d.a)},
		{KeyRelativeBounds, Bounds(d.RelLower(), d.RelUpper())},
		{KeyAbsoluteBounds, Bounds(d.AbsLower(), d.AbsUpper())},
	}
}

func (d *Dimension) String() string {
	return fmt.Sprintf("%d: %s %s %s%s %s",
		d.id, d.name, d.description, d.DirSymbol(), Num(d.nominal), d.tol)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
