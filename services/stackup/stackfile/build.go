// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stackfile

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/tolstack/pkg/calc"
	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/dist"
	"github.com/AleutianAI/tolstack/pkg/tolerance"
)

// Project is a stack file turned into domain objects.
type Project struct {
	Name        string
	Description string
	Stacks      []*Stack
}

// Stack is one built stack with its evaluation settings.
type Stack struct {
	Name string

	// Basic is always set. For a reviewed stack it holds the wrapped
	// dimensions.
	Basic *dim.Stack

	// Reviewed is nil for a basic stack.
	Reviewed *dim.ReviewedStack

	// ProcessSigma reviews basic method results for requirements.
	ProcessSigma float64

	// SixSigmaAt is the six sigma multiplier.
	SixSigmaAt float64

	Requirements []RequirementSpec
}

// Stacker returns the reviewed stack when there is one, else the basic one.
func (s *Stack) Stacker() calc.Stacker {
	if s.Reviewed != nil {
		return s.Reviewed
	}
	return s.Basic
}

// BuildOptions supplies defaults the file leaves open.
type BuildOptions struct {
	// ProcessSigma applies when neither dimension, stack nor file sets
	// one. 0 means dim.DefaultTargetProcessSigma.
	ProcessSigma float64

	// SixSigmaAt applies when neither stack nor file sets one. 0 means
	// calc.DefaultSixSigmaAt.
	SixSigmaAt float64

	// IDs numbers the dimensions. Default: a fresh sequence from 0, so a
	// file always builds with the same ids.
	IDs dim.IDGenerator

	// Logger receives assumption warnings. Default: slog.Default().
	Logger *slog.Logger
}

// Build turns a validated file into stacks.
//
// Description:
//
//	Library dimensions are built once. A stack becomes reviewed when it
//	sets reviewed or any of its dimensions has a review block; the other
//	dimensions then get an inferred normal at the effective process sigma.
//	Process sigma resolves dimension, then stack, then file, then
//	opts.ProcessSigma.
//
// Inputs:
//   - f: A file that passed Validate.
//   - opts: Defaults and id source.
//
// Outputs:
//   - *Project: One Stack per StackSpec, in order.
//   - error: A dimension, distribution or review error, wrapped with its
//     location.
func Build(f *File, opts BuildOptions) (*Project, error) {
	if opts.IDs == nil {
		opts.IDs = dim.NewSequence(0)
	}
	if opts.ProcessSigma <= 0 {
		opts.ProcessSigma = dim.DefaultTargetProcessSigma
	}
	if opts.SixSigmaAt <= 0 {
		opts.SixSigmaAt = calc.DefaultSixSigmaAt
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	b := builder{file: f, opts: opts, library: make(map[string]entry, len(f.Dimensions))}
	for i, spec := range f.Dimensions {
		d, err := b.dimension(spec)
		if err != nil {
			return nil, fmt.Errorf("dimensions[%d] %q: %w", i, spec.Name, err)
		}
		b.library[spec.Name] = entry{dim: d, review: spec.Review}
	}

	p := &Project{Name: f.Name, Description: f.Description}
	for i, spec := range f.Stacks {
		s, err := b.stack(spec)
		if err != nil {
			return nil, fmt.Errorf("stacks[%d] %q: %w", i, spec.Name, err)
		}
		p.Stacks = append(p.Stacks, s)
	}
	return p, nil
}

type entry struct {
	dim    *dim.Dimension
	review *ReviewSpec
}

type builder struct {
	file    *File
	opts    BuildOptions
	library map[string]entry
}

func (b *builder) dimension(spec DimensionSpec) (*dim.Dimension, error) {
	a := 1.0
	if spec.Sensitivity != nil {
		a = *spec.Sensitivity
	}
	return dim.New(*spec.Nominal, spec.Tolerance.bilateral(),
		dim.WithName(spec.Name),
		dim.WithDescription(spec.Description),
		dim.WithSensitivity(a),
		dim.WithIDGenerator(b.opts.IDs))
}

func (t *ToleranceSpec) bilateral() tolerance.Bilateral {
	if t.Symmetric != nil {
		return tolerance.Symmetric(*t.Symmetric)
	}
	return tolerance.New(*t.Upper, *t.Lower)
}

// resolve returns the dimension a spec names and its review block.
func (b *builder) resolve(spec DimensionSpec) (entry, error) {
	if spec.Ref == "" {
		d, err := b.dimension(spec)
		return entry{dim: d, review: spec.Review}, err
	}
	e, ok := b.library[spec.Ref]
	if !ok {
		return entry{}, fmt.Errorf("%w %q", ErrUnknownRef, spec.Ref)
	}
	if spec.Name != "" {
		e.dim = e.dim.CloneWith(b.opts.IDs, spec.Name)
	}
	return e, nil
}

func (b *builder) stack(spec StackSpec) (*Stack, error) {
	entries := make([]entry, 0, len(spec.Dimensions))
	reviewed := spec.Reviewed
	for i, ds := range spec.Dimensions {
		e, err := b.resolve(ds)
		if err != nil {
			return nil, fmt.Errorf("dimensions[%d]: %w", i, err)
		}
		reviewed = reviewed || e.review != nil
		entries = append(entries, e)
	}

	out := &Stack{
		Name:         spec.Name,
		Basic:        dim.NewStack(spec.Name, spec.Description),
		ProcessSigma: firstPositive(spec.ProcessSigma, b.file.ProcessSigma, b.opts.ProcessSigma),
		SixSigmaAt:   firstPositive(spec.SixSigmaAt, b.file.SixSigmaAt, b.opts.SixSigmaAt),
		Requirements: spec.Requirements,
	}
	for _, e := range entries {
		out.Basic.Append(e.dim)
	}
	if !reviewed {
		return out, nil
	}

	out.Reviewed = dim.NewReviewedStack(spec.Name, spec.Description)
	for i, e := range entries {
		r, err := b.review(e, spec)
		if err != nil {
			return nil, fmt.Errorf("dimensions[%d] %q: %w", i, e.dim.Name(), err)
		}
		out.Reviewed.Append(r)
	}
	return out, nil
}

// review annotates one dimension. A sigma only counts as assumed when no
// level of the file chose one and the caller default is the library
// default.
func (b *builder) review(e entry, spec StackSpec) (*dim.Reviewed, error) {
	opts := []dim.ReviewOption{dim.WithLogger(b.opts.Logger)}

	var dimSigma, skew float64
	if e.review != nil {
		dimSigma = e.review.ProcessSigma
		skew = e.review.Skew
		if e.review.Distribution != nil {
			d, err := distribution(e.review.Distribution)
			if err != nil {
				return nil, err
			}
			opts = append(opts, dim.WithDistribution(d))
		}
	}
	if sigma := firstPositive(dimSigma, spec.ProcessSigma, b.file.ProcessSigma); sigma > 0 {
		opts = append(opts, dim.WithTargetProcessSigma(sigma))
	} else if b.opts.ProcessSigma != dim.DefaultTargetProcessSigma {
		opts = append(opts, dim.WithTargetProcessSigma(b.opts.ProcessSigma))
	}
	if skew != 0 {
		opts = append(opts, dim.WithSkew(skew))
	}
	return dim.Review(e.dim, opts...)
}

func distribution(s *DistributionSpec) (dist.Distribution, error) {
	switch s.Type {
	case "normal":
		if len(s.Data) > 0 {
			return dist.Fit(s.Data)
		}
		return dist.NewNormal(*s.Mean, *s.StdDev)
	case "uniform":
		return dist.NewUniform(*s.Lower, *s.Upper)
	case "normal_screened":
		return dist.NewNormalScreened(*s.Mean, *s.StdDev, *s.Lower, *s.Upper)
	default:
		return nil, fmt.Errorf("%w: unknown distribution type %q", ErrInvalidFile, s.Type)
	}
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
