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
	"fmt"
	"log/slog"
	"strings"
)

// -----------------------------------------------------------------------------
// Stack
// -----------------------------------------------------------------------------

// Stack is an ordered, named chain of dimensions.
//
// Order only matters for display. A Stack holds dimensions by reference and
// a dimension may sit in several stacks.
type Stack struct {
	Name        string
	Description string
	Dims        []*Dimension
}

// NewStack builds a stack. An empty name becomes "Stack".
func NewStack(name, description string, dims ...*Dimension) *Stack {
	if name == "" {
		name = "Stack"
	}
	return &Stack{Name: name, Description: description, Dims: dims}
}

// Append adds dimensions to the end of the stack.
func (s *Stack) Append(dims ...*Dimension) {
	s.Dims = append(s.Dims, dims...)
}

// Dimensions returns the dimensions in order.
func (s *Stack) Dimensions() []*Dimension { return s.Dims }

// Len returns the number of dimensions.
func (s *Stack) Len() int { return len(s.Dims) }

// Review converts every dimension with an inferred normal at sigma.
//
// Description:
//
//	The conversion is lossy: each distribution is fabricated from the
//	tolerance band. Every result is flagged in its Assumptions and a single
//	summary warning is logged for the stack, on the WithLogger logger when
//	one is given and slog.Default() otherwise.
//
// Outputs:
//   - *ReviewedStack: The reviewed stack, same name and order.
//   - error: ErrInvalidProcessSigma for a non-positive sigma.
func (s *Stack) Review(sigma float64, opts ...ReviewOption) (*ReviewedStack, error) {
	out := &ReviewedStack{Name: s.Name, Description: s.Description}
	var o reviewOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	all := append([]ReviewOption{WithTargetProcessSigma(sigma), WithLogger(discard)}, opts...)
	for _, d := range s.Dims {
		r, err := Review(d, all...)
		if err != nil {
			return nil, fmt.Errorf("review stack %q: %w", s.Name, err)
		}
		out.Dims = append(out.Dims, r)
	}
	logger.Warn("reviewed stack with assumed normal distributions",
		"stack", s.Name,
		"dimensions", len(s.Dims),
		"process_sigma", sigma)
	return out, nil
}

// Rows returns one display mapping per dimension.
func (s *Stack) Rows() []Fields {
	rows := make([]Fields, len(s.Dims))
	for i, d := range s.Dims {
		rows[i] = d.Fields()
	}
	return rows
}

// Chain returns the cumulative plot positions of the dimensions.
func (s *Stack) Chain() []Link {
	return chain(s.Dims)
}

func (s *Stack) String() string {
	return render(s.Name, s.Description, len(s.Dims), func(i int) string { return s.Dims[i].String() })
}

// -----------------------------------------------------------------------------
// Reviewed Stack
// -----------------------------------------------------------------------------

// ReviewedStack is an ordered, named chain of reviewed dimensions.
type ReviewedStack struct {
	Name        string
	Description string
	Dims        []*Reviewed
}

// NewReviewedStack builds a reviewed stack. An empty name becomes "Stack".
func NewReviewedStack(name, description string, dims ...*Reviewed) *ReviewedStack {
	if name == "" {
		name = "Stack"
	}
	return &ReviewedStack{Name: name, Description: description, Dims: dims}
}

// Append adds reviewed dimensions to the end of the stack.
func (s *ReviewedStack) Append(dims ...*Reviewed) {
	s.Dims = append(s.Dims, dims...)
}

// Reviewed returns the reviewed dimensions in order.
func (s *ReviewedStack) Reviewed() []*Reviewed { return s.Dims }

// Dimensions returns the wrapped plain dimensions in order.
func (s *ReviewedStack) Dimensions() []*Dimension {
	out := make([]*Dimension, len(s.Dims))
	for i, r := range s.Dims {
		out[i] = r.dim
	}
	return out
}

// Len returns the number of dimensions.
func (s *ReviewedStack) Len() int { return len(s.Dims) }

// ToBasic drops the distributions and returns the plain stack.
func (s *ReviewedStack) ToBasic() *Stack {
	return &Stack{Name: s.Name, Description: s.Description, Dims: s.Dimensions()}
}

// Assumed returns the reviewed dimensions whose data was fabricated.
func (s *ReviewedStack) Assumed() []*Reviewed {
	var out []*Reviewed
	for _, r := range s.Dims {
		if r.assumed.Any() {
			out = append(out, r)
		}
	}
	return out
}

// Rows returns one display mapping per reviewed dimension.
func (s *ReviewedStack) Rows() []Fields {
	rows := make([]Fields, len(s.Dims))
	for i, r := range s.Dims {
		rows[i] = r.Fields()
	}
	return rows
}

// Chain returns the cumulative plot positions of the dimensions.
func (s *ReviewedStack) Chain() []Link {
	return chain(s.Dimensions())
}

func (s *ReviewedStack) String() string {
	return render(s.Name, s.Description, len(s.Dims), func(i int) string { return s.Dims[i].String() })
}

// -----------------------------------------------------------------------------
// Plot Chain
// -----------------------------------------------------------------------------

// Link is one dimension's place in a stack drawn head to tail.
//
// Start and End are the positions before and after the contribution
// a * AbsNominal. Lower and Upper are the tolerance bounds around End.
type Link struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func chain(dims []*Dimension) []Link {
	links := make([]Link, len(dims))
	var pos float64
	for i, d := range dims {
		end := pos + d.a*d.AbsNominal()
		links[i] = Link{
			ID:    d.id,
			Name:  d.name,
			Start: pos,
			End:   end,
			Lower: end + d.a*d.AbsLowerTol(),
			Upper: end + d.a*d.AbsUpperTol(),
		}
		pos = end
	}
	return links
}

func render(name, desc string, n int, line func(int) string) string {
	var b strings.Builder
	b.WriteString(name)
	if desc != "" {
		b.WriteString(": ")
		b.WriteString(desc)
	}
	for i := range n {
		b.WriteString("\n  ")
		b.WriteString(line(i))
	}
	return b.String()
}

var discard = slog.New(slog.DiscardHandler)
