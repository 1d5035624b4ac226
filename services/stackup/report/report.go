// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report runs every calculator over a built project and evaluates
// its requirements.
//
// A Report is plain data. It serializes to JSON for the history store and
// the HTTP API, and renders to tables through pkg/ux.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/AleutianAI/tolstack/pkg/calc"
	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/dist"
	"github.com/AleutianAI/tolstack/pkg/requirement"
	"github.com/AleutianAI/tolstack/pkg/validation"
	"github.com/AleutianAI/tolstack/services/stackup/stackfile"
	"github.com/AleutianAI/tolstack/services/stackup/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNilProject indicates Run was given no project.
	ErrNilProject = errors.New("nil project")

	// ErrNotReviewed indicates a six_sigma requirement on a basic stack.
	ErrNotReviewed = errors.New("six sigma requires a reviewed stack")

	// ErrMethodFailed indicates a requirement whose method has no result.
	ErrMethodFailed = errors.New("method has no result")
)

// =============================================================================
// Types
// =============================================================================

// Report is the outcome of one analysis run.
type Report struct {
	RunID       string        `json:"run_id"`
	Project     string        `json:"project"`
	Description string        `json:"description,omitempty"`
	Source      string        `json:"source,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Stacks      []StackReport `json:"stacks"`
}

// StackReport holds one stack's inputs, method results and requirements.
type StackReport struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Reviewed    bool    `json:"reviewed"`
	SixSigmaAt  float64 `json:"six_sigma_at"`

	// Dimensions are the display rows of the inputs, in stack order.
	Dimensions []dim.Fields `json:"dimensions"`

	// Chain positions every input head to tail.
	Chain []dim.Link `json:"chain"`

	Results      []MethodResult      `json:"results"`
	Requirements []RequirementResult `json:"requirements,omitempty"`
	Assumptions  []Assumption        `json:"assumptions,omitempty"`

	// Curves are set for reviewed stacks when Options.CurvePoints or
	// Options.CurveSamples ask for them.
	Curves []Curve `json:"curves,omitempty"`
}

// MethodResult is one calculator's output. Exactly one of Fields and
// Error is set.
type MethodResult struct {
	Method  calc.Method `json:"method"`
	Title   string      `json:"title"`
	Nominal float64     `json:"nominal,omitempty"`
	Lower   float64     `json:"lower,omitempty"`
	Upper   float64     `json:"upper,omitempty"`
	Fields  dim.Fields  `json:"fields,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK reports whether the method produced a result.
func (m MethodResult) OK() bool { return m.Error == "" }

// RequirementResult is one requirement evaluated against a method result.
type RequirementResult struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Method       calc.Method `json:"method"`
	ProcessSigma float64     `json:"process_sigma,omitempty"`
	Lower        float64     `json:"lower"`
	Upper        float64     `json:"upper"`
	Cp           float64     `json:"cp"`
	Cpk          float64     `json:"cpk"`
	K            float64     `json:"k"`
	Yield        float64     `json:"yield"`
	RejectPPM    float64     `json:"reject_ppm"`
	Fields       dim.Fields  `json:"fields,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// OK reports whether the requirement could be evaluated.
func (r RequirementResult) OK() bool { return r.Error == "" }

// Assumption names a reviewed input whose distribution or process sigma
// was not supplied.
type Assumption struct {
	Dimension    string `json:"dimension"`
	Distribution bool   `json:"distribution"`
	ProcessSigma bool   `json:"process_sigma"`
}

// Summary is the listing form of a report.
type Summary struct {
	RunID     string    `json:"run_id"`
	Project   string    `json:"project"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Stacks    int       `json:"stacks"`

	// Failures counts method and requirement errors.
	Failures int `json:"failures"`

	// WorstRejectPPM is the highest reject rate over all requirements.
	WorstRejectPPM float64 `json:"worst_reject_ppm"`
}

// Summary condenses the report.
func (r *Report) Summary() Summary {
	s := Summary{
		RunID:     r.RunID,
		Project:   r.Project,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
		Stacks:    len(r.Stacks),
	}
	for _, st := range r.Stacks {
		for _, m := range st.Results {
			if !m.OK() {
				s.Failures++
			}
		}
		for _, q := range st.Requirements {
			if !q.OK() {
				s.Failures++
				continue
			}
			s.WorstRejectPPM = max(s.WorstRejectPPM, q.RejectPPM)
		}
	}
	return s
}

// =============================================================================
// Run
// =============================================================================

// Options configures Run.
type Options struct {
	// RunID identifies the run. Default: a random UUID.
	RunID string

	// Source is the path the project was loaded from, if any.
	Source string

	// Now stamps the report. Default: time.Now.
	Now func() time.Time

	// Concurrency bounds the stacks analyzed at once. 0 means no limit.
	Concurrency int

	// Methods limits the reported method results. Empty reports all.
	// Requirements are evaluated regardless.
	Methods []calc.Method

	// CurvePoints is the number of density points per curve. 0 or 1
	// omits the density.
	CurvePoints int

	// CurveSamples is the number of draws per curve. 0 omits them.
	CurveSamples int

	// Seed seeds the draws. Stack i uses Seed+i, so reports repeat
	// regardless of scheduling.
	Seed uint64

	// Metrics records analysis and requirement metrics. May be nil.
	Metrics *telemetry.Metrics

	// Logger receives assumption warnings. Default: slog.Default().
	Logger *slog.Logger
}

// Run analyzes every stack of p and evaluates its requirements.
//
// Description:
//
//	Stacks are analyzed concurrently. A failing calculator or requirement is
//	recorded in the report and never fails the run. Only cancellation of
//	ctx does.
//
// Inputs:
//   - ctx: Cancellation and trace context.
//   - p: A built project.
//   - opts: Identity, clock and instrumentation.
//
// Outputs:
//   - *Report: Stack reports in project order.
//   - error: ErrNilProject, validation.ErrInvalidRunID or ctx.Err().
//
// Thread Safety: Safe for concurrent use. p is only read.
func Run(ctx context.Context, p *stackfile.Project, opts Options) (*Report, error) {
	if p == nil {
		return nil, ErrNilProject
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	} else if err := validation.ValidateRunID(opts.RunID); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, span := telemetry.StartSpan(ctx, "report.Run", trace.WithAttributes(
		attribute.String("run_id", opts.RunID),
		attribute.String("project", p.Name),
		attribute.Int("stacks", len(p.Stacks)),
	))
	defer span.End()

	r := &Report{
		RunID:       opts.RunID,
		Project:     p.Name,
		Description: p.Description,
		Source:      opts.Source,
		CreatedAt:   opts.Now().UTC(),
		Stacks:      make([]StackReport, len(p.Stacks)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, s := range p.Stacks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.Stacks[i] = analyzeStack(gctx, s, opts, opts.Seed+uint64(i))
			return nil
		})
	}
	err := g.Wait()
	telemetry.SetStatus(span, err)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", opts.RunID, err)
	}

	telemetry.LoggerWithTrace(ctx, opts.Logger).Info("analysis complete",
		"run_id", r.RunID, "project", r.Project, "stacks", len(r.Stacks))
	return r, nil
}

func analyzeStack(ctx context.Context, s *stackfile.Stack, opts Options, seed uint64) StackReport {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "report.analyzeStack",
		trace.WithAttributes(attribute.String("stack", s.Name)))
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, opts.Logger).With("stack", s.Name)

	a := calc.Analyze(s.Stacker(), calc.WithSixSigmaAt(s.SixSigmaAt))

	out := StackReport{
		Name:        s.Name,
		Description: s.Basic.Description,
		Reviewed:    s.Reviewed != nil,
		SixSigmaAt:  s.SixSigmaAt,
		Dimensions:  rows(s),
		Chain:       s.Basic.Chain(),
	}

	var failed error
	for _, m := range calc.Methods {
		if m == calc.MethodSixSigma && s.Reviewed == nil {
			continue
		}
		if err := a.Err(m); err != nil {
			opts.Metrics.RecordMethodError(ctx, s.Name, string(m))
			logger.Warn("method failed", "method", m, "error", err)
			failed = errors.Join(failed, err)
		}
		if len(opts.Methods) == 0 || slices.Contains(opts.Methods, m) {
			out.Results = append(out.Results, methodResult(a, m))
		}
	}

	for _, spec := range s.Requirements {
		rr := evaluate(a, s, spec)
		if rr.OK() {
			opts.Metrics.RecordRequirement(ctx, s.Name, rr.Name, rr.Yield, rr.RejectPPM, rr.Cpk)
		} else {
			logger.Warn("requirement not evaluated", "requirement", rr.Name, "error", rr.Error)
		}
		out.Requirements = append(out.Requirements, rr)
	}

	if s.Reviewed != nil && (opts.CurvePoints > 1 || opts.CurveSamples > 0) {
		out.Curves = curves(s.Reviewed.Reviewed(), a.SixSigma, opts.CurvePoints, opts.CurveSamples, dist.NewRand(seed))
	}

	if s.Reviewed != nil {
		for _, r := range s.Reviewed.Assumed() {
			as := r.Assumptions()
			out.Assumptions = append(out.Assumptions, Assumption{
				Dimension:    r.Name(),
				Distribution: as.Distribution,
				ProcessSigma: as.ProcessSigma,
			})
		}
	}

	telemetry.SetStatus(span, failed)
	opts.Metrics.RecordAnalysis(ctx, s.Name, time.Since(start).Seconds(), failed)
	return out
}

func rows(s *stackfile.Stack) []dim.Fields {
	if s.Reviewed != nil {
		return s.Reviewed.Rows()
	}
	return s.Basic.Rows()
}

func methodResult(a *calc.Analysis, m calc.Method) MethodResult {
	res := MethodResult{Method: m, Title: m.Title()}
	if err := a.Err(m); err != nil {
		res.Error = err.Error()
		return res
	}
	d, ok := a.Dimension(m)
	if !ok {
		res.Error = ErrMethodFailed.Error()
		return res
	}
	res.Nominal = d.AbsNominal()
	res.Lower = d.AbsLower()
	res.Upper = d.AbsUpper()
	if m == calc.MethodSixSigma {
		res.Fields = a.SixSigma.Fields()
	} else {
		res.Fields = d.Fields()
	}
	return res
}

// =============================================================================
// Requirements
// =============================================================================

// Evaluate builds the requirement described by spec against the analysis.
//
// Description:
//
//	six_sigma uses the composed distribution directly. Any other method's
//	result is reviewed at the requirement's process sigma, or the stack's
//	when the requirement sets none, and its inferred normal is used.
//
// Outputs:
//   - *requirement.Requirement: Ready for capability and yield queries.
//   - float64: The process sigma the result was evaluated at.
//   - error: ErrNotReviewed, ErrMethodFailed, or a construction error.
func Evaluate(a *calc.Analysis, s *stackfile.Stack, spec stackfile.RequirementSpec) (*requirement.Requirement, float64, error) {
	m, err := calc.ParseMethod(spec.Method)
	if err != nil {
		return nil, 0, err
	}

	if m == calc.MethodSixSigma {
		if a.SixSigma == nil {
			if s.Reviewed == nil {
				return nil, 0, ErrNotReviewed
			}
			return nil, 0, fmt.Errorf("%w: %v", ErrMethodFailed, a.Err(m))
		}
		req, err := requirement.New(spec.Name, spec.Description, a.SixSigma.Distribution(), spec.Lower, spec.Upper)
		return req, a.SixSigma.TargetProcessSigma(), err
	}

	d, ok := a.Dimension(m)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrMethodFailed, m, a.Err(m))
	}
	sigma := spec.ProcessSigma
	if sigma <= 0 {
		sigma = s.ProcessSigma
	}
	if sigma <= 0 {
		sigma = dim.DefaultTargetProcessSigma
	}
	// A method result always gets an inferred normal, so the review is
	// not logged.
	r, err := dim.Review(d, dim.WithTargetProcessSigma(sigma), dim.WithLogger(quiet))
	if err != nil {
		return nil, 0, err
	}
	req, err := requirement.New(spec.Name, spec.Description, r.Distribution(), spec.Lower, spec.Upper)
	return req, sigma, err
}

var quiet = slog.New(slog.DiscardHandler)

func evaluate(a *calc.Analysis, s *stackfile.Stack, spec stackfile.RequirementSpec) RequirementResult {
	rr := RequirementResult{
		Name:        spec.Name,
		Description: spec.Description,
		Method:      calc.Method(spec.Method),
		Lower:       min(spec.Lower, spec.Upper),
		Upper:       max(spec.Lower, spec.Upper),
	}
	req, sigma, err := Evaluate(a, s, spec)
	if err != nil {
		rr.Error = err.Error()
		return rr
	}
	rr.ProcessSigma = sigma
	rr.Cp = req.Cp()
	rr.Cpk = req.Cpk()
	rr.K = req.K()
	rr.Yield = req.YieldProbability()
	rr.RejectPPM = req.RejectPPM()
	rr.Fields = req.Fields()
	return rr
}
