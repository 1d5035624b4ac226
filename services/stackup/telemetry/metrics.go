// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the instruments recorded by analyses and the HTTP API.
//
// Description:
//
//	All metrics use the "tolstack_" prefix. A nil *Metrics is valid and
//	records nothing, so callers never need to check.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Analysis Metrics ---

	// AnalysesTotal counts stack analyses by status (ok, error).
	AnalysesTotal metric.Int64Counter

	// AnalysisDuration records one stack analysis in seconds.
	AnalysisDuration metric.Float64Histogram

	// MethodErrorsTotal counts calculators that failed, by method.
	MethodErrorsTotal metric.Int64Counter

	// --- Requirement Metrics ---

	// RequirementYield is the last yield probability by stack and requirement.
	RequirementYield metric.Float64Gauge

	// RequirementRejectPPM is the last reject rate by stack and requirement.
	RequirementRejectPPM metric.Float64Gauge

	// RequirementCpk is the last C_pk by stack and requirement.
	RequirementCpk metric.Float64Gauge

	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts API requests by method, route and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records API request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates every instrument on meter.
//
// Inputs:
//
//	meter - The OTel meter to register with.
//
// Outputs:
//
//	*Metrics - The instruments.
//	error - Non-nil if registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.AnalysesTotal, err = meter.Int64Counter(
		"tolstack_analyses_total",
		metric.WithDescription("Total stack analyses"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analyses_total: %w", err)
	}

	m.AnalysisDuration, err = meter.Float64Histogram(
		"tolstack_analysis_duration_seconds",
		metric.WithDescription("Stack analysis duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis_duration: %w", err)
	}

	m.MethodErrorsTotal, err = meter.Int64Counter(
		"tolstack_method_errors_total",
		metric.WithDescription("Calculators that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create method_errors_total: %w", err)
	}

	m.RequirementYield, err = meter.Float64Gauge(
		"tolstack_requirement_yield",
		metric.WithDescription("Probability a stack result falls within the requirement limits"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requirement_yield: %w", err)
	}

	m.RequirementRejectPPM, err = meter.Float64Gauge(
		"tolstack_requirement_reject_ppm",
		metric.WithDescription("Expected rejects per million for a requirement"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requirement_reject_ppm: %w", err)
	}

	m.RequirementCpk, err = meter.Float64Gauge(
		"tolstack_requirement_cpk",
		metric.WithDescription("Process capability index C_pk for a requirement"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requirement_cpk: %w", err)
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"tolstack_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"tolstack_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	return m, nil
}

// RecordAnalysis counts one stack analysis.
func (m *Metrics) RecordAnalysis(ctx context.Context, stack string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AnalysesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stack", stack),
		attribute.String("status", status),
	))
	m.AnalysisDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stack", stack)))
}

// RecordMethodError counts one failed calculator.
func (m *Metrics) RecordMethodError(ctx context.Context, stack, method string) {
	if m == nil {
		return
	}
	m.MethodErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stack", stack),
		attribute.String("method", method),
	))
}

// RecordRequirement sets the requirement gauges.
func (m *Metrics) RecordRequirement(ctx context.Context, stack, requirement string, yield, rejectPPM, cpk float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stack", stack),
		attribute.String("requirement", requirement),
	)
	m.RequirementYield.Record(ctx, yield, attrs)
	m.RequirementRejectPPM.Record(ctx, rejectPPM, attrs)
	m.RequirementCpk.Record(ctx, cpk, attrs)
}
