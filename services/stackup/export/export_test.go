// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/tolstack/pkg/calc"
	"github.com/AleutianAI/tolstack/services/stackup/config"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *report.Report {
	return &report.Report{
		RunID:     "run-1",
		Project:   "Gearbox",
		CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Stacks: []report.StackReport{{
			Name: "endplay",
			Results: []report.MethodResult{
				{Method: calc.MethodWC, Nominal: 0.0615, Lower: -0.034, Upper: 0.157},
				{Method: calc.MethodMRSS, Error: "need at least two dimensions"},
			},
			Requirements: []report.RequirementResult{
				{Name: "clearance", Method: calc.MethodWC, Cp: 1.0471, Cpk: 0.644, Yield: 0.97331, RejectPPM: 26690.41, Upper: 0.2},
				{Name: "broken", Method: calc.MethodSixSigma, Error: "six sigma requires a reviewed stack"},
			},
		}},
	}
}

// -----------------------------------------------------------------------------
// Influx
// -----------------------------------------------------------------------------

func lines(points []*write.Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = write.PointToLineProtocol(p, time.Nanosecond)
	}
	return out
}

func TestPoints(t *testing.T) {
	got := lines(Points(sample()))
	require.Len(t, got, 2, "failed results are skipped")

	assert.True(t, strings.HasPrefix(got[0], MeasurementResult+","))
	assert.Contains(t, got[0], "method=wc")
	assert.Contains(t, got[0], "nominal=0.0615")
	assert.Contains(t, got[0], `run_id="run-1"`)

	assert.True(t, strings.HasPrefix(got[1], MeasurementRequirement+","))
	assert.Contains(t, got[1], "requirement=clearance")
	assert.Contains(t, got[1], "reject_ppm=26690.41")
	assert.True(t, strings.HasSuffix(got[1], " 1772600767000000000\n") || strings.HasSuffix(got[1], " 1772600767000000000"))
}

func TestPoints_Empty(t *testing.T) {
	assert.Empty(t, Points(&report.Report{}))
}

func TestNewInflux_MissingSettings(t *testing.T) {
	for _, cfg := range []InfluxConfig{
		{Org: "o", Bucket: "b"},
		{URL: "http://x", Bucket: "b"},
		{URL: "http://x", Org: "o"},
	} {
		_, err := NewInflux(cfg)
		assert.ErrorIs(t, err, ErrMissingSetting)
	}
}

func TestInflux_Export(t *testing.T) {
	var (
		mu    sync.Mutex
		query string
		body  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		query, body = r.URL.RawQuery, string(data)
		mu.Unlock()
		assert.Equal(t, "/api/v2/write", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewInflux(InfluxConfig{URL: srv.URL, Token: "secret", Org: "eng", Bucket: "tolstack"})
	require.NoError(t, err)
	defer sink.Close()
	assert.Equal(t, "influx tolstack", sink.Name())

	require.NoError(t, sink.Export(context.Background(), sample()))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, query, "org=eng")
	assert.Contains(t, query, "bucket=tolstack")
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(body), "\n")+1)
	assert.Contains(t, body, MeasurementRequirement)
}

func TestInflux_ExportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"unauthorized","message":"unauthorized access"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sink, err := NewInflux(InfluxConfig{URL: srv.URL, Org: "eng", Bucket: "tolstack"})
	require.NoError(t, err)
	defer sink.Close()
	assert.Error(t, sink.Export(context.Background(), sample()))
}

// -----------------------------------------------------------------------------
// GCS
// -----------------------------------------------------------------------------

func TestGCS_ObjectName(t *testing.T) {
	g := &GCS{bucket: "b", prefix: "reports"}
	assert.Equal(t, "reports/2026/03/04/run-1.json", g.ObjectName(sample()))
	assert.Equal(t, "gs://b", g.Name())

	g.prefix = ""
	assert.Equal(t, "2026/03/04/run-1.json", g.ObjectName(sample()))
}

func TestNewGCS_Validation(t *testing.T) {
	_, err := NewGCS(context.Background(), GCSConfig{})
	assert.ErrorIs(t, err, ErrMissingSetting)

	_, err = NewGCS(context.Background(), GCSConfig{Bucket: "b", CredentialsFile: "/nonexistent/key.json"})
	assert.Error(t, err)
}

func TestGCS_ExportToEmulator(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(data))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"kind":"storage#object","bucket":"archive","name":"reports/2026/03/04/run-1.json","size":"1"}`)
	}))
	defer srv.Close()
	t.Setenv("STORAGE_EMULATOR_HOST", strings.TrimPrefix(srv.URL, "http://"))

	sink, err := NewGCS(context.Background(), GCSConfig{Bucket: "archive", Prefix: "reports"})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Export(context.Background(), sample()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Contains(t, strings.Join(paths, " "), "/b/archive/o")
	assert.Contains(t, strings.Join(bodies, ""), `"run_id":"run-1"`)
}

// -----------------------------------------------------------------------------
// Multi
// -----------------------------------------------------------------------------

type fakeSink struct {
	name     string
	fail     bool
	exported int
	closed   bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Export(context.Context, *report.Report) error {
	f.exported++
	if f.fail {
		return errors.New("offline")
	}
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	a := &fakeSink{name: "a", fail: true}
	b := &fakeSink{name: "b"}
	m := Multi{a, b}

	err := m.Export(context.Background(), sample())
	require.Error(t, err)
	assert.Equal(t, "a: offline", err.Error())
	assert.Equal(t, 1, b.exported, "a failing sink does not stop the others")

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	assert.NoError(t, Multi(nil).Export(context.Background(), sample()))
}

func TestFromConfig(t *testing.T) {
	m, err := FromConfig(context.Background(), config.ExportConfig{})
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = FromConfig(context.Background(), config.ExportConfig{
		Influx: config.InfluxExportConfig{URL: "http://localhost:8086", Org: "o", Bucket: "b"},
	})
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, "influx b", m[0].Name())
	require.NoError(t, m.Close())

	_, err = FromConfig(context.Background(), config.ExportConfig{
		Influx: config.InfluxExportConfig{URL: "http://localhost:8086"},
	})
	assert.ErrorIs(t, err, ErrMissingSetting)
}
