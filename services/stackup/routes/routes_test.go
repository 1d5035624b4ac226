// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/tolstack/pkg/extensions"
	"github.com/AleutianAI/tolstack/services/stackup/handlers"
	"github.com/AleutianAI/tolstack/services/stackup/middleware"
	"github.com/AleutianAI/tolstack/services/stackup/store"
	"github.com/AleutianAI/tolstack/services/stackup/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const body = `{"name": "p", "stacks": [{"name": "s", "dimensions": [{"name": "a", "nominal": 1, "tolerance": {"symmetric": 0.1}}]}]}`

var discard = slog.New(slog.DiscardHandler)

func init() {
	gin.SetMode(gin.TestMode)
}

func newService(t *testing.T) *handlers.Service {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &handlers.Service{History: db, Logger: discard}
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestNewRouter_Routes(t *testing.T) {
	router := NewRouter(newService(t), Options{Logger: discard})

	w := serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = serve(router, http.MethodPost, "/v1/analyze", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := w.Header().Get("X-Run-ID")
	require.NotEmpty(t, id)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/v1/runs", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/v1/runs/"+id, "").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/v1/runs/"+id, "").Code)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics", "").Code, "no gatherer, no route")
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/v2/analyze", "").Code)
}

func TestNewRouter_RateLimitsAPIOnly(t *testing.T) {
	router := NewRouter(newService(t), Options{
		Logger:  discard,
		Limiter: middleware.NewRateLimiter(0.001, 1),
	})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/v1/runs", "").Code)
	w := serve(router, http.MethodGet, "/v1/runs", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	for range 3 {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	require.NoError(t, err)
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	metrics, err := telemetry.NewMetrics(provider.Meter(telemetry.ScopeName))
	require.NoError(t, err)

	svc := newService(t)
	svc.Run.Metrics = metrics
	router := NewRouter(svc, Options{Logger: discard, Metrics: metrics, Gatherer: reg})

	require.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/v1/analyze", body).Code)

	w := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, "tolstack_http_requests_total")
	assert.Contains(t, out, `route="/v1/analyze"`)
	assert.Contains(t, out, "tolstack_analyses_total")
}

func TestNewRouter_AuthGuardsAPIOnly(t *testing.T) {
	auth, err := extensions.NewTokenAuthProvider("s3cret")
	require.NoError(t, err)
	router := NewRouter(newService(t), Options{Logger: discard, Auth: auth})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/v1/runs", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
