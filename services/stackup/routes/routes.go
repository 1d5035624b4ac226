// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the tolstack HTTP API.
package routes

import (
	"log/slog"

	"github.com/AleutianAI/tolstack/pkg/extensions"
	"github.com/AleutianAI/tolstack/services/stackup/handlers"
	"github.com/AleutianAI/tolstack/services/stackup/middleware"
	"github.com/AleutianAI/tolstack/services/stackup/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Options selects the cross-cutting middleware.
type Options struct {
	// ServiceName names server spans.
	ServiceName string

	// Limiter throttles /v1 per client. Nil disables limiting.
	Limiter *middleware.RateLimiter

	// Auth authenticates /v1. Nil accepts every request.
	Auth extensions.AuthProvider

	// Metrics records request metrics. May be nil.
	Metrics *telemetry.Metrics

	// Gatherer is served at /metrics. Nil omits the route.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewRouter returns a gin engine with recovery, tracing, request ids,
// access logs and metrics, and every route registered.
func NewRouter(svc *handlers.Service, opts Options) *gin.Engine {
	name := opts.ServiceName
	if name == "" {
		name = "tolstack"
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(name),
		middleware.RequestID(),
		middleware.AccessLog(opts.Logger),
		telemetry.GinMetrics(opts.Metrics),
	)
	SetupRoutes(router, svc, opts)
	return router
}

// SetupRoutes registers the API on router.
func SetupRoutes(router *gin.Engine, svc *handlers.Service, opts Options) {
	router.GET("/health", handlers.HealthCheck)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler(opts.Gatherer)))
	}

	// API version 1 group
	v1 := router.Group("/v1", middleware.RateLimit(opts.Limiter), middleware.Auth(opts.Auth))
	{
		v1.POST("/analyze", handlers.HandleAnalyze(svc))
		v1.GET("/stream", handlers.HandleRunStream(svc))

		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.HandleListRuns(svc))
			runs.GET("/:id", handlers.HandleGetRun(svc))
			runs.DELETE("/:id", handlers.HandleDeleteRun(svc))
		}
	}
}
