// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the tolstack HTTP API.
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/tolstack/pkg/extensions"
	"github.com/AleutianAI/tolstack/pkg/validation"
	"github.com/AleutianAI/tolstack/services/stackup/middleware"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/AleutianAI/tolstack/services/stackup/stackfile"
	"github.com/AleutianAI/tolstack/services/stackup/store"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

const (
	defaultListLimit = 20
	maxListLimit     = 1000
)

// History is the run storage the API reads and writes.
type History interface {
	Save(ctx context.Context, r *report.Report) error
	Get(ctx context.Context, id string) (*report.Report, error)
	List(ctx context.Context, limit int) ([]report.Summary, error)
	Delete(ctx context.Context, id string) error
}

// Exporter ships finished reports to an external system.
type Exporter interface {
	Export(ctx context.Context, r *report.Report) error
}

// Service holds what the handlers share.
//
// Thread Safety: Safe for concurrent use once built.
type Service struct {
	// History stores runs. Nil disables the history endpoints.
	History History

	// Build supplies stack file defaults. IDs must be nil so every request
	// numbers its dimensions from 0.
	Build stackfile.BuildOptions

	// Run is the template for each analysis. RunID and Source are set per
	// request.
	Run report.Options

	// MaxBodyBytes caps the analyze request body. 0 means 1 MiB.
	MaxBodyBytes int64

	// Exporter receives every report. Export failures are logged and do
	// not fail the request. May be nil.
	Exporter Exporter

	// Feed announces every report to stream subscribers. Nil disables
	// the stream endpoint.
	Feed *Feed

	// Audit records run creation and deletion. May be nil.
	Audit extensions.AuditLogger

	Logger *slog.Logger

	flight singleflight.Group
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// audit records a run event for the caller of c. Failures are logged.
func (s *Service) audit(c *gin.Context, event extensions.AuditEvent) {
	if s.Audit == nil {
		return
	}
	if info := middleware.GetAuthInfo(c); info != nil {
		event.UserID = info.UserID
	}
	event.ResourceType = "run"
	event.RequestID = middleware.GetRequestID(c)
	if err := s.Audit.Log(c.Request.Context(), event); err != nil {
		s.logger().Warn("failed to audit", "event_type", event.EventType, "error", err)
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"request_id": middleware.GetRequestID(c),
	})
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleAnalyze analyzes the stack file in the request body.
//
// Description:
//
//	The body is a stack file in YAML or JSON. The report is stored unless
//	the query has save=false or history is disabled.
//
// Responses:
//   - 200: The report. X-Run-ID carries its id.
//   - 400: The stack file is malformed or invalid.
//   - 413: The body exceeds MaxBodyBytes.
//   - 500: Analysis or storage failed.
func HandleAnalyze(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := svc.MaxBodyBytes
		if limit <= 0 {
			limit = 1 << 20
		}
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abort(c, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			abort(c, http.StatusBadRequest, "failed to read request body")
			return
		}

		f, err := stackfile.Parse(body)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		build := svc.Build
		build.IDs = nil
		if build.Logger == nil {
			build.Logger = svc.logger()
		}
		p, err := stackfile.Build(f, build)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}

		opts := svc.Run
		opts.RunID = ""
		opts.Source = "api"
		if opts.Logger == nil {
			opts.Logger = svc.logger()
		}
		ctx := c.Request.Context()
		r, err := report.Run(ctx, p, opts)
		if err != nil {
			svc.logger().Error("analysis failed", "error", err, "request_id", middleware.GetRequestID(c))
			abort(c, http.StatusInternalServerError, "analysis failed")
			return
		}

		if svc.History != nil && c.DefaultQuery("save", "true") != "false" {
			if err := svc.History.Save(ctx, r); err != nil {
				svc.logger().Error("failed to save run", "run_id", r.RunID, "error", err)
				abort(c, http.StatusInternalServerError, "failed to save run")
				return
			}
			svc.audit(c, extensions.AuditEvent{
				EventType:  extensions.EventRunCreated,
				Action:     "create",
				ResourceID: r.RunID,
				Outcome:    "success",
				Metadata:   map[string]any{"project": r.Project, "stacks": len(r.Stacks)},
			})
		}

		if svc.Exporter != nil {
			if err := svc.Exporter.Export(ctx, r); err != nil {
				svc.logger().Warn("failed to export run", "run_id", r.RunID, "error", err)
			}
		}
		if svc.Feed != nil {
			svc.Feed.Publish(r.Summary())
		}

		c.Header("X-Run-ID", r.RunID)
		c.JSON(http.StatusOK, r)
	}
}

// HandleListRuns lists stored runs, newest first. ?limit= caps the count.
func HandleListRuns(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc.History == nil {
			abort(c, http.StatusServiceUnavailable, "history is disabled")
			return
		}
		limit := defaultListLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxListLimit {
				abort(c, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
				return
			}
			limit = n
		}

		runs, err := svc.History.List(c.Request.Context(), limit)
		if err != nil {
			svc.logger().Error("failed to list runs", "error", err)
			abort(c, http.StatusInternalServerError, "failed to list runs")
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// HandleGetRun returns one stored run. Concurrent requests for the same id
// share one read.
func HandleGetRun(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc.History == nil {
			abort(c, http.StatusServiceUnavailable, "history is disabled")
			return
		}
		id := c.Param("id")
		if err := validation.ValidateRunID(id); err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		v, err, _ := svc.flight.Do(id, func() (interface{}, error) {
			return svc.History.Get(context.WithoutCancel(c.Request.Context()), id)
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			abort(c, http.StatusNotFound, "run not found")
		case err != nil:
			svc.logger().Error("failed to get run", "run_id", id, "error", err)
			abort(c, http.StatusInternalServerError, "failed to get run")
		default:
			c.JSON(http.StatusOK, v.(*report.Report))
		}
	}
}

// HandleDeleteRun deletes one stored run.
func HandleDeleteRun(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc.History == nil {
			abort(c, http.StatusServiceUnavailable, "history is disabled")
			return
		}
		id := c.Param("id")
		if err := validation.ValidateRunID(id); err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		err := svc.History.Delete(c.Request.Context(), id)
		event := extensions.AuditEvent{
			EventType:  extensions.EventRunDeleted,
			Action:     "delete",
			ResourceID: id,
			Outcome:    "success",
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			event.Outcome = "failure"
			abort(c, http.StatusNotFound, "run not found")
		case err != nil:
			event.Outcome = "error"
			svc.logger().Error("failed to delete run", "run_id", id, "error", err)
			abort(c, http.StatusInternalServerError, "failed to delete run")
		default:
			c.Status(http.StatusNoContent)
		}
		svc.audit(c, event)
	}
}
