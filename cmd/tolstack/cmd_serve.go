// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/tolstack/pkg/extensions"
	"github.com/AleutianAI/tolstack/pkg/ux"
	"github.com/AleutianAI/tolstack/services/stackup/handlers"
	"github.com/AleutianAI/tolstack/services/stackup/middleware"
	"github.com/AleutianAI/tolstack/services/stackup/routes"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		Long: `Serve the HTTP API.

Routes:
  GET    /health
  GET    /metrics
  POST   /v1/analyze        body: a stack file (YAML or JSON); ?save=false skips history
  GET    /v1/stream         WebSocket; one run summary per message
  GET    /v1/runs           ?limit=N
  GET    /v1/runs/:id
  DELETE /v1/runs/:id

When server.token (TOLSTACK_SERVER_TOKEN) is set, every /v1 request must
send "Authorization: Bearer <token>" or ?access_token=<token>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd, debug)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, debug bool) error {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := a.log.Slog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := a.startTelemetry(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer obs.close(logger)
	obs.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts, err := a.runOptions(nil, obs.metrics)
	if err != nil {
		return err
	}

	svc := &handlers.Service{
		Build:        a.buildOptions(),
		Run:          opts,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
		Logger:       logger,
		Feed:         handlers.NewFeed(0),
	}
	sinks, err := a.openExport(ctx)
	if err != nil {
		return err
	}
	defer sinks.Close()
	if len(sinks) > 0 {
		svc.Exporter = sinks
	}
	db, err := a.openHistory()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		svc.History = db
	}

	ext := extensions.DefaultOptions().WithAudit(extensions.NewSlogAuditLogger(logger))
	if a.cfg.Server.Token != "" {
		auth, err := extensions.NewTokenAuthProvider(a.cfg.Server.Token)
		if err != nil {
			return err
		}
		ext = ext.WithAuth(auth)
	}
	svc.Audit = ext.AuditLogger
	defer ext.AuditLogger.Flush(context.WithoutCancel(ctx))

	var limiter *middleware.RateLimiter
	if a.cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(a.cfg.Server.RateLimit, a.cfg.Server.Burst)
	}
	router := routes.NewRouter(svc, routes.Options{
		ServiceName: "tolstack",
		Limiter:     limiter,
		Auth:        ext.AuthProvider,
		Metrics:     obs.metrics,
		Gatherer:    obs.registry,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if p := a.printer(cmd); p.Mode() != ux.ModeMachine {
		history := "disabled"
		if svc.History != nil {
			history = a.cfg.Store.Path
		}
		p.Box("tolstack serve", fmt.Sprintf("Listening on %s\nHistory: %s\nStream: /v1/stream", srv.Addr, history))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting tolstack server", "address", srv.Addr, "history", svc.History != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down tolstack server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
