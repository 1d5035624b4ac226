// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidEvent indicates an audit event without an EventType.
var ErrInvalidEvent = errors.New("invalid audit event")

// Audit event types emitted by the server.
const (
	EventRunCreated = "run.created"
	EventRunDeleted = "run.deleted"
)

// AuditEvent records one change to stored runs.
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    extensions.EventRunDeleted,
//	    UserID:       info.UserID,
//	    Action:       "delete",
//	    ResourceType: "run",
//	    ResourceID:   runID,
//	    Outcome:      "success",
//	}
type AuditEvent struct {
	// EventType is "category.action", e.g. "run.created".
	EventType string

	// Timestamp is when the event occurred, in UTC. Loggers fill in a
	// zero value.
	Timestamp time.Time

	// UserID identifies the caller. "anonymous" if unknown.
	UserID string

	// Action is the operation: "create" or "delete".
	Action string

	// ResourceType is the kind of resource, e.g. "run".
	ResourceType string

	// ResourceID is the resource instance, e.g. a run id.
	ResourceID string

	// Outcome is "success", "failure" or "error".
	Outcome string

	// RequestID ties the event to the access log.
	RequestID string

	// Metadata holds event specific fields.
	Metadata map[string]any
}

// AuditLogger records audit events.
//
// Implementations must be safe for concurrent use.
type AuditLogger interface {
	// Log records event. Implementations set Timestamp when it is zero.
	Log(ctx context.Context, event AuditEvent) error

	// Flush persists buffered events. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards every event.
//
// Thread-safe: This implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error {
	return nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(_ context.Context) error {
	return nil
}

// SlogAuditLogger writes each event as one structured log line.
//
// Thread-safe: slog loggers are safe for concurrent use.
type SlogAuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSlogAuditLogger returns a logger writing to logger, or slog.Default
// when logger is nil.
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger, now: time.Now}
}

// Log writes event at info level under the message "audit".
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.EventType == "" {
		return ErrInvalidEvent
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if event.UserID == "" {
		event.UserID = "anonymous"
	}

	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Time("timestamp", event.Timestamp),
		slog.String("user_id", event.UserID),
		slog.String("action", event.Action),
		slog.String("resource_type", event.ResourceType),
		slog.String("resource_id", event.ResourceID),
		slog.String("outcome", event.Outcome),
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if len(event.Metadata) > 0 {
		meta := make([]any, 0, len(event.Metadata))
		for k, v := range event.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}

// Flush is a no-op; every event is written by Log.
func (l *SlogAuditLogger) Flush(_ context.Context) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
