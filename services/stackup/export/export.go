// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export ships finished reports to external systems.
//
// Two sinks exist: InfluxDB, which receives one point per requirement and
// per method result so capability can be trended across runs, and Google
// Cloud Storage, which archives each full report as JSON.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/tolstack/services/stackup/config"
	"github.com/AleutianAI/tolstack/services/stackup/report"
)

// ErrMissingSetting indicates a sink was configured without a required
// field.
var ErrMissingSetting = errors.New("export: missing setting")

// Sink receives finished reports.
type Sink interface {
	// Name identifies the sink in errors and logs.
	Name() string
	Export(ctx context.Context, r *report.Report) error
	Close() error
}

// Multi exports to every sink in order.
type Multi []Sink

// Export sends r to every sink. One failing sink does not stop the
// others; all failures are joined.
func (m Multi) Export(ctx context.Context, r *report.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig opens the sinks cfg enables. An empty Multi means nothing is
// configured.
func FromConfig(ctx context.Context, cfg config.ExportConfig) (Multi, error) {
	var m Multi
	if cfg.Influx.URL != "" {
		s, err := NewInflux(InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			return nil, err
		}
		m = append(m, s)
	}
	if cfg.GCS.Bucket != "" {
		s, err := NewGCS(ctx, GCSConfig{
			Bucket:          cfg.GCS.Bucket,
			Prefix:          cfg.GCS.Prefix,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m = append(m, s)
	}
	return m, nil
}
