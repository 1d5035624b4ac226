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
	"encoding/json"
	"fmt"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"google.golang.org/api/option"
)

// GCSConfig locates the archive bucket.
type GCSConfig struct {
	Bucket string

	// Prefix is prepended to every object name.
	Prefix string

	// CredentialsFile is a service account key. Empty uses application
	// default credentials, or none when STORAGE_EMULATOR_HOST is set.
	CredentialsFile string
}

// GCS archives reports as JSON objects.
//
// Thread Safety: Safe for concurrent use.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a storage client for cfg. opts are passed to the client
// after the credentials option.
func NewGCS(ctx context.Context, cfg GCSConfig, opts ...option.ClientOption) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket", ErrMissingSetting)
	}
	var all []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("service account key %s: %w", cfg.CredentialsFile, err)
		}
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	all = append(all, opts...)

	client, err := storage.NewClient(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create GCS storage client: %w", err)
	}
	return &GCS{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Name implements Sink.
func (g *GCS) Name() string { return "gs://" + g.bucket }

// ObjectName returns where r is archived: prefix/YYYY/MM/DD/<run-id>.json,
// dated in UTC.
func (g *GCS) ObjectName(r *report.Report) string {
	return path.Join(g.prefix, r.CreatedAt.UTC().Format("2006/01/02"), r.RunID+".json")
}

// Export uploads r. Re-exporting a run replaces the object.
func (g *GCS) Export(ctx context.Context, r *report.Report) error {
	name := g.ObjectName(r)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	w.Metadata = map[string]string{
		"project": r.Project,
		"run_id":  r.RunID,
	}

	if err := json.NewEncoder(w).Encode(r); err != nil {
		_ = w.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, name, err)
	}
	return nil
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
