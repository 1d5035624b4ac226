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
	"fmt"

	"github.com/AleutianAI/tolstack/services/stackup/report"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by Influx.
const (
	MeasurementRequirement = "tolstack_requirement"
	MeasurementResult      = "tolstack_result"
)

// InfluxConfig locates an InfluxDB 2 bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx writes report points to InfluxDB.
//
// Thread Safety: Safe for concurrent use.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	bucket string
}

// NewInflux creates a blocking writer for cfg. No connection is made
// until the first Export.
func NewInflux(cfg InfluxConfig) (*Influx, error) {
	switch {
	case cfg.URL == "":
		return nil, fmt.Errorf("%w: influx url", ErrMissingSetting)
	case cfg.Org == "":
		return nil, fmt.Errorf("%w: influx org", ErrMissingSetting)
	case cfg.Bucket == "":
		return nil, fmt.Errorf("%w: influx bucket", ErrMissingSetting)
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket: cfg.Bucket,
	}, nil
}

// Name implements Sink.
func (i *Influx) Name() string { return "influx " + i.bucket }

// Export writes the points of r in one request. A report without
// successful results writes nothing.
func (i *Influx) Export(ctx context.Context, r *report.Report) error {
	points := Points(r)
	if len(points) == 0 {
		return nil
	}
	if err := i.write.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	return nil
}

// Close releases the client.
func (i *Influx) Close() error {
	i.client.Close()
	return nil
}

// Points converts a report to points stamped with its creation time.
//
// Description:
//
//	Each evaluated requirement becomes a tolstack_requirement point
//	tagged by project, stack, requirement and method. Each successful
//	method result becomes a tolstack_result point tagged by project,
//	stack and method. The run id is a field so that it does not grow
//	series cardinality. Failed results and requirements are skipped.
func Points(r *report.Report) []*write.Point {
	var points []*write.Point
	for _, s := range r.Stacks {
		for _, m := range s.Results {
			if !m.OK() {
				continue
			}
			points = append(points, influxdb2.NewPoint(
				MeasurementResult,
				map[string]string{
					"project": r.Project,
					"stack":   s.Name,
					"method":  string(m.Method),
				},
				map[string]interface{}{
					"nominal": m.Nominal,
					"lower":   m.Lower,
					"upper":   m.Upper,
					"run_id":  r.RunID,
				},
				r.CreatedAt,
			))
		}
		for _, q := range s.Requirements {
			if !q.OK() {
				continue
			}
			points = append(points, influxdb2.NewPoint(
				MeasurementRequirement,
				map[string]string{
					"project":     r.Project,
					"stack":       s.Name,
					"requirement": q.Name,
					"method":      string(q.Method),
				},
				map[string]interface{}{
					"cp":         q.Cp,
					"cpk":        q.Cpk,
					"k":          q.K,
					"yield":      q.Yield,
					"reject_ppm": q.RejectPPM,
					"lower":      q.Lower,
					"upper":      q.Upper,
					"run_id":     r.RunID,
				},
				r.CreatedAt,
			))
		}
	}
	return points
}
