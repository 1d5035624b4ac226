// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry tracing and metrics for tolstack.
//
// OTel is used directly. Backends are chosen by configuration:
//
//   - Traces: "otlp" (gRPC collector), "stdout" or "none".
//   - Metrics: "prometheus" (a prometheus.Registry that can be served at
//     /metrics or written to a node_exporter textfile), "stdout" or "none".
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	shutdown, err := telemetry.Init(ctx, telemetry.Config{
//	    ServiceName:    "tolstack",
//	    TraceExporter:  "none",
//	    MetricExporter: "prometheus",
//	    Registry:       reg,
//	})
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
//	metrics, _ := telemetry.NewMetrics(otel.Meter(telemetry.ScopeName))
//	// ... run analyses ...
//	telemetry.WriteTextfile(path, reg)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
