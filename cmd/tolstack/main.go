// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command tolstack analyzes tolerance stacks.
//
// A stack file lists the dimensions of an assembly and the requirements its
// result must meet. tolstack evaluates every stack with the closed, worst
// case, RSS, modified RSS and six sigma methods and reports the capability
// and reject rate of each requirement.
//
// Usage:
//
//	tolstack analyze gearbox.yaml
//	tolstack analyze gearbox.yaml --json > report.json
//	tolstack analyze gearbox.yaml --max-ppm 100   # fail the build above 100 PPM
//	tolstack watch gearbox.yaml
//	tolstack history list
//	tolstack history show <run-id>
//	tolstack serve --addr 127.0.0.1:8088
//
// Example requests against serve:
//
//	curl http://127.0.0.1:8088/health
//	curl -X POST --data-binary @gearbox.yaml http://127.0.0.1:8088/v1/analyze
//	curl http://127.0.0.1:8088/v1/runs?limit=5
package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
