// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/tolstack/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3.0, cfg.Analysis.SixSigmaAt)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.True(t, cfg.Store.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "c.yaml", `
analysis:
  six_sigma_at: 4.5
  methods: [wc, rss]
output:
  mode: plain
store:
  in_memory: true
watch:
  debounce: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4.5, cfg.Analysis.SixSigmaAt)
	assert.Equal(t, []string{"wc", "rss"}, cfg.Analysis.Methods)
	assert.Equal(t, "plain", cfg.Output.Mode)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	// untouched sections keep defaults
	assert.Equal(t, "127.0.0.1:8088", cfg.Server.Addr)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "c.json", `{"analysis": {"six_sigma_at": 6, "process_sigma": 3}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6.0, cfg.Analysis.SixSigmaAt)
}

func TestLoad_Malformed(t *testing.T) {
	path := writeFile(t, "c.yaml", "analysis: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "c.yaml", "analysis:\n  six_sigma_at: 4.5\n")
	t.Setenv("TOLSTACK_SIX_SIGMA_AT", "6")
	t.Setenv("TOLSTACK_METHODS", "WC, mrss ,")
	t.Setenv("TOLSTACK_STORE_ENABLED", "false")
	t.Setenv("TOLSTACK_WATCH_DEBOUNCE", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6.0, cfg.Analysis.SixSigmaAt)
	assert.Equal(t, []string{"wc", "mrss"}, cfg.Analysis.Methods)
	assert.False(t, cfg.Store.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("TOLSTACK_SERVER_BURST", "many")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOLSTACK_SERVER_BURST")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero six sigma", func(c *Config) { c.Analysis.SixSigmaAt = 0 }},
		{"negative process sigma", func(c *Config) { c.Analysis.ProcessSigma = -1 }},
		{"unknown method", func(c *Config) { c.Analysis.Methods = []string{"monte_carlo"} }},
		{"unknown output", func(c *Config) { c.Output.Mode = "fancy" }},
		{"store without path", func(c *Config) { c.Store.Path = "" }},
		{"bad addr", func(c *Config) { c.Server.Addr = "nowhere" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Exporter = "otlp" }},
		{"sample rate above one", func(c *Config) { c.Tracing.SampleRate = 2 }},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = 0 }},
		{"influx url malformed", func(c *Config) {
			c.Export.Influx = InfluxExportConfig{URL: "not a url", Org: "o", Bucket: "b"}
		}},
		{"influx without bucket", func(c *Config) {
			c.Export.Influx = InfluxExportConfig{URL: "http://localhost:8086", Org: "o"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("complete influx export", func(t *testing.T) {
		cfg := Default()
		cfg.Export.Influx = InfluxExportConfig{URL: "http://localhost:8086", Org: "o", Bucket: "b"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("in memory store needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Path = ""
		cfg.Store.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	cfg.Logging.JSON = true

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.True(t, lc.JSON)
	assert.Equal(t, "tolstack", lc.Service)
}
