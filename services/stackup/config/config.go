// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the runtime configuration of the stackup service
// and the tolstack CLI.
//
// Configuration is merged with priority env > file > defaults. Every field
// is checked by Validate with go-playground/validator tags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/tolstack/pkg/logging"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOLSTACK_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "~/.tolstack/config.yaml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains all tolstack configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Analysis controls the calculators.
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Output controls CLI rendering.
	Output OutputConfig `json:"output" yaml:"output"`

	// Store controls run history persistence.
	Store StoreConfig `json:"store" yaml:"store"`

	// Server controls the HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging controls the slog logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics controls the Prometheus textfile export.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Tracing controls OpenTelemetry spans.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Watch controls stack file watching.
	Watch WatchConfig `json:"watch" yaml:"watch"`

	// Export controls where finished reports are shipped.
	Export ExportConfig `json:"export" yaml:"export"`
}

// AnalysisConfig contains calculator settings.
type AnalysisConfig struct {
	// SixSigmaAt is the sigma multiplier of the six sigma band.
	SixSigmaAt float64 `json:"six_sigma_at" yaml:"six_sigma_at" validate:"gt=0"`

	// ProcessSigma is the target process sigma used when a stack file
	// gives none.
	ProcessSigma float64 `json:"process_sigma" yaml:"process_sigma" validate:"gt=0"`

	// Methods limits which calculators are shown. Empty shows all.
	Methods []string `json:"methods" yaml:"methods" validate:"dive,oneof=closed wc rss mrss six_sigma"`

	// Seed seeds sampling for reproducible reports.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// OutputConfig contains rendering settings.
type OutputConfig struct {
	// Mode is rich, plain or machine. Empty detects from the terminal.
	Mode string `json:"mode" yaml:"mode" validate:"omitempty,oneof=rich plain machine"`
}

// StoreConfig contains history settings.
type StoreConfig struct {
	// Enabled turns run history on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the badger directory. "~" expands to the home directory.
	Path string `json:"path" yaml:"path" validate:"required_if=Enabled true InMemory false"`

	// InMemory keeps history in memory only.
	InMemory bool `json:"in_memory" yaml:"in_memory"`

	// GCInterval is how often the value log is collected. 0 disables.
	GCInterval time.Duration `json:"gc_interval" yaml:"gc_interval" validate:"gte=0"`

	// MaxRuns is how many runs are kept. Older runs are pruned on save.
	MaxRuns int `json:"max_runs" yaml:"max_runs" validate:"gte=1,lte=10000"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr" validate:"required,hostname_port"`

	// RateLimit is the sustained requests per second. 0 disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`

	// Burst is the limiter bucket size.
	Burst int `json:"burst" yaml:"burst" validate:"gte=0"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" validate:"gt=0"`

	// Token, when set, is the bearer token every /v1 request must carry.
	Token string `json:"-" yaml:"token"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `json:"json" yaml:"json"`
	Dir   string `json:"dir" yaml:"dir"`
}

// MetricsConfig contains metric export settings.
type MetricsConfig struct {
	// TextfilePath receives gauges in Prometheus text format after each
	// analysis. Empty disables the export.
	TextfilePath string `json:"textfile_path" yaml:"textfile_path"`
}

// TracingConfig contains span export settings.
type TracingConfig struct {
	// Exporter is none, stdout or otlp.
	Exporter string `json:"exporter" yaml:"exporter" validate:"oneof=none stdout otlp"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"required_if=Exporter otlp"`

	// Insecure disables TLS to the collector.
	Insecure bool `json:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces kept.
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// WatchConfig contains file watching settings.
type WatchConfig struct {
	// Debounce is how long to wait for more writes before re-running.
	Debounce time.Duration `json:"debounce" yaml:"debounce" validate:"gt=0"`
}

// ExportConfig contains report export settings. Every exporter is off
// until its destination is set.
type ExportConfig struct {
	Influx InfluxExportConfig `json:"influx" yaml:"influx"`
	GCS    GCSExportConfig    `json:"gcs" yaml:"gcs"`
}

// InfluxExportConfig writes requirement and method results as points, for
// trending capability across runs.
type InfluxExportConfig struct {
	// URL of the InfluxDB 2 server. Empty disables the exporter.
	URL    string `json:"url" yaml:"url" validate:"omitempty,url"`
	Token  string `json:"token" yaml:"token"`
	Org    string `json:"org" yaml:"org" validate:"required_with=URL"`
	Bucket string `json:"bucket" yaml:"bucket" validate:"required_with=URL"`
}

// GCSExportConfig archives every report as JSON in a bucket.
type GCSExportConfig struct {
	// Bucket is the target bucket. Empty disables the exporter.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Prefix is prepended to object names.
	Prefix string `json:"prefix" yaml:"prefix"`

	// CredentialsFile is a service account key. Empty uses application
	// default credentials.
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			SixSigmaAt:   3,
			ProcessSigma: 3,
			Seed:         1,
		},
		Store: StoreConfig{
			Enabled:    true,
			Path:       "~/.tolstack/history",
			GCInterval: 5 * time.Minute,
			MaxRuns:    50,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8088",
			RateLimit:    20,
			Burst:        40,
			MaxBodyBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Exporter:   "none",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: YAML or JSON config file. Empty reads DefaultPath. A missing
//     file is not an error.
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file exists but is invalid, or the merged
//     result fails Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	if err := loadFile(logging.ExpandPath(path), &cfg); err != nil {
		return cfg, fmt.Errorf("load config file: %w", err)
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("load config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// envBinding maps one variable to a field setter.
type envBinding struct {
	name string
	set  func(string) error
}

func loadEnv(cfg *Config) error {
	bindings := []envBinding{
		{"SIX_SIGMA_AT", floatVar(&cfg.Analysis.SixSigmaAt)},
		{"PROCESS_SIGMA", floatVar(&cfg.Analysis.ProcessSigma)},
		{"METHODS", func(v string) error {
			cfg.Analysis.Methods = splitList(v)
			return nil
		}},
		{"SEED", func(v string) error {
			u, err := strconv.ParseUint(v, 10, 64)
			cfg.Analysis.Seed = u
			return err
		}},
		{"OUTPUT", stringVar(&cfg.Output.Mode)},
		{"STORE_ENABLED", boolVar(&cfg.Store.Enabled)},
		{"STORE_PATH", stringVar(&cfg.Store.Path)},
		{"STORE_IN_MEMORY", boolVar(&cfg.Store.InMemory)},
		{"STORE_GC_INTERVAL", durationVar(&cfg.Store.GCInterval)},
		{"STORE_MAX_RUNS", intVar(&cfg.Store.MaxRuns)},
		{"SERVER_ADDR", stringVar(&cfg.Server.Addr)},
		{"SERVER_RATE_LIMIT", floatVar(&cfg.Server.RateLimit)},
		{"SERVER_BURST", intVar(&cfg.Server.Burst)},
		{"SERVER_TOKEN", stringVar(&cfg.Server.Token)},
		{"LOG_LEVEL", stringVar(&cfg.Logging.Level)},
		{"LOG_JSON", boolVar(&cfg.Logging.JSON)},
		{"LOG_DIR", stringVar(&cfg.Logging.Dir)},
		{"METRICS_TEXTFILE", stringVar(&cfg.Metrics.TextfilePath)},
		{"TRACING_EXPORTER", stringVar(&cfg.Tracing.Exporter)},
		{"TRACING_ENDPOINT", stringVar(&cfg.Tracing.Endpoint)},
		{"TRACING_INSECURE", boolVar(&cfg.Tracing.Insecure)},
		{"TRACING_SAMPLE_RATE", floatVar(&cfg.Tracing.SampleRate)},
		{"WATCH_DEBOUNCE", durationVar(&cfg.Watch.Debounce)},
		{"EXPORT_INFLUX_URL", stringVar(&cfg.Export.Influx.URL)},
		{"EXPORT_INFLUX_TOKEN", stringVar(&cfg.Export.Influx.Token)},
		{"EXPORT_INFLUX_ORG", stringVar(&cfg.Export.Influx.Org)},
		{"EXPORT_INFLUX_BUCKET", stringVar(&cfg.Export.Influx.Bucket)},
		{"EXPORT_GCS_BUCKET", stringVar(&cfg.Export.GCS.Bucket)},
		{"EXPORT_GCS_PREFIX", stringVar(&cfg.Export.GCS.Prefix)},
		{"EXPORT_GCS_CREDENTIALS", stringVar(&cfg.Export.GCS.CredentialsFile)},
	}

	var errs []error
	for _, b := range bindings {
		name := EnvPrefix + b.name
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, v, err))
		}
	}
	return errors.Join(errs...)
}

func stringVar(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func floatVar(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = i
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// =============================================================================
// Validation
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is usable.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig and lists every failing field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoggerConfig converts the logging section for logging.New.
func (c Config) LoggerConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: "tolstack",
		JSON:    c.Logging.JSON,
	}
}
