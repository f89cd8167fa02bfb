// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the verifier server configuration from an optional
// YAML file with AARE_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aare-ai/aare-core/services/verifier/telemetry"
)

// Config is the verifier server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// Debug enables gin debug mode and verbose logging.
	Debug bool `yaml:"debug"`

	// OntologyBucket is the GCS bucket holding ontology documents. Empty
	// disables the GCS store and serves only embedded ontologies.
	OntologyBucket string `yaml:"ontology_bucket"`

	// CredentialsFile is the GCP service account key file. Empty uses
	// application default credentials.
	CredentialsFile string `yaml:"credentials_file"`

	// RequestTimeout bounds one verification request end to end.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// BudgetFloor is the minimum per-constraint solver budget.
	BudgetFloor time.Duration `yaml:"budget_floor"`

	// AllowedOrigins is the CORS allowlist; the first entry is the
	// primary origin. Empty uses the built-in allowlist.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Telemetry configures traces and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// DefaultConfig returns production-shaped defaults.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		RequestTimeout: 30 * time.Second,
		BudgetFloor:    50 * time.Millisecond,
		Telemetry:      telemetry.DefaultConfig(),
	}
}

// Load reads the configuration, layering defaults, the optional YAML file
// at path, and AARE_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return cfg, fmt.Errorf("invalid request_timeout: %s", cfg.RequestTimeout)
	}
	return cfg, nil
}

// applyEnv overlays AARE_* environment variables. Unparseable values are
// ignored rather than fatal so a stray variable cannot block startup.
func applyEnv(cfg *Config) {
	if v := os.Getenv("AARE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("AARE_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}
	if v := os.Getenv("AARE_ONTOLOGY_BUCKET"); v != "" {
		cfg.OntologyBucket = v
	}
	if v := os.Getenv("AARE_CREDENTIALS_FILE"); v != "" {
		cfg.CredentialsFile = v
	}
	if v := os.Getenv("AARE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv("AARE_BUDGET_FLOOR"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BudgetFloor = d
		}
	}
}
