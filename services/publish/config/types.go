// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the publish service configuration.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "2m" or
// "30s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a Go duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PressConfig is the root service configuration.
type PressConfig struct {
	// Server configures the admin HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Storage configures the object store and the metadata database.
	Storage StorageConfig `yaml:"storage"`

	// Environments configures the staging and production targets.
	Environments EnvironmentsConfig `yaml:"environments"`

	// Publishing configures the coordinator.
	Publishing PublishingConfig `yaml:"publishing"`

	// Backups configures snapshot retention.
	Backups BackupsConfig `yaml:"backups"`

	// Telemetry configures tracing and metrics export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required,gt=0,lte=65535"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	// Bucket is the object-store bucket holding both environments and
	// the backups prefix. Empty selects the in-memory store, which only
	// makes sense for tests and local experiments.
	Bucket string `yaml:"bucket"`

	// CredentialsFile is the service-account key for the bucket and the
	// CDN invalidation client.
	CredentialsFile string `yaml:"credentials_file"`

	// Project is the GCP project owning the CDN URL maps named by the
	// environment distributions. Required for cache invalidation.
	Project string `yaml:"project"`

	// BadgerPath is the metadata database directory. Empty selects an
	// in-memory database.
	BadgerPath string `yaml:"badger_path"`
}

type EnvironmentConfig struct {
	// Prefix is the object key prefix, e.g. "staging".
	Prefix string `yaml:"prefix" validate:"required"`

	// BaseURL is the public root readers use.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Distribution is the CDN distribution id. Empty disables
	// invalidation for this environment.
	Distribution string `yaml:"distribution"`
}

type EnvironmentsConfig struct {
	Staging    EnvironmentConfig `yaml:"staging" validate:"required"`
	Production EnvironmentConfig `yaml:"production" validate:"required"`
}

type PublishingConfig struct {
	// Languages are the supported language codes, in rendering order.
	Languages []string `yaml:"languages" validate:"required,min=1,dive,required"`

	ArticleLockTTL     Duration `yaml:"article_lock_ttl"`
	EnvironmentLockTTL Duration `yaml:"environment_lock_ttl"`
	OperationTimeout   Duration `yaml:"operation_timeout"`

	RetryAttempts int      `yaml:"retry_attempts" validate:"gte=0,lte=10"`
	RetryBackoff  Duration `yaml:"retry_backoff"`
}

type BackupsConfig struct {
	// Retention is how long a backup is kept before the sweeper may
	// delete it. The newest backup always survives.
	Retention Duration `yaml:"retention"`

	// SweepInterval is how often the retention sweeper runs. Zero
	// disables the sweeper.
	SweepInterval Duration `yaml:"sweep_interval"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// OTLPEndpoint is the collector address for trace export, e.g.
	// "localhost:4317". Empty disables trace export but keeps the
	// Prometheus metrics endpoint.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// ServiceName overrides the reported service name.
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// JSON selects machine-parseable output. Defaults to true for the
	// service daemon.
	JSON bool `yaml:"json"`

	// Dir enables file logging alongside stderr when set.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() PressConfig {
	return PressConfig{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8094,
		},
		Storage: StorageConfig{
			BadgerPath: "~/.aleutianpress/db",
		},
		Environments: EnvironmentsConfig{
			Staging: EnvironmentConfig{
				Prefix:  "staging",
				BaseURL: "https://staging.example.com",
			},
			Production: EnvironmentConfig{
				Prefix:  "production",
				BaseURL: "https://www.example.com",
			},
		},
		Publishing: PublishingConfig{
			Languages:          []string{"en", "es", "uk"},
			ArticleLockTTL:     Duration(2 * time.Minute),
			EnvironmentLockTTL: Duration(5 * time.Minute),
			OperationTimeout:   Duration(2 * time.Minute),
			RetryAttempts:      3,
			RetryBackoff:       Duration(250 * time.Millisecond),
		},
		Backups: BackupsConfig{
			Retention:     Duration(30 * 24 * time.Hour),
			SweepInterval: Duration(6 * time.Hour),
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: "aleutian-press",
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
	}
}
