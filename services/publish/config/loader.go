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
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// DefaultPath returns the default config location,
// ~/.aleutianpress/press.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutianpress", "press.yaml"), nil
}

// Load reads, defaults, and validates the configuration at path. An
// empty path uses DefaultPath, creating a default config file on first
// run.
func Load(path string) (*PressConfig, error) {
	firstRunOK := false
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
		firstRunOK = true
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if !firstRunOK {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration bytes. Missing values fall
// back to DefaultConfig.
func Parse(data []byte) (*PressConfig, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults restores required values an explicit config wiped out by
// setting them to their zero value.
func applyDefaults(cfg *PressConfig) {
	def := DefaultConfig()
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if len(cfg.Publishing.Languages) == 0 {
		cfg.Publishing.Languages = def.Publishing.Languages
	}
	if cfg.Publishing.ArticleLockTTL == 0 {
		cfg.Publishing.ArticleLockTTL = def.Publishing.ArticleLockTTL
	}
	if cfg.Publishing.EnvironmentLockTTL == 0 {
		cfg.Publishing.EnvironmentLockTTL = def.Publishing.EnvironmentLockTTL
	}
	if cfg.Publishing.OperationTimeout == 0 {
		cfg.Publishing.OperationTimeout = def.Publishing.OperationTimeout
	}
	if cfg.Publishing.RetryAttempts == 0 {
		cfg.Publishing.RetryAttempts = def.Publishing.RetryAttempts
	}
	if cfg.Publishing.RetryBackoff == 0 {
		cfg.Publishing.RetryBackoff = def.Publishing.RetryBackoff
	}
	if cfg.Backups.Retention == 0 {
		cfg.Backups.Retention = def.Backups.Retention
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
