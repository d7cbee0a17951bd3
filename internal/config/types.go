// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package config types define the configuration structures used throughout
// ado. These types represent settings that can be loaded from YAML
// configuration files, environment variables, or command-line flags.
package config

import "time"

// Recognized output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatTSV   = "tsv"
)

// Recognized authentication methods.
const (
	MethodPAT        = "pat"
	MethodDeviceCode = "device-code"
)

// Recognized credential store backends.
const (
	StoreFile    = "file"
	StoreKeyring = "keyring"
)

// Config represents the complete configuration for ado. It consolidates
// settings from the config file, the environment and built-in defaults.
type Config struct {
	Organization string       `yaml:"organization"`
	Project      string       `yaml:"project"`
	Output       OutputConfig `yaml:"output"`
	API          APIConfig    `yaml:"api"`
	Auth         AuthConfig   `yaml:"auth"`
	LogLevel     string       `yaml:"log_level"`

	// Path is the file the configuration was loaded from, or the default
	// location when no file exists yet. SaveDefaultProject writes here.
	Path string `yaml:"-"`
}

// OutputConfig controls how results are rendered.
type OutputConfig struct {
	Format string `yaml:"format"`
	Color  bool   `yaml:"color"`

	// Columns holds per-resource default column selections, keyed by
	// resource name (e.g. "workitem": ["id", "title", "state"]).
	Columns map[string][]string `yaml:"columns"`
}

// APIConfig contains settings for talking to the Azure DevOps REST API.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
	PageSize   int           `yaml:"page_size"`
	Workers    int           `yaml:"workers"`
	Retry      RetryConfig   `yaml:"retry"`
}

// RetryConfig holds the retry and backoff policy for transient failures.
type RetryConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	BaseDelay        time.Duration `yaml:"base_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	Multiplier       float64       `yaml:"multiplier"`
	MaxRateLimitWait time.Duration `yaml:"max_rate_limit_wait"`
}

// AuthConfig selects how credentials are obtained and where they live.
type AuthConfig struct {
	Method      string `yaml:"method"`
	Store       string `yaml:"store"`
	StorePath   string `yaml:"store_path"`
	Interactive bool   `yaml:"interactive"`
	ClientID    string `yaml:"client_id"`
	TenantID    string `yaml:"tenant_id"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format:  FormatTable,
			Color:   true,
			Columns: make(map[string][]string),
		},
		API: APIConfig{
			BaseURL:    "https://dev.azure.com",
			APIVersion: "7.1",
			Timeout:    30 * time.Second,
			PageSize:   100,
			Workers:    4,
			Retry: RetryConfig{
				MaxAttempts:      4,
				BaseDelay:        500 * time.Millisecond,
				MaxDelay:         30 * time.Second,
				Multiplier:       2.0,
				MaxRateLimitWait: 2 * time.Minute,
			},
		},
		Auth: AuthConfig{
			Method:      MethodPAT,
			Store:       StoreFile,
			Interactive: true,
			// Visual Studio public client, accepted for Azure DevOps scopes.
			ClientID: "872cd9fa-d31f-45e0-9eab-6e460a02d1f1",
			TenantID: "organizations",
		},
		LogLevel: "warn",
	}
}
