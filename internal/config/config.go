// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package config provides configuration management for ado with support
// for multiple configuration sources and a well-defined precedence order.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags (applied by the CLI after loading)
//  2. Environment variables
//  3. Configuration file
//  4. Built-in defaults
//
// The configuration file is discovered in standard locations when no
// explicit path is given. Credentials never live in this file; see the
// credential package.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables recognized by ado.
const (
	EnvConfig         = "ADO_CONFIG"
	EnvOrganization   = "ADO_ORGANIZATION"
	EnvProject        = "ADO_PROJECT"
	EnvOutput         = "ADO_OUTPUT"
	EnvNonInteractive = "ADO_NON_INTERACTIVE"
	EnvLogLevel       = "ADO_LOG_LEVEL"
	EnvBaseURL        = "ADO_BASE_URL"
	EnvWorkers        = "ADO_WORKERS"
	EnvPAT            = "ADO_PAT"
	EnvLegacyPAT      = "AZURE_DEVOPS_EXT_PAT"
	EnvNoColor        = "NO_COLOR"
)

// MaxWorkers bounds concurrent page fetches.
const MaxWorkers = 4

// LoadConfig loads configuration from the config file and the
// environment. If configPath is empty, ADO_CONFIG is consulted, then the
// standard locations:
//   - .ado.yaml (current directory)
//   - .ado.yml (current directory)
//   - $XDG_CONFIG_HOME/ado/config.yaml
//
// A missing file in a standard location is not an error; an explicitly
// named file that cannot be read is.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}

	if configPath != "" {
		path := expandPath(configPath)
		if err := loadConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.Path = path
	} else {
		cfg.Path = DefaultConfigPath()
		for _, path := range []string{".ado.yaml", ".ado.yml", cfg.Path} {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				cfg.Path = path
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Auth.StorePath == "" {
		cfg.Auth.StorePath = DefaultCredentialsPath()
	}
	cfg.Auth.StorePath = expandPath(cfg.Auth.StorePath)
	if cfg.Output.Columns == nil {
		cfg.Output.Columns = make(map[string][]string)
	}

	return cfg, nil
}

// DefaultConfigPath is $XDG_CONFIG_HOME/ado/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "ado", "config.yaml")
}

// DefaultCredentialsPath is $XDG_CONFIG_HOME/ado/credentials.json.
func DefaultCredentialsPath() string {
	return filepath.Join(xdg.ConfigHome, "ado", "credentials.json")
}

// PATFromEnv returns the personal access token override from the
// environment, if any. ADO_PAT wins over AZURE_DEVOPS_EXT_PAT.
func PATFromEnv() string {
	if pat := strings.TrimSpace(os.Getenv(EnvPAT)); pat != "" {
		return pat
	}
	return strings.TrimSpace(os.Getenv(EnvLegacyPAT))
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if org := os.Getenv(EnvOrganization); org != "" {
		cfg.Organization = org
	}
	if project := os.Getenv(EnvProject); project != "" {
		cfg.Project = project
	}
	if format := os.Getenv(EnvOutput); format != "" {
		cfg.Output.Format = strings.ToLower(format)
	}
	if nonInteractive := os.Getenv(EnvNonInteractive); nonInteractive != "" {
		cfg.Auth.Interactive = !parseBool(nonInteractive)
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}
	if baseURL := os.Getenv(EnvBaseURL); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if workers := os.Getenv(EnvWorkers); workers != "" {
		if n, err := parsePositiveInt(workers); err == nil {
			cfg.API.Workers = n
		}
	}
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = false
	}
}

// SaveDefaultProject persists project as the default project in the
// config file at path, keeping every other setting in the file intact.
// The file is replaced atomically.
func SaveDefaultProject(path, project string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	doc := make(map[string]any)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if doc == nil {
			doc = make(map[string]any)
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	doc["project"] = project

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := renameio.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// parseBool parses various boolean representations
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// Validate checks that the configuration holds usable values. Call it
// after flags have been applied so bad flag values are caught too.
func (c *Config) Validate() error {
	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatTSV:
	default:
		return fmt.Errorf("unsupported output format %q: expected table, json or tsv", c.Output.Format)
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL cannot be empty")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL %q", c.API.BaseURL)
	}
	if c.API.APIVersion == "" {
		return fmt.Errorf("API version cannot be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive, got: %s", c.API.Timeout)
	}
	if c.API.PageSize <= 0 || c.API.PageSize > 1000 {
		return fmt.Errorf("page size must be between 1 and 1000, got: %d", c.API.PageSize)
	}
	if c.API.Workers < 1 || c.API.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got: %d", MaxWorkers, c.API.Workers)
	}

	r := c.API.Retry
	if r.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got: %d", r.MaxAttempts)
	}
	if r.BaseDelay <= 0 {
		return fmt.Errorf("retry base_delay must be positive, got: %s", r.BaseDelay)
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("retry max_delay (%s) must not be less than base_delay (%s)", r.MaxDelay, r.BaseDelay)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1, got: %g", r.Multiplier)
	}

	switch c.Auth.Method {
	case MethodPAT, MethodDeviceCode:
	default:
		return fmt.Errorf("unsupported auth method %q: expected pat or device-code", c.Auth.Method)
	}
	switch c.Auth.Store {
	case StoreFile, StoreKeyring:
	default:
		return fmt.Errorf("unsupported credential store %q: expected file or keyring", c.Auth.Store)
	}

	return nil
}
