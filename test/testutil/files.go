// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
)

// WriteConfig writes a YAML config file into a fresh temp directory and
// returns its path.
func WriteConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// IsolateEnv clears every variable the CLI reads so host settings cannot
// leak into a test, and points XDG directories at a temp directory.
func IsolateEnv(t *testing.T) string {
	t.Helper()

	for _, name := range []string{
		"ADO_CONFIG", "ADO_ORGANIZATION", "ADO_PROJECT", "ADO_OUTPUT",
		"ADO_NON_INTERACTIVE", "ADO_LOG_LEVEL", "ADO_BASE_URL", "ADO_WORKERS",
		"ADO_PAT", "AZURE_DEVOPS_EXT_PAT", "NO_COLOR",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return home
}

// AssertFileExists checks that a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks that a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected file to not exist: %s", path)
	}
}
