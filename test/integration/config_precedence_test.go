// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/christianhelle/azdocli/test/testutil"
	"gopkg.in/yaml.v3"
)

// TestConfigFilePrecedence checks that flags beat the environment, which
// beats the config file.
func TestConfigFilePrecedence(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.HandleJSON("GET /_apis/wit/workitems/7", 200, testutil.WorkItem(7, "Write docs", "New"))

	tests := []struct {
		name       string
		configFile map[string]any
		envVars    map[string]string
		cliArgs    []string
		wantFormat string
	}{
		{
			name:       "defaults",
			wantFormat: "table",
		},
		{
			name:       "config file",
			configFile: map[string]any{"output": map[string]any{"format": "json"}},
			wantFormat: "json",
		},
		{
			name:       "env overrides config",
			configFile: map[string]any{"output": map[string]any{"format": "json"}},
			envVars:    map[string]string{"ADO_OUTPUT": "tsv"},
			wantFormat: "tsv",
		},
		{
			name:       "flag overrides env",
			configFile: map[string]any{"output": map[string]any{"format": "json"}},
			envVars:    map[string]string{"ADO_OUTPUT": "tsv"},
			cliArgs:    []string{"-o", "json"},
			wantFormat: "json",
		},
		{
			name:       "organization from config",
			configFile: map[string]any{"organization": testutil.Organization, "output": map[string]any{"format": "tsv"}},
			envVars:    map[string]string{"ADO_ORGANIZATION": ""},
			wantFormat: "tsv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{
				"ADO_ORGANIZATION": testutil.Organization,
				"ADO_BASE_URL":     m.URL,
				"ADO_PAT":          "secret",
			}
			for k, v := range tt.envVars {
				if v == "" {
					delete(env, k)
					continue
				}
				env[k] = v
			}
			if tt.configFile != nil {
				data, err := yaml.Marshal(tt.configFile)
				if err != nil {
					t.Fatal(err)
				}
				path := filepath.Join(t.TempDir(), "config.yaml")
				if err := os.WriteFile(path, data, 0o600); err != nil {
					t.Fatal(err)
				}
				env["ADO_CONFIG"] = path
			}

			args := append([]string{"workitem", "get", "7"}, tt.cliArgs...)
			res := runBinary(t, env, args...)
			if res.code != 0 {
				t.Fatalf("Expected exit 0, got %d: %s", res.code, res.stderr)
			}

			if got := detectFormat(res.stdout); got != tt.wantFormat {
				t.Errorf("Expected %s output, got %s:\n%s", tt.wantFormat, got, res.stdout)
			}
		})
	}
}

func TestConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("output:\n  format: xml\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res := runBinary(t, map[string]string{"ADO_CONFIG": path, "ADO_PAT": "secret"},
		"--org", testutil.Organization, "workitem", "get", "1")
	if res.code != 1 {
		t.Errorf("Expected exit 1, got %d", res.code)
	}
	testutil.AssertContainsString(t, res.stderr, "unsupported output format")
}

func TestConfigFile_Missing(t *testing.T) {
	res := runBinary(t, nil, "--config", "/nonexistent/ado.yaml", "project", "list")
	if res.code != 1 {
		t.Errorf("Expected exit 1, got %d", res.code)
	}
	testutil.AssertContainsString(t, res.stderr, "failed to load config file")
}

func detectFormat(out string) string {
	trimmed := strings.TrimSpace(out)
	if json.Valid([]byte(trimmed)) && (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
		return "json"
	}
	first, _, _ := strings.Cut(trimmed, "\n")
	if strings.Contains(first, "\t") {
		return "tsv"
	}
	return "table"
}
