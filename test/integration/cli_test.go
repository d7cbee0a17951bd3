// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package integration

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/christianhelle/azdocli/test/testutil"
)

var binaryPath string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "ado-integration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(dir, "ado")
	build := exec.Command("go", "build", "-o", binaryPath, "../../cmd/ado")
	if output, err := build.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\nOutput: %s\n", err, output)
		os.RemoveAll(dir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runBinary runs ado with a clean environment plus env.
func runBinary(t *testing.T, env map[string]string, args ...string) cliResult {
	t.Helper()

	home := t.TempDir()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = []string{
		"HOME=" + home,
		"XDG_CONFIG_HOME=" + filepath.Join(home, "config"),
		"XDG_DATA_HOME=" + filepath.Join(home, "data"),
		"PATH=" + os.Getenv("PATH"),
	}
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Dir = home

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("Failed to run binary: %v", err)
	}
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestCLI_HelpCommand(t *testing.T) {
	res := runBinary(t, nil, "--help")
	if res.code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", res.code, res.stderr)
	}
	for _, want := range []string{"workitem", "repo", "pipeline", "run", "pr", "project", "login", "--org", "--output"} {
		testutil.AssertContainsString(t, res.stdout, want)
	}

	res = runBinary(t, nil, "pr", "create", "--help")
	for _, want := range []string{"create <repo>", "--source", "--target", "--draft"} {
		testutil.AssertContainsString(t, res.stdout, want)
	}
}

func TestCLI_VersionFlag(t *testing.T) {
	res := runBinary(t, nil, "--version")
	if res.code != 0 {
		t.Fatalf("Expected exit 0, got %d", res.code)
	}
	testutil.AssertContainsString(t, res.stdout, "ado version dev")
}

func TestCLI_ExitCodes(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.HandleJSON("GET /_apis/wit/workitems/42", 200, testutil.WorkItem(42, "Fix bug", "Active"))
	m.HandleJSON("GET /_apis/wit/workitems/43", 404, testutil.ErrorBody("TF401232"))

	base := map[string]string{
		"ADO_ORGANIZATION": testutil.Organization,
		"ADO_BASE_URL":     m.URL,
	}
	withPAT := map[string]string{"ADO_PAT": "secret"}

	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		wantCode int
		wantErr  string
	}{
		{name: "success", env: withPAT, args: []string{"workitem", "get", "42"}, wantCode: 0},
		{name: "not found", env: withPAT, args: []string{"workitem", "get", "43"}, wantCode: 1, wantErr: "does not exist"},
		{name: "unknown verb", env: withPAT, args: []string{"workitem", "close", "42"}, wantCode: 1, wantErr: "unknown verb"},
		{name: "no credential", args: []string{"workitem", "get", "42", "--non-interactive"}, wantCode: 2, wantErr: "no credential found"},
		{
			name:     "no credential without a terminal",
			args:     []string{"workitem", "get", "42"},
			wantCode: 2,
			wantErr:  "no credential found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			for k, v := range tt.env {
				env[k] = v
			}

			res := runBinary(t, env, tt.args...)
			if res.code != tt.wantCode {
				t.Errorf("Expected exit %d, got %d\nstderr: %s", tt.wantCode, res.code, res.stderr)
			}
			if tt.wantErr != "" {
				testutil.AssertContainsString(t, res.stderr, tt.wantErr)
				testutil.AssertNotContainsString(t, res.stdout, "Error")
			}
		})
	}
}

func TestCLI_TokenNeverPrinted(t *testing.T) {
	m := testutil.NewErrorServer(t, 401)
	env := map[string]string{
		"ADO_ORGANIZATION": testutil.Organization,
		"ADO_BASE_URL":     m.URL,
		"ADO_PAT":          "super-secret-token",
	}

	res := runBinary(t, env, "project", "list", "-v")
	if res.code != 2 {
		t.Errorf("Expected exit 2, got %d", res.code)
	}
	if strings.Contains(res.stdout+res.stderr, "super-secret-token") {
		t.Error("token leaked into output")
	}
}
