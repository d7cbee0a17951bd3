// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package testutil

import (
	"os"
	"strings"
	"testing"
)

// TableRows splits rendered table or TSV output into trimmed, non-empty
// lines, header first.
func TableRows(output string) []string {
	var rows []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimRight(line, " "); line != "" {
			rows = append(rows, line)
		}
	}
	return rows
}

// AssertRowCount checks that output has a header plus want data rows.
func AssertRowCount(t *testing.T, output string, want int) {
	t.Helper()
	rows := TableRows(output)
	if len(rows) != want+1 {
		t.Errorf("expected header plus %d rows, got %d lines:\n%s", want, len(rows), output)
	}
}

// AssertContainsString checks if a string contains a substring
func AssertContainsString(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("Expected string to contain %q, got: %s", needle, haystack)
	}
}

// AssertNotContainsString checks if a string does not contain a substring
func AssertNotContainsString(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Errorf("Expected string to NOT contain %q, got: %s", needle, haystack)
	}
}

// AssertFilePermissions checks file has expected permissions
func AssertFilePermissions(t *testing.T, path string, expectedMode os.FileMode) {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if mode := info.Mode().Perm(); mode != expectedMode {
		t.Errorf("Expected file mode %v, got %v", expectedMode, mode)
	}
}
