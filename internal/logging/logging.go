// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package logging builds the structured stderr logger used by ado.
// Diagnostics always go to stderr so stdout stays machine-readable.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "warn"

// New returns a logger writing to w at the given level. An empty level
// selects DefaultLevel.
func New(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		Level:  lvl,
		Prefix: "ado",
	}), nil
}

// ParseLevel accepts debug, info, warn, error and fatal (case-insensitive).
func ParseLevel(level string) (log.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.WarnLevel, fmt.Errorf("invalid log level %q: supported levels are debug, info, warn, error", level)
	}
	return lvl, nil
}

// Discard returns a logger that drops everything. Used by tests and by
// library callers that pass no logger.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
