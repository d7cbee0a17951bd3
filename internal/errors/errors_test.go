// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "nil error",
			err:  nil,
			want: 0,
		},
		{
			name: "auth not found",
			err:  NewAuthError(AuthNotFound, "contoso", nil),
			want: 2,
		},
		{
			name: "wrapped auth denied",
			err:  fmt.Errorf("get work item: %w", NewAuthError(AuthDenied, "contoso", nil)),
			want: 2,
		},
		{
			name: "usage error",
			err:  Usagef("unknown verb %q", "frobnicate"),
			want: 1,
		},
		{
			name: "api error",
			err:  &APIError{Kind: APIServer, Status: 503},
			want: 1,
		},
		{
			name: "adapter error",
			err:  MissingField("workitem", "title"),
			want: 1,
		},
		{
			name: "cancellation",
			err:  context.Canceled,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestNotFoundSentinels(t *testing.T) {
	cause := &APIError{Kind: APIClient, Status: 404, Method: "GET", Path: "/p/_apis/wit/workitems/42"}
	err := fmt.Errorf("workitem get: %w", NotFound("workitem", "42", ErrWorkItemNotFound, cause))

	if !errors.Is(err, ErrWorkItemNotFound) {
		t.Error("expected errors.Is(err, ErrWorkItemNotFound)")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound)")
	}
	if errors.Is(err, ErrRepositoryNotFound) {
		t.Error("did not expect errors.Is(err, ErrRepositoryNotFound)")
	}
	if !errors.Is(NotFound("project", "x", nil, nil), ErrNotFound) {
		t.Error("expected a generic not-found error to match ErrNotFound")
	}

	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatal("expected APIError in chain")
	}
	if apiErr.Status != 404 {
		t.Errorf("Status = %d, want 404", apiErr.Status)
	}

	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Kind != AdapterNotFound {
		t.Errorf("expected AdapterError of kind NotFound, got %v", err)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&AuthError{Kind: AuthNotFound, Organization: "contoso"}, `no credential found for organization "contoso"`},
		{&AuthError{Kind: AuthExpired, Organization: "contoso"}, `credential for organization "contoso" has expired`},
		{&APIError{Kind: APITimeout, Method: "GET", Path: "/_apis/projects"}, "GET /_apis/projects: request timed out"},
		{&APIError{Kind: APIRateLimited, Method: "GET", Path: "/x"}, "GET /x: rate limit exceeded"},
		{&APIError{Kind: APIClient, Status: 400, Method: "POST", Path: "/x", Body: "{\n \"message\": \"bad\"\n}"}, `POST /x: HTTP 400: { "message": "bad" }`},
		{MissingField("pr", "title"), "pr title: is required"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeKeepsRunes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ascii", strings.Repeat("a", 300)},
		{"two byte runes", strings.Repeat("é", 150)},
		{"three byte runes", "x" + strings.Repeat("€", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := summarize(tt.body)
			if !utf8.ValidString(got) {
				t.Errorf("summarize() produced invalid UTF-8: %q", got)
			}
			if !strings.HasSuffix(got, "...") {
				t.Errorf("summarize() = %q, want a truncated body", got)
			}
			if len(got) > 203 {
				t.Errorf("len(summarize()) = %d, want at most 203", len(got))
			}
		})
	}

	if got := summarize("short  body\n"); got != "short body" {
		t.Errorf("summarize() = %q, want %q", got, "short body")
	}
}

func TestHints(t *testing.T) {
	err := fmt.Errorf("resolve: %w", NewAuthError(AuthNotFound, "contoso", nil))

	hints := Hints(err)
	if len(hints) == 0 {
		t.Fatal("expected at least one hint")
	}
	if !strings.Contains(hints[0], "ado login") {
		t.Errorf("unexpected hint %q", hints[0])
	}

	if !IsUsage(Usagef("bad")) {
		t.Error("IsUsage should detect a UsageError behind a hint")
	}
}

func TestKindStrings(t *testing.T) {
	if AuthDenied.String() != "Denied" {
		t.Errorf("AuthDenied.String() = %q", AuthDenied.String())
	}
	if APIRateLimited.String() != "RateLimited" {
		t.Errorf("APIRateLimited.String() = %q", APIRateLimited.String())
	}
	if AdapterMissingField.String() != "MissingField" {
		t.Errorf("AdapterMissingField.String() = %q", AdapterMissingField.String())
	}
}
