// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package errors defines the error taxonomy shared by every layer of ado.
//
// Four families exist:
//   - UsageError: the invocation itself is wrong. Never reaches the network.
//   - AuthError: no usable credential (NotFound, Expired) or the platform
//     rejected it (Denied).
//   - APIError: the remote call failed (Client, Server, Timeout,
//     RateLimited, Network).
//   - AdapterError: a resource adapter rejected its input or the
//     resource does not exist.
//
// ExitCode maps any error chain onto the process exit code.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Per-resource not-found sentinels. AdapterError values of kind
// AdapterNotFound wrap one of these so callers can use errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrWorkItemNotFound    = errors.New("work item not found")
	ErrRepositoryNotFound  = errors.New("repository not found")
	ErrPipelineNotFound    = errors.New("pipeline not found")
	ErrRunNotFound         = errors.New("pipeline run not found")
	ErrPullRequestNotFound = errors.New("pull request not found")
	ErrProjectNotFound     = errors.New("project not found")
)

// AuthKind classifies an AuthError.
type AuthKind int

const (
	// AuthNotFound means no credential is stored and none could be obtained.
	AuthNotFound AuthKind = iota + 1
	// AuthExpired means the stored credential expired and refresh failed.
	AuthExpired
	// AuthDenied means the platform rejected the credential.
	AuthDenied
)

func (k AuthKind) String() string {
	switch k {
	case AuthNotFound:
		return "NotFound"
	case AuthExpired:
		return "Expired"
	case AuthDenied:
		return "Denied"
	default:
		return "Unknown"
	}
}

// AuthError reports a credential problem for an organization.
type AuthError struct {
	Kind         AuthKind
	Organization string
	Err          error
}

func (e *AuthError) Error() string {
	var msg string
	switch e.Kind {
	case AuthNotFound:
		msg = fmt.Sprintf("no credential found for organization %q", e.Organization)
	case AuthExpired:
		msg = fmt.Sprintf("credential for organization %q has expired", e.Organization)
	case AuthDenied:
		msg = fmt.Sprintf("access denied for organization %q", e.Organization)
	default:
		msg = fmt.Sprintf("authentication failed for organization %q", e.Organization)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError with the login hint attached.
func NewAuthError(kind AuthKind, organization string, cause error) error {
	err := error(&AuthError{Kind: kind, Organization: organization, Err: cause})
	switch kind {
	case AuthNotFound, AuthExpired:
		return errors.WithHint(err, "Run 'ado login' or set ADO_PAT to provide a personal access token")
	case AuthDenied:
		return errors.WithHint(err, "Check that the token is valid and has the required scopes for this organization")
	}
	return err
}

// APIKind classifies an APIError.
type APIKind int

const (
	// APIClient is a non-retryable 4xx response.
	APIClient APIKind = iota + 1
	// APIServer is a 5xx response that survived every retry.
	APIServer
	// APITimeout means a single attempt hit its deadline.
	APITimeout
	// APIRateLimited means 429 responses exhausted the retry budget.
	APIRateLimited
	// APINetwork means the connection failed on every attempt.
	APINetwork
)

func (k APIKind) String() string {
	switch k {
	case APIClient:
		return "Client"
	case APIServer:
		return "Server"
	case APITimeout:
		return "Timeout"
	case APIRateLimited:
		return "RateLimited"
	case APINetwork:
		return "Network"
	default:
		return "Unknown"
	}
}

// APIError reports a failed remote call.
type APIError struct {
	Kind   APIKind
	Status int
	Method string
	Path   string
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	target := strings.TrimSpace(e.Method + " " + e.Path)
	var msg string
	switch e.Kind {
	case APITimeout:
		msg = fmt.Sprintf("%s: request timed out", target)
	case APIRateLimited:
		msg = fmt.Sprintf("%s: rate limit exceeded", target)
	case APINetwork:
		msg = fmt.Sprintf("%s: network error", target)
	default:
		msg = fmt.Sprintf("%s: HTTP %d", target, e.Status)
		if body := summarize(e.Body); body != "" {
			msg += ": " + body
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// UsageError reports a malformed invocation.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// Usagef builds a UsageError with a help hint attached.
func Usagef(format string, args ...any) error {
	return errors.WithHint(&UsageError{Msg: fmt.Sprintf(format, args...)}, "Run 'ado --help' for usage")
}

// AdapterKind classifies an AdapterError.
type AdapterKind int

const (
	// AdapterMissingField means a required field was not supplied.
	AdapterMissingField AdapterKind = iota + 1
	// AdapterInvalidField means a field failed validation.
	AdapterInvalidField
	// AdapterNotFound means the addressed resource does not exist.
	AdapterNotFound
)

func (k AdapterKind) String() string {
	switch k {
	case AdapterMissingField:
		return "MissingField"
	case AdapterInvalidField:
		return "InvalidField"
	case AdapterNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// AdapterError reports a domain-level failure inside a resource adapter.
type AdapterError struct {
	Kind     AdapterKind
	Resource string
	Field    string
	Msg      string
	Err      error
}

func (e *AdapterError) Error() string {
	msg := e.Resource
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error { return e.Err }

// MissingField reports a required field that was not supplied.
func MissingField(resource, field string) error {
	return &AdapterError{Kind: AdapterMissingField, Resource: resource, Field: field, Msg: "is required"}
}

// InvalidField reports a field that failed validation.
func InvalidField(resource, field, reason string) error {
	return &AdapterError{Kind: AdapterInvalidField, Resource: resource, Field: field, Msg: reason}
}

// NotFound reports a missing resource. sentinel should be one of the
// Err*NotFound values; cause is the underlying API error. The result
// matches both sentinel and ErrNotFound.
func NotFound(resource, id string, sentinel, cause error) error {
	if sentinel == nil {
		sentinel = ErrNotFound
	}
	return &AdapterError{
		Kind:     AdapterNotFound,
		Resource: resource,
		Msg:      fmt.Sprintf("%q does not exist or is not accessible", id),
		Err:      &notFoundError{sentinel: sentinel, cause: cause},
	}
}

type notFoundError struct {
	sentinel error
	cause    error
}

func (e *notFoundError) Error() string {
	if e.cause == nil {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *notFoundError) Unwrap() []error {
	errs := []error{e.sentinel}
	if e.sentinel != ErrNotFound {
		errs = append(errs, ErrNotFound)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// AsAuthError returns the first AuthError in the chain.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if stderrors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// AsAPIError returns the first APIError in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUsage reports whether the chain contains a UsageError.
func IsUsage(err error) bool {
	var usageErr *UsageError
	return stderrors.As(err, &usageErr)
}

// WithHint attaches a user-facing suggestion to err.
func WithHint(err error, hint string) error {
	return errors.WithHint(err, hint)
}

// Hints returns every hint attached anywhere in the chain.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}

// ExitCode maps an error to the process exit code: 0 for nil, 2 for
// authentication failures, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := AsAuthError(err); ok {
		return 2
	}
	return 1
}

// summarize trims a response body to a single short line.
func summarize(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	const limit = 200
	if len(body) <= limit {
		return body
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}
