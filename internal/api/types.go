// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Azure DevOps header and query names.
const (
	HeaderContinuation = "x-ms-continuationtoken"
	HeaderRetryAfter   = "Retry-After"
	HeaderRateReset    = "X-RateLimit-Reset"
	HeaderSession      = "X-TFS-Session"

	QueryAPIVersion   = "api-version"
	QueryContinuation = "continuationToken"
	QueryTop          = "$top"
	QuerySkip         = "$skip"
)

// Content types accepted by the REST API.
const (
	ContentJSON      = "application/json"
	ContentJSONPatch = "application/json-patch+json"
)

// Request describes one logical API call. Path is relative to the
// organization, e.g. "/Fabrikam/_apis/wit/workitems/42". Request values
// are immutable; the With* helpers return modified copies.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any
	ContentType string

	// Idempotent requests are retried on server and network failures.
	// Rate limited requests are retried regardless.
	Idempotent bool

	ContinuationToken string
}

// NewRequest creates a request whose idempotency follows its method.
func NewRequest(method, path string) Request {
	return Request{
		Method:     method,
		Path:       path,
		Idempotent: idempotentMethod(method),
	}
}

// Get is shorthand for NewRequest(http.MethodGet, path).
func Get(path string) Request {
	return NewRequest(http.MethodGet, path)
}

// WithQuery returns a copy of r with key set to value.
func (r Request) WithQuery(key, value string) Request {
	q := make(url.Values, len(r.Query)+1)
	for k, v := range r.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(key, value)
	r.Query = q
	return r
}

// WithBody returns a copy of r carrying body. A []byte body is sent as is;
// anything else is JSON encoded.
func (r Request) WithBody(body any) Request {
	r.Body = body
	return r
}

// WithContentType returns a copy of r with an explicit content type.
func (r Request) WithContentType(contentType string) Request {
	r.ContentType = contentType
	return r
}

// WithContinuation returns a copy of r that resumes from token.
func (r Request) WithContinuation(token string) Request {
	r.ContinuationToken = token
	return r
}

// WithIdempotent overrides the method-derived idempotency.
func (r Request) WithIdempotent(idempotent bool) Request {
	r.Idempotent = idempotent
	return r
}

func (r Request) encodeBody() ([]byte, string, error) {
	if r.Body == nil {
		return nil, "", nil
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = ContentJSON
	}
	if raw, ok := r.Body.([]byte); ok {
		return raw, contentType, nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, contentType, nil
}

func idempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Response is a fully read, successful API response.
type Response struct {
	Status            int
	Header            http.Header
	Body              []byte
	ContinuationToken string
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// List is the envelope Azure DevOps wraps collection responses in.
type List[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}
