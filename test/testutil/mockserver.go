// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package testutil provides an in-process fake of the Azure DevOps REST
// API and helpers shared by package tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Organization is the organization every fake server is rooted at.
const Organization = "contoso"

// RecordedRequest is a request as the fake server saw it.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded body into v.
func (r RecordedRequest) JSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("request body is not JSON: %v\n%s", err, r.Body)
	}
}

// MockServer is a fake Azure DevOps organization. Routes use
// http.ServeMux patterns relative to the organization, e.g.
// "GET /Fabrikam/_apis/git/repositories". Unrouted requests get a 404
// with a JSON error body, as Azure DevOps answers.
type MockServer struct {
	*httptest.Server

	mux      *http.ServeMux
	mu       sync.Mutex
	requests []RecordedRequest
	count    atomic.Int32
}

// NewMockServer starts an empty fake organization, closed on cleanup.
func NewMockServer(t *testing.T) *MockServer {
	t.Helper()
	m := &MockServer{mux: http.NewServeMux()}
	m.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, ErrorBody("no route for "+r.Method+" "+r.URL.Path))
	})
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

func (m *MockServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	m.count.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, "/"+Organization),
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	m.mu.Unlock()

	r.Body = io.NopCloser(strings.NewReader(string(body)))
	m.mux.ServeHTTP(w, r)
}

// orgPattern roots "METHOD /path" at the organization.
func orgPattern(pattern string) string {
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		return "/" + Organization + pattern
	}
	return method + " /" + Organization + path
}

// Handle routes pattern to h.
func (m *MockServer) Handle(pattern string, h http.HandlerFunc) {
	m.mux.HandleFunc(orgPattern(pattern), h)
}

// HandleJSON routes pattern to a fixed JSON response.
func (m *MockServer) HandleJSON(pattern string, status int, v any) {
	m.Handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, v)
	})
}

// HandlePages serves pages in order, linking them with continuation
// tokens "page-1", "page-2", and so on.
func (m *MockServer) HandlePages(pattern string, pages ...any) {
	m.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		i := 0
		if token := r.URL.Query().Get("continuationToken"); token != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(token, "page-"))
			if err != nil || n < 1 || n >= len(pages) {
				http.Error(w, "bad continuation token", http.StatusBadRequest)
				return
			}
			i = n
		}
		if i+1 < len(pages) {
			w.Header().Set("x-ms-continuationtoken", "page-"+strconv.Itoa(i+1))
		}
		WriteJSON(w, http.StatusOK, pages[i])
	})
}

// Requests returns every request received so far.
func (m *MockServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns how many requests were received.
func (m *MockServer) RequestCount() int {
	return int(m.count.Load())
}

// LastRequest returns the most recent request, failing the test when
// there is none.
func (m *MockServer) LastRequest(t *testing.T) RecordedRequest {
	t.Helper()
	reqs := m.Requests()
	if len(reqs) == 0 {
		t.Fatal("no requests received")
	}
	return reqs[len(reqs)-1]
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the error envelope Azure DevOps returns.
func ErrorBody(message string) map[string]any {
	return map[string]any{
		"$id":     "1",
		"message": message,
		"typeKey": "TestException",
	}
}

// NewRateLimitServer answers 429 with Retry-After for the first
// throttled requests, then serves body.
func NewRateLimitServer(t *testing.T, retryAfter, throttled int, body any) *MockServer {
	t.Helper()
	m := NewMockServer(t)
	var calls atomic.Int32
	m.Handle("/", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= int32(throttled) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			WriteJSON(w, http.StatusTooManyRequests, ErrorBody("Request was blocked due to exceeding usage of resource"))
			return
		}
		WriteJSON(w, http.StatusOK, body)
	})
	return m
}

// NewErrorServer answers every request with status.
func NewErrorServer(t *testing.T, status int) *MockServer {
	t.Helper()
	m := NewMockServer(t)
	m.Handle("/", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, ErrorBody(http.StatusText(status)))
	})
	return m
}

// NewTransientErrorServer fails the first failures requests with status,
// then serves body.
func NewTransientErrorServer(t *testing.T, failures, status int, body any) *MockServer {
	t.Helper()
	m := NewMockServer(t)
	var calls atomic.Int32
	m.Handle("/", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= int32(failures) {
			WriteJSON(w, status, ErrorBody(http.StatusText(status)))
			return
		}
		WriteJSON(w, http.StatusOK, body)
	})
	return m
}
