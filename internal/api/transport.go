// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxResponseSize caps how much of a response body is read.
const MaxResponseSize = 10 * 1024 * 1024

// newTransport returns a pooled transport sized for Workers concurrent
// requests against a single host.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// ErrResponseTooLarge is returned when a body is longer than
// MaxResponseSize.
var ErrResponseTooLarge = errors.New("response size exceeded limit")

// limitedReader wraps a ReadCloser with a size limit to prevent excessive memory usage.
// A body of exactly limit bytes is allowed.
type limitedReader struct {
	io.ReadCloser
	limit int64
	read  int64
}

// Read implements io.Reader with size limit enforcement.
func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.read >= lr.limit {
		var probe [1]byte
		n, err := lr.ReadCloser.Read(probe[:])
		if n > 0 {
			return 0, fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, lr.limit)
		}
		return 0, err
	}

	remaining := lr.limit - lr.read
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err = lr.ReadCloser.Read(p)
	lr.read += int64(n)
	return n, err
}

// authTransport stamps every outgoing request with the credential and
// client identification headers.
type authTransport struct {
	authorization string
	userAgent     string
	sessionID     string
	base          http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	req.Header.Set("Authorization", t.authorization)
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", ContentJSON)
	if t.sessionID != "" {
		req.Header.Set(HeaderSession, t.sessionID)
	}
	// Without this Azure DevOps answers an unauthenticated call with a
	// redirect to the sign-in page instead of a 401.
	req.Header.Set("X-TFS-FedAuthRedirect", "Suppress")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Body != nil {
		resp.Body = &limitedReader{ReadCloser: resp.Body, limit: MaxResponseSize}
	}
	return resp, nil
}
