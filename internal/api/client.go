// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/christianhelle/azdocli/internal/credential"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
	"github.com/christianhelle/azdocli/pkg/version"
)

// Options configures a Client. Zero values fall back to the defaults
// listed on each field.
type Options struct {
	BaseURL      string        // https://dev.azure.com
	Organization string        // required
	APIVersion   string        // 7.1
	Timeout      time.Duration // per attempt, 30s
	Workers      int           // concurrent page fetches, 4 (max 4)
	Retry        RetryConfig   // DefaultRetryConfig()
	Logger       *log.Logger   // discarded when nil

	// Transport replaces the pooled default, mainly for tests.
	Transport http.RoundTripper
}

// MaxWorkers bounds the concurrent fetch pool.
const MaxWorkers = 4

// Client performs authenticated calls against one Azure DevOps
// organization.
type Client struct {
	base       string
	apiVersion string
	timeout    time.Duration
	workers    int
	retry      RetryConfig
	http       *http.Client
	logger     *log.Logger
	stats      *Stats

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a Client bound to cred. It fails closed: a missing or
// expired credential is an AuthError and no request is ever sent.
func New(opts Options, cred *credential.Credential) (*Client, error) {
	if opts.Organization == "" {
		return nil, adoerrors.Usagef("no organization configured (use --org or ADO_ORGANIZATION)")
	}
	if cred == nil || cred.Token == "" {
		return nil, adoerrors.NewAuthError(adoerrors.AuthNotFound, opts.Organization, nil)
	}
	if cred.Expired(time.Now()) {
		return nil, adoerrors.NewAuthError(adoerrors.AuthExpired, opts.Organization, nil)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = "https://dev.azure.com"
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "7.1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Workers < 1 || opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	transport := opts.Transport
	if transport == nil {
		transport = newTransport()
	}

	return &Client{
		base:       base.String() + "/" + url.PathEscape(opts.Organization),
		apiVersion: opts.APIVersion,
		timeout:    opts.Timeout,
		workers:    opts.Workers,
		retry:      opts.Retry,
		http: &http.Client{
			Transport: &authTransport{
				authorization: cred.AuthorizationHeader(),
				userAgent:     version.UserAgent(),
				sessionID:     uuid.NewString(),
				base:          transport,
			},
			// Redirects usually mean a sign-in page; surface them instead.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: opts.Logger,
		stats:  newStats(),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// Workers returns the size of the concurrent fetch pool.
func (c *Client) Workers() int { return c.workers }

// Stats returns the client's traffic counters.
func (c *Client) Stats() *Stats { return c.stats }

// Send performs req, retrying per the client's RetryConfig. Any non-2xx
// status, and 203 (Azure DevOps' answer to an invalid PAT), is returned
// as an *errors.APIError. Cancelling ctx aborts the in-flight attempt and
// any pending backoff.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := req.encodeBody()
	if err != nil {
		return nil, err
	}
	target := c.resolve(req)

	for attempt := 1; ; attempt++ {
		resp, err := c.do(ctx, req.Method, target, body, contentType)
		c.stats.request()

		var (
			lastErr error
			wait    time.Duration
		)
		switch {
		case errors.Is(err, ErrResponseTooLarge):
			return nil, c.apiError(adoerrors.APIClient, req, resp.Status, nil, err)

		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ctx.Err())
			}
			if isTimeout(ctx, err) {
				return nil, c.apiError(adoerrors.APITimeout, req, 0, nil, err)
			}
			lastErr = c.apiError(adoerrors.APINetwork, req, 0, nil, err)
			if !req.Idempotent || !isNetworkError(err) {
				return nil, lastErr
			}
			wait = c.retry.backoff(attempt)

		case resp.Status == http.StatusTooManyRequests:
			lastErr = c.apiError(adoerrors.APIRateLimited, req, resp.Status, resp.Body, nil)
			if d, ok := retryAfter(resp.Header, c.now()); ok {
				if c.retry.MaxRateLimitWait > 0 && d > c.retry.MaxRateLimitWait {
					return nil, lastErr
				}
				wait = d
			} else {
				wait = c.retry.backoff(attempt)
			}

		case resp.Status >= 500:
			lastErr = c.apiError(adoerrors.APIServer, req, resp.Status, resp.Body, nil)
			if !req.Idempotent {
				return nil, lastErr
			}
			wait = c.retry.backoff(attempt)
			if d, ok := retryAfter(resp.Header, c.now()); ok && d <= c.retry.MaxDelay {
				wait = d
			}

		case resp.Status < 200 || resp.Status >= 300 || resp.Status == http.StatusNonAuthoritativeInfo:
			return nil, c.apiError(adoerrors.APIClient, req, resp.Status, resp.Body, nil)

		default:
			return resp, nil
		}

		if attempt >= c.retry.MaxAttempts {
			return nil, lastErr
		}

		c.logger.Warn("retrying request", "method", req.Method, "path", req.Path,
			"attempt", attempt, "max_attempts", c.retry.MaxAttempts, "wait", wait, "err", lastErr)
		c.stats.retry()

		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
		}
	}
}

// do runs one attempt under the per-attempt timeout and reads the whole
// body before returning.
func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if errors.Is(err, ErrResponseTooLarge) {
		return &Response{Status: resp.StatusCode, Header: resp.Header}, err
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("api call", "method", method, "url", target, "status", resp.StatusCode,
		"bytes", len(data), "duration", time.Since(start))

	return &Response{
		Status:            resp.StatusCode,
		Header:            resp.Header,
		Body:              data,
		ContinuationToken: resp.Header.Get(HeaderContinuation),
	}, nil
}

// resolve builds the absolute URL for req, adding api-version and the
// continuation token.
func (c *Client) resolve(req Request) string {
	q := make(url.Values, len(req.Query)+2)
	for k, v := range req.Query {
		q[k] = v
	}
	if q.Get(QueryAPIVersion) == "" {
		q.Set(QueryAPIVersion, c.apiVersion)
	}
	if req.ContinuationToken != "" {
		q.Set(QueryContinuation, req.ContinuationToken)
	}

	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path + "?" + q.Encode()
}

func (c *Client) apiError(kind adoerrors.APIKind, req Request, status int, body []byte, cause error) error {
	return &adoerrors.APIError{
		Kind:   kind,
		Status: status,
		Method: req.Method,
		Path:   req.Path,
		Body:   string(body),
		Err:    cause,
	}
}
