// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package api

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig configures the retry behavior for API calls.
type RetryConfig struct {
	// MaxAttempts counts the first try, so 1 disables retries.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// Multiplier is applied to the delay after every attempt.
	Multiplier float64
	// MaxRateLimitWait is the longest server-requested wait honored
	// before giving up with a rate limit error.
	MaxRateLimitWait time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:      4,
		BaseDelay:        500 * time.Millisecond,
		MaxDelay:         30 * time.Second,
		Multiplier:       2.0,
		MaxRateLimitWait: 2 * time.Minute,
	}
}

// backoff returns the wait after the given failed attempt (1-based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	backoff := float64(c.BaseDelay) * math.Pow(multiplier, float64(attempt-1))

	if c.MaxDelay > 0 && backoff > float64(c.MaxDelay) {
		backoff = float64(c.MaxDelay)
	}

	// ±10% jitter
	backoff += backoff * 0.1 * (2*rand.Float64() - 1)
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// retryAfter extracts a server-requested wait from Retry-After (seconds
// or an HTTP date) or X-RateLimit-Reset (unix seconds).
func retryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	if v := h.Get(HeaderRetryAfter); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second)), true
		}
		if at, err := http.ParseTime(v); err == nil {
			return nonNegative(at.Sub(now)), true
		}
	}
	if v := h.Get(HeaderRateReset); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			return nonNegative(time.Unix(unix, 0).Sub(now)), true
		}
	}
	return 0, false
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
