// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianhelle/azdocli/internal/credential"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:      attempts,
		BaseDelay:        time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		Multiplier:       2,
		MaxRateLimitWait: time.Second,
	}
}

func newTestClient(t *testing.T, serverURL string, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:      serverURL,
		Organization: "contoso",
		Timeout:      2 * time.Second,
		Workers:      4,
		Retry:        fastRetry(4),
	}
	for _, m := range mutate {
		m(&opts)
	}
	client, err := New(opts, credential.NewPAT("contoso", "secret"))
	require.NoError(t, err)
	return client
}

func TestNewFailsClosed(t *testing.T) {
	_, err := New(Options{Organization: "contoso"}, nil)
	authErr, ok := adoerrors.AsAuthError(err)
	require.True(t, ok, "expected AuthError, got %v", err)
	assert.Equal(t, adoerrors.AuthNotFound, authErr.Kind)

	past := time.Now().Add(-time.Hour)
	expired := &credential.Credential{Organization: "contoso", Token: "t", Kind: credential.KindOAuth, ExpiresAt: &past}
	_, err = New(Options{Organization: "contoso"}, expired)
	authErr, ok = adoerrors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, adoerrors.AuthExpired, authErr.Kind)

	_, err = New(Options{}, credential.NewPAT("", "t"))
	assert.True(t, adoerrors.IsUsage(err))
}

func TestSendHeadersAndURL(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		fmt.Fprint(w, `{"id":42}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Send(context.Background(), Get("/My Project/_apis/wit/workitems/42").WithQuery("$expand", "all"))
	require.NoError(t, err)

	var body struct{ ID int }
	require.NoError(t, resp.Decode(&body))
	assert.Equal(t, 42, body.ID)

	assert.Equal(t, "/contoso/My Project/_apis/wit/workitems/42", got.URL.Path)
	assert.Equal(t, "7.1", got.URL.Query().Get("api-version"))
	assert.Equal(t, "all", got.URL.Query().Get("$expand"))
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(":secret")), got.Header.Get("Authorization"))
	assert.True(t, strings.HasPrefix(got.Header.Get("User-Agent"), "ado/"))
	assert.NotEmpty(t, got.Header.Get(HeaderSession))
}

func TestSendBody(t *testing.T) {
	var contentType string
	var payload []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ops := []map[string]any{{"op": "add", "path": "/fields/System.Title", "value": "Fix it"}}
	_, err := client.Send(context.Background(), NewRequest(http.MethodPost, "/p/_apis/wit/workitems/$Bug").
		WithBody(ops).WithContentType(ContentJSONPatch))
	require.NoError(t, err)

	assert.Equal(t, ContentJSONPatch, contentType)
	require.Len(t, payload, 1)
	assert.Equal(t, "/fields/System.Title", payload[0]["path"])
}

// rateLimitedServer answers 429 for the first failures calls.
func rateLimitedServer(failures int, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if int(calls.Add(1)) <= failures {
			w.Header().Set(HeaderRetryAfter, "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"count":0,"value":[]}`)
	}))
}

func TestSendRateLimitRetries(t *testing.T) {
	const maxAttempts = 4
	tests := []struct {
		name     string
		failures int
		wantErr  bool
	}{
		{"succeeds first try", 0, false},
		{"succeeds on last attempt", maxAttempts - 1, false},
		{"exhausts attempts", maxAttempts, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := rateLimitedServer(tt.failures, &calls)
			defer server.Close()

			client := newTestClient(t, server.URL, func(o *Options) { o.Retry = fastRetry(maxAttempts) })
			// POST: rate limits are retried even for non-idempotent calls.
			_, err := client.Send(context.Background(), NewRequest(http.MethodPost, "/p/_apis/wit/wiql"))

			if tt.wantErr {
				apiErr, ok := adoerrors.AsAPIError(err)
				require.True(t, ok, "expected APIError, got %v", err)
				assert.Equal(t, adoerrors.APIRateLimited, apiErr.Kind)
				assert.Equal(t, int32(maxAttempts), calls.Load())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int32(tt.failures+1), calls.Load())
			assert.Equal(t, int64(tt.failures), client.Stats().Snapshot().Retries)
		})
	}
}

func TestSendRateLimitWaitTooLong(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(HeaderRetryAfter, "3600")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Send(context.Background(), Get("/_apis/projects"))

	apiErr, ok := adoerrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, adoerrors.APIRateLimited, apiErr.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := rateLimitedServer(1, &calls)
	defer server.Close()

	client := newTestClient(t, server.URL)
	var waits []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := client.Send(context.Background(), Get("/_apis/projects"))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, waits)
}

func TestSendServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		wantCalls int32
	}{
		{"idempotent GET is retried", http.MethodGet, 3},
		{"POST is not retried", http.MethodPost, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"message":"down"}`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, func(o *Options) { o.Retry = fastRetry(3) })
			_, err := client.Send(context.Background(), NewRequest(tt.method, "/_apis/projects"))

			apiErr, ok := adoerrors.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, adoerrors.APIServer, apiErr.Kind)
			assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestSendClientErrorsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusNonAuthoritativeInfo} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
				fmt.Fprint(w, `<html>sign in</html>`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Send(context.Background(), Get("/_apis/projects"))

			apiErr, ok := adoerrors.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, adoerrors.APIClient, apiErr.Kind)
			assert.Equal(t, status, apiErr.Status)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	_, err := client.Send(context.Background(), Get("/_apis/projects"))

	apiErr, ok := adoerrors.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, adoerrors.APITimeout, apiErr.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendNetworkErrorRetriedWhenIdempotent(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := newTestClient(t, url, func(o *Options) { o.Retry = fastRetry(2) })
	_, err := client.Send(context.Background(), Get("/_apis/projects"))

	apiErr, ok := adoerrors.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, adoerrors.APINetwork, apiErr.Kind)
	assert.Equal(t, int64(2), client.Stats().Snapshot().Requests)
}

func TestSendCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Send(ctx, Get("/_apis/projects"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	_, isAPI := adoerrors.AsAPIError(err)
	assert.False(t, isAPI)
}

func TestSendResponseSizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{name: "exactly the limit", size: MaxResponseSize},
		{name: "one byte over", size: MaxResponseSize + 1, wantErr: true},
		{name: "well over", size: MaxResponseSize + 1024, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(w, io.LimitReader(zeroReader{}, tt.size))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, func(o *Options) { o.Retry = fastRetry(3) })
			resp, err := client.Send(context.Background(), Get("/_apis/projects"))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, resp.Body, int(tt.size))
				return
			}

			require.ErrorIs(t, err, ErrResponseTooLarge)
			apiErr, ok := adoerrors.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, adoerrors.APIClient, apiErr.Kind)
			assert.Equal(t, http.StatusOK, apiErr.Status)
			assert.Equal(t, int64(1), client.Stats().Snapshot().Requests, "oversized bodies are not retried")
		})
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = '0'
	}
	return len(p), nil
}

func TestPaginateContinuation(t *testing.T) {
	var tokens []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get(QueryContinuation)
		mu.Lock()
		tokens = append(tokens, token)
		mu.Unlock()
		switch token {
		case "":
			w.Header().Set(HeaderContinuation, "page2")
		case "page2":
			w.Header().Set(HeaderContinuation, "page3")
		}
		fmt.Fprintf(w, `{"count":1,"value":[{"name":%q}]}`, token)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	var names []string
	for resp, err := range client.Paginate(context.Background(), Get("/_apis/projects")) {
		require.NoError(t, err)
		var list List[struct{ Name string }]
		require.NoError(t, resp.Decode(&list))
		names = append(names, list.Value[0].Name)
	}

	assert.Equal(t, []string{"", "page2", "page3"}, names)
	assert.Equal(t, []string{"", "page2", "page3"}, tokens)
}

func TestPaginateStopsEarly(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(HeaderContinuation, "more"+strconv.Itoa(int(calls.Load())))
		fmt.Fprint(w, `{"count":0,"value":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	for _, err := range client.Paginate(context.Background(), Get("/_apis/projects")) {
		require.NoError(t, err)
		break
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestPaginateStuckToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderContinuation, "same")
		fmt.Fprint(w, `{"count":0,"value":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	var lastErr error
	pages := 0
	for _, err := range client.Paginate(context.Background(), Get("/_apis/projects")) {
		if err != nil {
			lastErr = err
			break
		}
		pages++
	}
	assert.Equal(t, 2, pages)
	require.Error(t, lastErr)
	assert.Contains(t, lastErr.Error(), "did not advance")
}

func TestFetchPagesOrderAndConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		id, _ := strconv.Atoi(r.URL.Query().Get("id"))
		// Later requests finish first.
		time.Sleep(time.Duration(20-id) * time.Millisecond)
		fmt.Fprintf(w, `{"id":%d}`, id)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *Options) { o.Workers = 3 })
	var reqs []Request
	for i := 0; i < 10; i++ {
		reqs = append(reqs, Get("/_apis/wit/workitems").WithQuery("id", strconv.Itoa(i)))
	}

	resps, err := client.FetchPages(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, resps, 10)
	for i, resp := range resps {
		var body struct{ ID int }
		require.NoError(t, resp.Decode(&body))
		assert.Equal(t, i, body.ID)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestFetchPagesFirstErrorDiscardsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	var reqs []Request
	for i := 0; i < 6; i++ {
		reqs = append(reqs, Get("/_apis/wit/workitems").WithQuery("id", strconv.Itoa(i)))
	}

	resps, err := client.FetchPages(context.Background(), reqs)
	assert.Nil(t, resps)
	apiErr, ok := adoerrors.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

// offsetServer serves total items through $top/$skip.
func offsetServer(total int, skips *[]int, mu *sync.Mutex) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		top, _ := strconv.Atoi(r.URL.Query().Get(QueryTop))
		skip, _ := strconv.Atoi(r.URL.Query().Get(QuerySkip))
		mu.Lock()
		*skips = append(*skips, skip)
		mu.Unlock()

		var items []map[string]int
		for i := skip; i < skip+top && i < total; i++ {
			items = append(items, map[string]int{"pullRequestId": i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"count": len(items), "value": items})
	}))
}

func TestPaginateOffset(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		limit     int
		wantItems int
	}{
		{"short last page", 23, 0, 23},
		{"exact multiple of page size", 20, 0, 20},
		{"limit inside a page", 100, 7, 7},
		{"limit beyond total", 12, 50, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var skips []int
			var mu sync.Mutex
			server := offsetServer(tt.total, &skips, &mu)
			defer server.Close()

			client := newTestClient(t, server.URL, func(o *Options) { o.Workers = 2 })
			pages, err := client.PaginateOffset(context.Background(), Get("/p/_apis/git/pullrequests"), 5, tt.limit, CountList)
			require.NoError(t, err)

			var ids []int
			for _, page := range pages {
				var list List[struct {
					PullRequestID int `json:"pullRequestId"`
				}]
				require.NoError(t, page.Decode(&list))
				for _, item := range list.Value {
					ids = append(ids, item.PullRequestID)
				}
			}
			require.Len(t, ids, tt.wantItems)
			for i, id := range ids {
				assert.Equal(t, i, id, "items must arrive in offset order")
			}
		})
	}
}
