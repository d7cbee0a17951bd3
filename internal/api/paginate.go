// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package api

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Paginate follows continuation tokens starting from req and yields each
// page in order. Pages are fetched lazily: stopping the iteration stops
// the requests. The first error is yielded once and ends the sequence.
func (c *Client) Paginate(ctx context.Context, req Request) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		next := req
		for {
			resp, err := c.Send(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			c.stats.page()
			if !yield(resp, nil) {
				return
			}

			token := resp.ContinuationToken
			if token == "" {
				return
			}
			if token == next.ContinuationToken {
				yield(nil, fmt.Errorf("%s %s: continuation token did not advance", req.Method, req.Path))
				return
			}
			next = next.WithContinuation(token)
		}
	}
}

// FetchPages sends every request through a pool of at most Workers
// concurrent calls and returns the responses in request order. The first
// failure cancels the outstanding requests and discards all results.
func (c *Client) FetchPages(ctx context.Context, reqs []Request) ([]*Response, error) {
	results := make([]*Response, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, req := range reqs {
		g.Go(func() error {
			resp, err := c.Send(gctx, req)
			if err != nil {
				return err
			}
			c.stats.page()
			results[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PaginateOffset walks a $top/$skip collection in windows of Workers
// pages fetched concurrently. count reports how many items a page holds;
// a page shorter than requested ends the walk, as does reaching limit
// items when limit > 0. Pages come back in offset order.
func (c *Client) PaginateOffset(ctx context.Context, req Request, pageSize, limit int, count func(*Response) (int, error)) ([]*Response, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be positive, got: %d", pageSize)
	}

	var pages []*Response
	for skip := 0; ; skip += c.workers * pageSize {
		window := make([]Request, 0, c.workers)
		tops := make([]int, 0, c.workers)
		for i := 0; i < c.workers; i++ {
			offset := skip + i*pageSize
			top := pageSize
			if limit > 0 {
				if offset >= limit {
					break
				}
				top = min(pageSize, limit-offset)
			}
			window = append(window, req.
				WithQuery(QueryTop, strconv.Itoa(top)).
				WithQuery(QuerySkip, strconv.Itoa(offset)))
			tops = append(tops, top)
		}
		if len(window) == 0 {
			return pages, nil
		}

		resps, err := c.FetchPages(ctx, window)
		if err != nil {
			return nil, err
		}
		for i, resp := range resps {
			n, err := count(resp)
			if err != nil {
				return nil, err
			}
			pages = append(pages, resp)
			if n < tops[i] {
				return pages, nil
			}
		}
		if limit > 0 && skip+len(window)*pageSize >= limit {
			return pages, nil
		}
	}
}

// CountList is a PaginateOffset counter for List envelopes.
func CountList(resp *Response) (int, error) {
	var list List[struct{}]
	if err := resp.Decode(&list); err != nil {
		return 0, err
	}
	return len(list.Value), nil
}
