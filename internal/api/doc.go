// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package api is the Azure DevOps REST client used by every resource
// adapter.
//
// A Client is bound to one organization and one resolved credential for
// its whole lifetime. Send performs a single logical request, retrying
// rate limits and (for idempotent requests) transient server and network
// failures with exponential backoff and jitter. Retry-After and
// X-RateLimit-Reset headers take precedence over the computed backoff.
//
// Two pagination styles are supported:
//   - Paginate follows x-ms-continuationtoken headers and yields pages
//     lazily, in order.
//   - PaginateOffset walks $top/$skip windows, fetching up to Workers
//     pages concurrently and reassembling them in request order.
//
// FetchPages runs an arbitrary batch of independent requests through the
// same bounded worker pool. The first failure cancels the rest and no
// partial result is returned.
package api
