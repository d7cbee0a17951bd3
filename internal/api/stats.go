// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package api

import (
	"sync/atomic"
	"time"
)

// Stats counts the traffic a Client produced. It is safe for concurrent
// use by the worker pool.
type Stats struct {
	started  time.Time
	requests atomic.Int64
	retries  atomic.Int64
	pages    atomic.Int64
}

func newStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) request() { s.requests.Add(1) }
func (s *Stats) retry()   { s.retries.Add(1) }
func (s *Stats) page()    { s.pages.Add(1) }

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests int64
	Retries  int64
	Pages    int64
	Elapsed  time.Duration
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests: s.requests.Load(),
		Retries:  s.retries.Load(),
		Pages:    s.pages.Load(),
		Elapsed:  time.Since(s.started),
	}
}
