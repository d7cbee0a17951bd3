// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"context"
	"strings"
	"sync"
)

// ResourceRef identifies a looked-up object within one invocation.
type ResourceRef struct {
	Project string
	Type    Resource
	ID      string
}

func (r ResourceRef) normalized() ResourceRef {
	return ResourceRef{
		Project: strings.ToLower(r.Project),
		Type:    r.Type,
		ID:      strings.ToLower(r.ID),
	}
}

// Cache memoizes lookups such as repository name to id. It lives for a
// single invocation and is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[ResourceRef]any
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[ResourceRef]any)}
}

// Get returns the value stored for ref.
func (c *Cache) Get(ref ResourceRef) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[ref.normalized()]
	return v, ok
}

// Put stores v under ref.
func (c *Cache) Put(ref ResourceRef, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ref.normalized()] = v
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// lookup returns the cached T for ref, calling fetch on a miss. Failed
// fetches are not cached.
func lookup[T any](ctx context.Context, c *Cache, ref ResourceRef, fetch func(context.Context) (T, error)) (T, error) {
	if c != nil {
		if v, ok := c.Get(ref); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
	}
	t, err := fetch(ctx)
	if err != nil {
		return t, err
	}
	if c != nil {
		c.Put(ref, t)
	}
	return t, nil
}
