// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"context"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/christianhelle/azdocli/internal/api"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

// Resource names a kind of Azure DevOps object.
type Resource string

const (
	ResourceWorkItem    Resource = "workitem"
	ResourceRepository  Resource = "repo"
	ResourcePipeline    Resource = "pipeline"
	ResourceRun         Resource = "run"
	ResourcePullRequest Resource = "pr"
	ResourceProject     Resource = "project"
)

// Verb names an operation on a resource.
type Verb string

const (
	VerbList    Verb = "list"
	VerbGet     Verb = "get"
	VerbCreate  Verb = "create"
	VerbUpdate  Verb = "update"
	VerbDelete  Verb = "delete"
	VerbTrigger Verb = "trigger"
)

// Params carries the validated inputs of one invocation.
type Params struct {
	Project string
	Args    []string
	Options map[string]string
}

// Arg returns the i-th positional argument or "".
func (p Params) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// Option returns a named option or "".
func (p Params) Option(name string) string {
	return strings.TrimSpace(p.Options[name])
}

// Has reports whether a named option was supplied.
func (p Params) Has(name string) bool {
	_, ok := p.Options[name]
	return ok
}

// Capability interfaces. Results are domain objects (or slices of them)
// ready for rendering.
type (
	Lister interface {
		List(ctx context.Context, p Params) (any, error)
	}
	Getter interface {
		Get(ctx context.Context, p Params) (any, error)
	}
	Creator interface {
		Create(ctx context.Context, p Params) (any, error)
	}
	Updater interface {
		Update(ctx context.Context, p Params) (any, error)
	}
	Deleter interface {
		Delete(ctx context.Context, p Params) (any, error)
	}
	Triggerer interface {
		Trigger(ctx context.Context, p Params) (any, error)
	}
)

// Sender is the part of api.Client adapters depend on.
type Sender interface {
	Send(ctx context.Context, req api.Request) (*api.Response, error)
	Paginate(ctx context.Context, req api.Request) iter.Seq2[*api.Response, error]
	FetchPages(ctx context.Context, reqs []api.Request) ([]*api.Response, error)
	PaginateOffset(ctx context.Context, req api.Request, pageSize, limit int, count func(*api.Response) (int, error)) ([]*api.Response, error)
}

// Backend is what every adapter is built from: one client, bound to one
// organization and credential, plus the per-invocation lookup cache.
type Backend struct {
	API          Sender
	Organization string
	PageSize     int
	Cache        *Cache
}

// NewBackend returns a Backend with a fresh cache.
func NewBackend(sender Sender, organization string, pageSize int) *Backend {
	if pageSize < 1 {
		pageSize = 100
	}
	return &Backend{API: sender, Organization: organization, PageSize: pageSize, Cache: NewCache()}
}

// send performs req and decodes the body into v, mapping failures for
// resource/id.
func (b *Backend) send(ctx context.Context, req api.Request, resource Resource, id string, v any) error {
	resp, err := b.API.Send(ctx, req)
	if err != nil {
		return b.mapError(resource, id, err)
	}
	if v == nil {
		return nil
	}
	return resp.Decode(v)
}

// projectPath builds "/{project}/_apis/{rest}" with the project escaped.
func projectPath(project, rest string) string {
	return "/" + segment(project) + "/_apis/" + rest
}

// orgPath builds "/_apis/{rest}".
func orgPath(rest string) string {
	return "/_apis/" + rest
}

// scopedPath is projectPath when project is set and orgPath otherwise.
func scopedPath(project, rest string) string {
	if project == "" {
		return orgPath(rest)
	}
	return projectPath(project, rest)
}

// segment escapes a single path segment.
func segment(s string) string {
	return url.PathEscape(s)
}

func requireProject(resource Resource, p Params) error {
	if p.Project == "" {
		return adoerrors.WithHint(adoerrors.MissingField(string(resource), "project"),
			"Pass --project, set ADO_PROJECT or run 'ado project default <name>'")
	}
	return nil
}

// requireArg returns positional argument i, named name, or a MissingField
// error.
func requireArg(resource Resource, p Params, i int, name string) (string, error) {
	v := strings.TrimSpace(p.Arg(i))
	if v == "" {
		return "", adoerrors.MissingField(string(resource), name)
	}
	return v, nil
}

// requireID parses positional argument i as a positive integer id.
func requireID(resource Resource, p Params, i int, name string) (int, error) {
	v, err := requireArg(resource, p, i, name)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, adoerrors.InvalidField(string(resource), name, "must be a positive integer, got "+strconv.Quote(v))
	}
	return id, nil
}

// requireOption returns a named option or a MissingField error.
func requireOption(resource Resource, p Params, name string) (string, error) {
	v := p.Option(name)
	if v == "" {
		return "", adoerrors.MissingField(string(resource), name)
	}
	return v, nil
}

// intOption parses an optional non-negative integer option.
func intOption(resource Resource, p Params, name string, def int) (int, error) {
	v := p.Option(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, adoerrors.InvalidField(string(resource), name, "must be a non-negative integer, got "+strconv.Quote(v))
	}
	return n, nil
}

// boolOption parses an optional boolean option. A present option with an
// empty value counts as true.
func boolOption(resource Resource, p Params, name string) (bool, error) {
	if !p.Has(name) {
		return false, nil
	}
	v := p.Option(name)
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, adoerrors.InvalidField(string(resource), name, "must be true or false, got "+strconv.Quote(v))
	}
	return b, nil
}

// splitList splits a comma or semicolon separated option into trimmed,
// non-empty values.
func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' })
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// oneOf validates an enumerated option value.
func oneOf(resource Resource, name, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return nil
		}
	}
	return adoerrors.InvalidField(string(resource), name,
		"must be one of "+strings.Join(allowed, ", ")+", got "+strconv.Quote(value))
}
