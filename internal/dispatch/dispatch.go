// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package dispatch runs one CLI invocation through its stages:
// validate, resolve the credential, execute the adapter, render.
//
// Every stage that can fail without the network runs before the first
// request, so usage and validation errors never cost an API call.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/christianhelle/azdocli/internal/api"
	"github.com/christianhelle/azdocli/internal/credential"
	"github.com/christianhelle/azdocli/internal/devops"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
	"github.com/christianhelle/azdocli/internal/render"
)

// Stage is a step of a dispatch.
type Stage int

const (
	StageValidate Stage = iota
	StageResolveCredential
	StageExecute
	StageRender
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageValidate:
		return "validate"
	case StageResolveCredential:
		return "resolve-credential"
	case StageExecute:
		return "execute"
	case StageRender:
		return "render"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Invocation is a parsed command line.
type Invocation struct {
	Resource string
	Verb     string
	Args     []string
	Options  map[string]string
	Columns  []string
}

// Resolver supplies the credential for an organization.
type Resolver interface {
	Resolve(ctx context.Context, organization string) (*credential.Credential, error)
}

// Options configures a Dispatcher.
type Options struct {
	Organization string
	Project      string

	Format string
	Color  bool
	// Columns are per-resource default columns from the config file.
	Columns map[string][]string

	API      api.Options
	PageSize int

	Credentials Resolver
	Out         io.Writer
	Logger      *log.Logger
}

// Dispatcher executes invocations.
type Dispatcher struct {
	opts   Options
	logger *log.Logger
}

// New returns a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	opts.API.Organization = opts.Organization
	if opts.API.Logger == nil {
		opts.API.Logger = opts.Logger
	}
	return &Dispatcher{opts: opts, logger: opts.Logger}
}

// plan is a validated invocation.
type plan struct {
	desc    devops.Descriptor
	verb    devops.Verb
	params  devops.Params
	columns []string
	// selected is true when the caller named the columns.
	selected bool
}

// Run executes inv and renders its result. Nothing is written when any
// stage fails.
func (d *Dispatcher) Run(ctx context.Context, inv Invocation) error {
	stage := StageValidate
	d.logger.Debug("dispatch", "stage", stage, "resource", inv.Resource, "verb", inv.Verb)
	p, err := d.validate(inv)
	if err != nil {
		return err
	}

	stage = StageResolveCredential
	d.logger.Debug("dispatch", "stage", stage, "organization", d.opts.Organization)
	if d.opts.Credentials == nil {
		return adoerrors.NewAuthError(adoerrors.AuthNotFound, d.opts.Organization, nil)
	}
	cred, err := d.opts.Credentials.Resolve(ctx, d.opts.Organization)
	if err != nil {
		return err
	}

	stage = StageExecute
	d.logger.Debug("dispatch", "stage", stage, "credential", cred)
	result, err := d.execute(ctx, p, cred)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stage = StageRender
	d.logger.Debug("dispatch", "stage", stage, "format", d.opts.Format, "columns", p.columns)
	if err := render.Render(d.opts.Out, result, render.Options{
		Format:  d.opts.Format,
		Columns: p.columns,
		Color:   d.opts.Color,
		Select:  p.selected,
	}); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}

	d.logger.Debug("dispatch", "stage", StageDone)
	return nil
}

// Validate checks inv against the resource descriptors without any I/O.
func (d *Dispatcher) Validate(inv Invocation) error {
	_, err := d.validate(inv)
	return err
}

func (d *Dispatcher) validate(inv Invocation) (*plan, error) {
	desc, ok := devops.Lookup(inv.Resource)
	if !ok {
		return nil, adoerrors.Usagef("unknown resource %q", inv.Resource)
	}

	verb := devops.Verb(strings.ToLower(strings.TrimSpace(inv.Verb)))
	spec, ok := desc.Verbs[verb]
	if !ok {
		names := make([]string, 0, len(desc.Verbs))
		for _, v := range desc.SortedVerbs() {
			names = append(names, string(v))
		}
		return nil, adoerrors.WithHint(
			adoerrors.Usagef("%s does not support %q", desc.Resource, inv.Verb),
			"Supported verbs: "+strings.Join(names, ", "))
	}

	params := devops.Params{
		Project: strings.TrimSpace(d.opts.Project),
		Args:    inv.Args,
		Options: inv.Options,
	}
	if err := spec.Validate(desc.Resource, params); err != nil {
		return nil, err
	}

	columns, selected, err := d.columns(desc, verb, spec, inv.Columns)
	if err != nil {
		return nil, err
	}
	return &plan{desc: desc, verb: verb, params: params, columns: columns, selected: selected}, nil
}

// columns picks the output columns: explicit ones first, then the config
// file's choice for the resource, then the descriptor defaults. selected
// reports whether the caller named them.
func (d *Dispatcher) columns(desc devops.Descriptor, verb devops.Verb, spec devops.VerbSpec, requested []string) (columns []string, selected bool, err error) {
	all, defaults := desc.ColumnsFor(verb)

	chosen := requested
	if len(chosen) == 0 && len(spec.Columns) == 0 {
		chosen = d.opts.Columns[string(desc.Resource)]
	}
	if len(chosen) == 0 {
		return defaults, false, nil
	}

	out := make([]string, 0, len(chosen))
	for _, c := range chosen {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if !slices.Contains(all, c) {
			return nil, false, adoerrors.WithHint(
				adoerrors.Usagef("unknown column %q for %s", c, desc.Resource),
				"Available columns: "+strings.Join(all, ", "))
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return defaults, false, nil
	}
	return out, len(requested) > 0, nil
}

func (d *Dispatcher) execute(ctx context.Context, p *plan, cred *credential.Credential) (any, error) {
	client, err := api.New(d.opts.API, cred)
	if err != nil {
		return nil, err
	}
	defer func() {
		s := client.Stats().Snapshot()
		d.logger.Debug("api usage", "requests", s.Requests, "retries", s.Retries, "pages", s.Pages)
	}()

	backend := devops.NewBackend(client, d.opts.Organization, d.opts.PageSize)
	call, err := capability(p.desc.New(backend), p.desc.Resource, p.verb)
	if err != nil {
		return nil, err
	}
	return call(ctx, p.params)
}

type operation func(context.Context, devops.Params) (any, error)

// capability asserts the interface backing verb once.
func capability(adapter any, resource devops.Resource, verb devops.Verb) (operation, error) {
	var (
		op operation
		ok bool
	)
	switch verb {
	case devops.VerbList:
		var c devops.Lister
		if c, ok = adapter.(devops.Lister); ok {
			op = c.List
		}
	case devops.VerbGet:
		var c devops.Getter
		if c, ok = adapter.(devops.Getter); ok {
			op = c.Get
		}
	case devops.VerbCreate:
		var c devops.Creator
		if c, ok = adapter.(devops.Creator); ok {
			op = c.Create
		}
	case devops.VerbUpdate:
		var c devops.Updater
		if c, ok = adapter.(devops.Updater); ok {
			op = c.Update
		}
	case devops.VerbDelete:
		var c devops.Deleter
		if c, ok = adapter.(devops.Deleter); ok {
			op = c.Delete
		}
	case devops.VerbTrigger:
		var c devops.Triggerer
		if c, ok = adapter.(devops.Triggerer); ok {
			op = c.Trigger
		}
	}
	if !ok {
		return nil, adoerrors.Usagef("%s does not support %q", resource, verb)
	}
	return op, nil
}
