// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"slices"
	"strings"

	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

// OptionSpec describes one --option of a verb.
type OptionSpec struct {
	Name    string
	Usage   string
	Default string
	// Values, when set, is the closed set of accepted values.
	Values []string
	Bool   bool
}

// ArgSpec describes one positional argument.
type ArgSpec struct {
	Name     string
	Optional bool
}

// VerbSpec describes what one verb of a resource accepts.
type VerbSpec struct {
	Summary  string
	Args     []ArgSpec
	Required []string
	Options  []OptionSpec
	// NeedsProject is set when the verb cannot run without a project.
	NeedsProject bool
	// Columns replaces the resource's columns for verbs with a different
	// result shape, such as delete.
	Columns []string
}

// Descriptor is the static definition of a resource.
type Descriptor struct {
	Resource       Resource
	Summary        string
	Aliases        []string
	Columns        []string
	DefaultColumns []string
	Verbs          map[Verb]VerbSpec
	New            func(*Backend) any
}

// verbOrder is the display order of verbs.
var verbOrder = []Verb{VerbList, VerbGet, VerbCreate, VerbUpdate, VerbDelete, VerbTrigger}

// SortedVerbs returns the verbs of d in display order.
func (d Descriptor) SortedVerbs() []Verb {
	var verbs []Verb
	for _, v := range verbOrder {
		if _, ok := d.Verbs[v]; ok {
			verbs = append(verbs, v)
		}
	}
	return verbs
}

// ColumnsFor returns the selectable and default columns of verb.
func (d Descriptor) ColumnsFor(verb Verb) (all, defaults []string) {
	if spec, ok := d.Verbs[verb]; ok && len(spec.Columns) > 0 {
		return spec.Columns, Deletion{}.DefaultColumns()
	}
	return d.Columns, d.DefaultColumns
}

// Option returns the spec of a named option.
func (s VerbSpec) Option(name string) (OptionSpec, bool) {
	for _, o := range s.Options {
		if o.Name == name {
			return o, true
		}
	}
	return OptionSpec{}, false
}

// Validate checks p against the spec without touching the network.
func (s VerbSpec) Validate(resource Resource, p Params) error {
	for name := range p.Options {
		if _, ok := s.Option(name); !ok {
			return adoerrors.Usagef("unknown option --%s for %s", name, resource)
		}
	}

	maxArgs := len(s.Args)
	if len(p.Args) > maxArgs {
		return adoerrors.Usagef("%s accepts at most %d argument(s), got %d", resource, maxArgs, len(p.Args))
	}
	for i, a := range s.Args {
		if a.Optional {
			continue
		}
		if _, err := requireArg(resource, p, i, a.Name); err != nil {
			return err
		}
	}

	for _, name := range s.Required {
		if _, err := requireOption(resource, p, name); err != nil {
			return err
		}
	}
	for _, o := range s.Options {
		v := p.Option(o.Name)
		if v == "" || len(o.Values) == 0 {
			continue
		}
		if err := oneOf(resource, o.Name, v, o.Values...); err != nil {
			return err
		}
	}

	if s.NeedsProject {
		return requireProject(resource, p)
	}
	return nil
}

var limitOption = OptionSpec{Name: "limit", Usage: "maximum number of results (0 for all)"}

var workItemFieldOptions = []OptionSpec{
	{Name: "title", Usage: "title"},
	{Name: "state", Usage: "state, e.g. Active"},
	{Name: "description", Usage: "description (HTML)"},
	{Name: "assigned-to", Usage: "assignee display name or email"},
	{Name: "area", Usage: "area path"},
	{Name: "iteration", Usage: "iteration path"},
	{Name: "tags", Usage: "comma separated tags"},
}

var descriptors = []Descriptor{
	{
		Resource: ResourceWorkItem,
		Summary:  "Manage work items",
		Aliases:  []string{"workitems", "wi", "boards"},
		Columns: []string{"id", "rev", "type", "title", "state", "reason", "assigned-to", "area",
			"iteration", "tags", "project", "created", "changed", "url"},
		DefaultColumns: []string{"id", "type", "state", "title", "assigned-to"},
		Verbs: map[Verb]VerbSpec{
			VerbList: {
				Summary:      "List work items in the project, most recently changed first",
				NeedsProject: true,
				Options: []OptionSpec{
					{Name: "state", Usage: "only items in this state"},
					{Name: "type", Usage: "only items of this type"},
					{Name: "assigned-to", Usage: "only items assigned to this user, or @me"},
					{Name: "tag", Usage: "only items carrying this tag"},
					{Name: "limit", Usage: limitOption.Usage, Default: "200"},
				},
			},
			VerbGet: {
				Summary: "Show a work item",
				Args:    []ArgSpec{{Name: "id"}},
			},
			VerbCreate: {
				Summary:      "Create a work item",
				NeedsProject: true,
				Required:     []string{"type", "title"},
				Options:      append([]OptionSpec{{Name: "type", Usage: "work item type, e.g. Bug or Task"}}, workItemFieldOptions...),
			},
			VerbUpdate: {
				Summary: "Update fields of a work item",
				Args:    []ArgSpec{{Name: "id"}},
				Options: workItemFieldOptions,
			},
			VerbDelete: {
				Summary: "Delete a work item",
				Args:    []ArgSpec{{Name: "id"}},
				Options: []OptionSpec{{Name: "destroy", Usage: "delete permanently instead of to the recycle bin", Bool: true}},
				Columns: []string{"resource", "id", "status"},
			},
		},
		New: func(b *Backend) any { return NewWorkItems(b) },
	},
	{
		Resource:       ResourceRepository,
		Summary:        "Manage Git repositories",
		Aliases:        []string{"repos", "repository"},
		Columns:        []string{"id", "name", "project", "default-branch", "size", "disabled", "remote-url", "ssh-url", "url"},
		DefaultColumns: []string{"name", "default-branch", "remote-url"},
		Verbs: map[Verb]VerbSpec{
			VerbList:   {Summary: "List repositories in the project", NeedsProject: true},
			VerbGet:    {Summary: "Show a repository", NeedsProject: true, Args: []ArgSpec{{Name: "name"}}},
			VerbCreate: {Summary: "Create a repository", NeedsProject: true, Args: []ArgSpec{{Name: "name"}}},
			VerbDelete: {
				Summary:      "Delete a repository",
				NeedsProject: true,
				Args:         []ArgSpec{{Name: "name"}},
				Columns:      []string{"resource", "id", "name", "status"},
			},
		},
		New: func(b *Backend) any { return NewRepositories(b) },
	},
	{
		Resource:       ResourcePipeline,
		Summary:        "Inspect pipelines",
		Aliases:        []string{"pipelines"},
		Columns:        []string{"id", "name", "folder", "revision", "url"},
		DefaultColumns: []string{"id", "name", "folder"},
		Verbs: map[Verb]VerbSpec{
			VerbList: {
				Summary:      "List pipelines in the project",
				NeedsProject: true,
				Options: []OptionSpec{
					limitOption,
					{Name: "order-by", Usage: "sort order, e.g. \"name asc\""},
				},
			},
			VerbGet: {Summary: "Show a pipeline", NeedsProject: true, Args: []ArgSpec{{Name: "pipeline-id"}}},
		},
		New: func(b *Backend) any { return NewPipelines(b) },
	},
	{
		Resource:       ResourceRun,
		Summary:        "Inspect and queue pipeline runs",
		Aliases:        []string{"runs"},
		Columns:        []string{"id", "name", "pipeline", "state", "result", "created", "finished", "url"},
		DefaultColumns: []string{"id", "name", "state", "result", "created"},
		Verbs: map[Verb]VerbSpec{
			VerbList: {
				Summary:      "List recent runs of a pipeline",
				NeedsProject: true,
				Args:         []ArgSpec{{Name: "pipeline-id"}},
				Options:      []OptionSpec{{Name: "limit", Usage: limitOption.Usage, Default: "20"}},
			},
			VerbGet: {
				Summary:      "Show a pipeline run",
				NeedsProject: true,
				Args:         []ArgSpec{{Name: "pipeline-id"}, {Name: "run-id"}},
			},
			VerbTrigger: {
				Summary:      "Queue a new run of a pipeline",
				NeedsProject: true,
				Args:         []ArgSpec{{Name: "pipeline-id"}},
				Options: []OptionSpec{
					{Name: "branch", Usage: "branch to build"},
					{Name: "variables", Usage: "run variables as name=value,name2=value2"},
				},
			},
		},
		New: func(b *Backend) any { return NewRuns(b) },
	},
	{
		Resource:       ResourcePullRequest,
		Summary:        "Manage pull requests",
		Aliases:        []string{"prs", "pullrequest"},
		Columns:        []string{"id", "title", "description", "status", "draft", "repository", "source", "target", "author", "created", "merge-status", "url"},
		DefaultColumns: []string{"id", "title", "status", "source", "target", "author"},
		Verbs: map[Verb]VerbSpec{
			VerbList: {
				Summary:      "List pull requests of a repository",
				NeedsProject: true,
				Args:         []ArgSpec{{Name: "repo"}},
				Options: []OptionSpec{
					{Name: "status", Usage: "pull request status", Default: "active", Values: []string{"active", "completed", "abandoned", "all"}},
					{Name: "author", Usage: "only pull requests created by this identity id"},
					{Name: "target", Usage: "only pull requests into this branch"},
					{Name: "limit", Usage: limitOption.Usage, Default: "100"},
				},
			},
			VerbGet: {Summary: "Show a pull request", NeedsProject: true, Args: []ArgSpec{{Name: "id"}}},
			VerbCreate: {
				Summary:      "Open a pull request",
				NeedsProject: true,
				Args:         []ArgSpec{{Name: "repo"}},
				Required:     []string{"source", "title"},
				Options: []OptionSpec{
					{Name: "source", Usage: "source branch"},
					{Name: "target", Usage: "target branch (default: the repository's default branch)"},
					{Name: "title", Usage: "title"},
					{Name: "description", Usage: "description (markdown)"},
					{Name: "draft", Usage: "open as a draft", Bool: true},
				},
			},
			VerbUpdate: {
				Summary:      "Update a pull request",
				NeedsProject: true,
				Args:         []ArgSpec{{Name: "id"}},
				Options: []OptionSpec{
					{Name: "title", Usage: "title"},
					{Name: "description", Usage: "description (markdown)"},
					{Name: "status", Usage: "new status", Values: []string{"active", "abandoned"}},
					{Name: "draft", Usage: "mark as draft (--draft=false publishes)", Bool: true},
				},
			},
		},
		New: func(b *Backend) any { return NewPullRequests(b) },
	},
	{
		Resource:       ResourceProject,
		Summary:        "Inspect projects",
		Aliases:        []string{"projects"},
		Columns:        []string{"id", "name", "description", "state", "visibility", "updated", "url"},
		DefaultColumns: []string{"name", "visibility", "state", "description"},
		Verbs: map[Verb]VerbSpec{
			VerbList: {
				Summary: "List projects in the organization",
				Options: []OptionSpec{
					limitOption,
					{Name: "state", Usage: "project state filter", Values: []string{"wellFormed", "createPending", "deleting", "new", "all"}},
				},
			},
			VerbGet: {Summary: "Show a project (default: the default project)", Args: []ArgSpec{{Name: "name", Optional: true}}},
		},
		New: func(b *Backend) any { return NewProjects(b) },
	},
}

// Descriptors returns every resource definition in display order.
func Descriptors() []Descriptor {
	return slices.Clone(descriptors)
}

// Lookup finds a descriptor by resource name or alias.
func Lookup(name string) (Descriptor, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range descriptors {
		if string(d.Resource) == name || slices.Contains(d.Aliases, name) {
			return d, true
		}
	}
	return Descriptor{}, false
}
