// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/christianhelle/azdocli/internal/api"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

// workItemBatchSize is the most ids the workitems endpoint accepts.
const workItemBatchSize = 200

const defaultWorkItemLimit = 200

// WorkItems is the work item adapter.
type WorkItems struct {
	backend *Backend
}

// NewWorkItems returns the work item adapter.
func NewWorkItems(b *Backend) *WorkItems {
	return &WorkItems{backend: b}
}

type wireWorkItem struct {
	ID     int    `json:"id"`
	Rev    int    `json:"rev"`
	URL    string `json:"url"`
	Fields struct {
		Type          string       `json:"System.WorkItemType"`
		Title         string       `json:"System.Title"`
		State         string       `json:"System.State"`
		Reason        string       `json:"System.Reason"`
		AssignedTo    *IdentityRef `json:"System.AssignedTo"`
		AreaPath      string       `json:"System.AreaPath"`
		IterationPath string       `json:"System.IterationPath"`
		Tags          string       `json:"System.Tags"`
		Description   string       `json:"System.Description"`
		Project       string       `json:"System.TeamProject"`
		CreatedDate   time.Time    `json:"System.CreatedDate"`
		ChangedDate   time.Time    `json:"System.ChangedDate"`
	} `json:"fields"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"_links"`
}

func (w *wireWorkItem) toWorkItem() WorkItem {
	url := w.Links.HTML.Href
	if url == "" {
		url = w.URL
	}
	return WorkItem{
		ID:            w.ID,
		Rev:           w.Rev,
		Type:          w.Fields.Type,
		Title:         w.Fields.Title,
		State:         w.Fields.State,
		Reason:        w.Fields.Reason,
		AssignedTo:    w.Fields.AssignedTo,
		AreaPath:      w.Fields.AreaPath,
		IterationPath: w.Fields.IterationPath,
		Tags:          splitList(w.Fields.Tags),
		Description:   w.Fields.Description,
		Project:       w.Fields.Project,
		CreatedAt:     w.Fields.CreatedDate,
		ChangedAt:     w.Fields.ChangedDate,
		URL:           url,
	}
}

// patchOp is one JSON Patch operation.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

func fieldOp(field string, value any) patchOp {
	return patchOp{Op: "add", Path: "/fields/" + field, Value: value}
}

// List runs a WIQL query for the project and fetches the matching items
// in concurrent batches, preserving the query's order.
func (a *WorkItems) List(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceWorkItem, p); err != nil {
		return nil, err
	}
	limit, err := intOption(ResourceWorkItem, p, "limit", defaultWorkItemLimit)
	if err != nil {
		return nil, err
	}
	query := buildWIQL(p)

	req := api.NewRequest(http.MethodPost, projectPath(p.Project, "wit/wiql")).
		WithBody(map[string]string{"query": query}).
		WithIdempotent(true)
	if limit > 0 {
		req = req.WithQuery(api.QueryTop, strconv.Itoa(limit))
	}

	var result struct {
		WorkItems []struct {
			ID int `json:"id"`
		} `json:"workItems"`
	}
	if err := a.backend.send(ctx, req, ResourceWorkItem, "", &result); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(result.WorkItems))
	for _, ref := range result.WorkItems {
		ids = append(ids, ref.ID)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return a.fetch(ctx, p.Project, ids)
}

// fetch loads work items by id, up to workItemBatchSize per request.
func (a *WorkItems) fetch(ctx context.Context, project string, ids []int) ([]WorkItem, error) {
	items := make([]WorkItem, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	var reqs []api.Request
	for batch := range slices.Chunk(ids, workItemBatchSize) {
		strs := make([]string, len(batch))
		for i, id := range batch {
			strs[i] = strconv.Itoa(id)
		}
		reqs = append(reqs, api.Get(scopedPath(project, "wit/workitems")).
			WithQuery("ids", strings.Join(strs, ",")).
			WithQuery("$expand", "links").
			WithQuery("errorPolicy", "omit"))
	}

	resps, err := a.backend.API.FetchPages(ctx, reqs)
	if err != nil {
		return nil, a.backend.mapError(ResourceWorkItem, "", err)
	}

	byID := make(map[int]WorkItem, len(ids))
	for _, resp := range resps {
		var page api.List[*wireWorkItem]
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		for _, w := range page.Value {
			// errorPolicy=omit yields nulls for deleted or hidden ids.
			if w != nil {
				byID[w.ID] = w.toWorkItem()
			}
		}
	}
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// Get returns one work item. The project is optional.
func (a *WorkItems) Get(ctx context.Context, p Params) (any, error) {
	id, err := requireID(ResourceWorkItem, p, 0, "id")
	if err != nil {
		return nil, err
	}
	return a.get(ctx, p.Project, id)
}

func (a *WorkItems) get(ctx context.Context, project string, id int) (*WorkItem, error) {
	req := api.Get(scopedPath(project, "wit/workitems/"+strconv.Itoa(id))).WithQuery("$expand", "links")
	var w wireWorkItem
	if err := a.backend.send(ctx, req, ResourceWorkItem, strconv.Itoa(id), &w); err != nil {
		return nil, err
	}
	item := w.toWorkItem()
	return &item, nil
}

// Create adds a work item of the given type.
func (a *WorkItems) Create(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceWorkItem, p); err != nil {
		return nil, err
	}
	itemType, err := requireOption(ResourceWorkItem, p, "type")
	if err != nil {
		return nil, err
	}
	title, err := requireOption(ResourceWorkItem, p, "title")
	if err != nil {
		return nil, err
	}

	ops := []patchOp{fieldOp("System.Title", title)}
	ops = append(ops, a.optionalFieldOps(p)...)

	req := api.NewRequest(http.MethodPost, projectPath(p.Project, "wit/workitems/$"+segment(itemType))).
		WithBody(ops).
		WithContentType(api.ContentJSONPatch)

	var w wireWorkItem
	if err := a.backend.send(ctx, req, ResourceWorkItem, "", &w); err != nil {
		return nil, err
	}
	item := w.toWorkItem()
	return &item, nil
}

// Update changes the given fields of a work item.
func (a *WorkItems) Update(ctx context.Context, p Params) (any, error) {
	id, err := requireID(ResourceWorkItem, p, 0, "id")
	if err != nil {
		return nil, err
	}

	var ops []patchOp
	if title := p.Option("title"); title != "" {
		ops = append(ops, fieldOp("System.Title", title))
	}
	ops = append(ops, a.optionalFieldOps(p)...)
	if len(ops) == 0 {
		return nil, adoerrors.WithHint(adoerrors.MissingField(string(ResourceWorkItem), "fields"),
			"Pass at least one of --title, --state, --description, --assigned-to, --tags, --area, --iteration")
	}

	req := api.NewRequest(http.MethodPatch, scopedPath(p.Project, "wit/workitems/"+strconv.Itoa(id))).
		WithBody(ops).
		WithContentType(api.ContentJSONPatch)

	var w wireWorkItem
	if err := a.backend.send(ctx, req, ResourceWorkItem, strconv.Itoa(id), &w); err != nil {
		return nil, err
	}
	item := w.toWorkItem()
	return &item, nil
}

func (a *WorkItems) optionalFieldOps(p Params) []patchOp {
	var ops []patchOp
	for _, f := range []struct{ option, field string }{
		{"state", "System.State"},
		{"description", "System.Description"},
		{"assigned-to", "System.AssignedTo"},
		{"area", "System.AreaPath"},
		{"iteration", "System.IterationPath"},
	} {
		if v := p.Option(f.option); v != "" {
			ops = append(ops, fieldOp(f.field, v))
		}
	}
	if tags := splitList(p.Option("tags")); len(tags) > 0 {
		ops = append(ops, fieldOp("System.Tags", strings.Join(tags, "; ")))
	}
	return ops
}

// Delete moves a work item to the recycle bin, or destroys it with
// --destroy.
func (a *WorkItems) Delete(ctx context.Context, p Params) (any, error) {
	id, err := requireID(ResourceWorkItem, p, 0, "id")
	if err != nil {
		return nil, err
	}
	destroy, err := boolOption(ResourceWorkItem, p, "destroy")
	if err != nil {
		return nil, err
	}

	req := api.NewRequest(http.MethodDelete, scopedPath(p.Project, "wit/workitems/"+strconv.Itoa(id)))
	if destroy {
		req = req.WithQuery("destroy", "true")
	}
	if err := a.backend.send(ctx, req, ResourceWorkItem, strconv.Itoa(id), nil); err != nil {
		return nil, err
	}
	return &Deletion{Resource: ResourceWorkItem, ID: strconv.Itoa(id), Permanent: destroy}, nil
}

// buildWIQL assembles the list query from the filter options.
func buildWIQL(p Params) string {
	clauses := []string{"[System.TeamProject] = @project"}

	if v := p.Option("state"); v != "" {
		clauses = append(clauses, fmt.Sprintf("[System.State] = %s", wiqlString(v)))
	}
	if v := p.Option("type"); v != "" {
		clauses = append(clauses, fmt.Sprintf("[System.WorkItemType] = %s", wiqlString(v)))
	}
	if v := p.Option("assigned-to"); v != "" {
		if strings.EqualFold(v, "@me") {
			clauses = append(clauses, "[System.AssignedTo] = @me")
		} else {
			clauses = append(clauses, fmt.Sprintf("[System.AssignedTo] = %s", wiqlString(v)))
		}
	}
	if v := p.Option("tag"); v != "" {
		clauses = append(clauses, fmt.Sprintf("[System.Tags] CONTAINS %s", wiqlString(v)))
	}

	return "SELECT [System.Id] FROM WorkItems WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY [System.ChangedDate] DESC"
}

// wiqlString quotes a WIQL string literal.
func wiqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
