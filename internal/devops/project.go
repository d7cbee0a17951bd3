// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"context"
	"strconv"
	"time"

	"github.com/christianhelle/azdocli/internal/api"
)

// Projects is the team project adapter.
type Projects struct {
	backend *Backend
}

// NewProjects returns the project adapter.
func NewProjects(b *Backend) *Projects {
	return &Projects{backend: b}
}

type wireProject struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	State          string    `json:"state"`
	Visibility     string    `json:"visibility"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
	URL            string    `json:"url"`
}

func (w *wireProject) toProject() Project {
	return Project{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		State:       w.State,
		Visibility:  w.Visibility,
		UpdatedAt:   w.LastUpdateTime,
		URL:         w.URL,
	}
}

// List returns the organization's projects, following continuation
// tokens until exhausted or --limit is reached.
func (a *Projects) List(ctx context.Context, p Params) (any, error) {
	limit, err := intOption(ResourceProject, p, "limit", 0)
	if err != nil {
		return nil, err
	}

	req := api.Get(orgPath("projects")).WithQuery(api.QueryTop, strconv.Itoa(a.backend.PageSize))
	if state := p.Option("state"); state != "" {
		if err := oneOf(ResourceProject, "state", state, "wellFormed", "createPending", "deleting", "new", "all"); err != nil {
			return nil, err
		}
		req = req.WithQuery("stateFilter", state)
	}

	projects := []Project{}
	for resp, err := range a.backend.API.Paginate(ctx, req) {
		if err != nil {
			return nil, a.backend.mapError(ResourceProject, "", err)
		}
		var page api.List[wireProject]
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		for i := range page.Value {
			projects = append(projects, page.Value[i].toProject())
			if limit > 0 && len(projects) == limit {
				return projects, nil
			}
		}
	}
	return projects, nil
}

// Get returns a project by name or id. With no argument it shows the
// default project.
func (a *Projects) Get(ctx context.Context, p Params) (any, error) {
	name := p.Arg(0)
	if name == "" {
		name = p.Project
	}
	if name == "" {
		if _, err := requireArg(ResourceProject, p, 0, "name"); err != nil {
			return nil, err
		}
	}
	return a.lookup(ctx, name)
}

func (a *Projects) lookup(ctx context.Context, nameOrID string) (*Project, error) {
	ref := ResourceRef{Type: ResourceProject, ID: nameOrID}
	return lookup(ctx, a.backend.Cache, ref, func(ctx context.Context) (*Project, error) {
		var w wireProject
		if err := a.backend.send(ctx, api.Get(orgPath("projects/"+segment(nameOrID))), ResourceProject, nameOrID, &w); err != nil {
			return nil, err
		}
		project := w.toProject()
		return &project, nil
	})
}
