// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"context"
	"strconv"

	"github.com/christianhelle/azdocli/internal/api"
)

// Pipelines is the pipeline definition adapter.
type Pipelines struct {
	backend *Backend
}

// NewPipelines returns the pipeline adapter.
func NewPipelines(b *Backend) *Pipelines {
	return &Pipelines{backend: b}
}

type wirePipeline struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Folder   string `json:"folder"`
	Revision int    `json:"revision"`
	URL      string `json:"url"`
	Links    struct {
		Web struct {
			Href string `json:"href"`
		} `json:"web"`
	} `json:"_links"`
}

func (w *wirePipeline) toPipeline() Pipeline {
	url := w.Links.Web.Href
	if url == "" {
		url = w.URL
	}
	return Pipeline{ID: w.ID, Name: w.Name, Folder: w.Folder, Revision: w.Revision, URL: url}
}

// List returns the project's pipelines, following continuation tokens.
func (a *Pipelines) List(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourcePipeline, p); err != nil {
		return nil, err
	}
	limit, err := intOption(ResourcePipeline, p, "limit", 0)
	if err != nil {
		return nil, err
	}

	req := api.Get(projectPath(p.Project, "pipelines")).WithQuery(api.QueryTop, strconv.Itoa(a.backend.PageSize))
	if order := p.Option("order-by"); order != "" {
		req = req.WithQuery("orderBy", order)
	}

	pipelines := []Pipeline{}
	for resp, err := range a.backend.API.Paginate(ctx, req) {
		if err != nil {
			return nil, a.backend.mapError(ResourcePipeline, "", err)
		}
		var page api.List[wirePipeline]
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		for i := range page.Value {
			pipelines = append(pipelines, page.Value[i].toPipeline())
			if limit > 0 && len(pipelines) == limit {
				return pipelines, nil
			}
		}
	}
	return pipelines, nil
}

// Get returns a pipeline by id.
func (a *Pipelines) Get(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourcePipeline, p); err != nil {
		return nil, err
	}
	id, err := requireID(ResourcePipeline, p, 0, "pipeline-id")
	if err != nil {
		return nil, err
	}
	return a.get(ctx, p.Project, id)
}

func (a *Pipelines) get(ctx context.Context, project string, id int) (*Pipeline, error) {
	ref := ResourceRef{Project: project, Type: ResourcePipeline, ID: strconv.Itoa(id)}
	return lookup(ctx, a.backend.Cache, ref, func(ctx context.Context) (*Pipeline, error) {
		var w wirePipeline
		req := api.Get(projectPath(project, "pipelines/"+strconv.Itoa(id)))
		if err := a.backend.send(ctx, req, ResourcePipeline, strconv.Itoa(id), &w); err != nil {
			return nil, err
		}
		pipeline := w.toPipeline()
		return &pipeline, nil
	})
}
