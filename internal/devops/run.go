// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/christianhelle/azdocli/internal/api"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

const defaultRunLimit = 20

// Runs is the pipeline run adapter.
type Runs struct {
	backend *Backend
}

// NewRuns returns the pipeline run adapter.
func NewRuns(b *Backend) *Runs {
	return &Runs{backend: b}
}

type wireRun struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	State        string    `json:"state"`
	Result       string    `json:"result"`
	CreatedDate  time.Time `json:"createdDate"`
	FinishedDate time.Time `json:"finishedDate"`
	URL          string    `json:"url"`
	Pipeline     struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"pipeline"`
	Links struct {
		Web struct {
			Href string `json:"href"`
		} `json:"web"`
	} `json:"_links"`
}

func (w *wireRun) toRun() PipelineRun {
	url := w.Links.Web.Href
	if url == "" {
		url = w.URL
	}
	return PipelineRun{
		ID:           w.ID,
		Name:         w.Name,
		PipelineID:   w.Pipeline.ID,
		PipelineName: w.Pipeline.Name,
		State:        w.State,
		Result:       w.Result,
		CreatedAt:    w.CreatedDate,
		FinishedAt:   w.FinishedDate,
		URL:          url,
	}
}

func runsPath(project string, pipelineID int) string {
	return projectPath(project, "pipelines/"+strconv.Itoa(pipelineID)+"/runs")
}

// List returns the most recent runs of a pipeline. The endpoint returns
// at most 10000 runs newest first and cannot page, so --limit trims
// client side.
func (a *Runs) List(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceRun, p); err != nil {
		return nil, err
	}
	pipelineID, err := requireID(ResourceRun, p, 0, "pipeline-id")
	if err != nil {
		return nil, err
	}
	limit, err := intOption(ResourceRun, p, "limit", defaultRunLimit)
	if err != nil {
		return nil, err
	}

	var page api.List[wireRun]
	if err := a.backend.send(ctx, api.Get(runsPath(p.Project, pipelineID)), ResourcePipeline, strconv.Itoa(pipelineID), &page); err != nil {
		return nil, err
	}

	runs := make([]PipelineRun, 0, len(page.Value))
	for i := range page.Value {
		if limit > 0 && len(runs) == limit {
			break
		}
		runs = append(runs, page.Value[i].toRun())
	}
	return runs, nil
}

// Get returns one run of a pipeline.
func (a *Runs) Get(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceRun, p); err != nil {
		return nil, err
	}
	pipelineID, err := requireID(ResourceRun, p, 0, "pipeline-id")
	if err != nil {
		return nil, err
	}
	runID, err := requireID(ResourceRun, p, 1, "run-id")
	if err != nil {
		return nil, err
	}

	var w wireRun
	req := api.Get(runsPath(p.Project, pipelineID) + "/" + strconv.Itoa(runID))
	if err := a.backend.send(ctx, req, ResourceRun, strconv.Itoa(runID), &w); err != nil {
		return nil, err
	}
	run := w.toRun()
	return &run, nil
}

// Trigger queues a new run, optionally on --branch with --variables
// given as "name=value,name2=value2".
func (a *Runs) Trigger(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceRun, p); err != nil {
		return nil, err
	}
	pipelineID, err := requireID(ResourceRun, p, 0, "pipeline-id")
	if err != nil {
		return nil, err
	}
	variables, err := parseVariables(p.Option("variables"))
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if branch := p.Option("branch"); branch != "" {
		body["resources"] = map[string]any{
			"repositories": map[string]any{
				"self": map[string]string{"refName": branchRef(branch)},
			},
		}
	}
	if len(variables) > 0 {
		body["variables"] = variables
	}

	// Queuing a run twice starts two builds.
	req := api.NewRequest(http.MethodPost, runsPath(p.Project, pipelineID)).WithBody(body)

	var w wireRun
	if err := a.backend.send(ctx, req, ResourcePipeline, strconv.Itoa(pipelineID), &w); err != nil {
		return nil, err
	}
	run := w.toRun()
	return &run, nil
}

type runVariable struct {
	Value    string `json:"value"`
	IsSecret bool   `json:"isSecret"`
}

func parseVariables(v string) (map[string]runVariable, error) {
	vars := map[string]runVariable{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, adoerrors.InvalidField(string(ResourceRun), "variables",
				"expected name=value, got "+strconv.Quote(pair))
		}
		vars[name] = runVariable{Value: value}
	}
	return vars, nil
}

// branchRef qualifies a short branch name.
func branchRef(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}
