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

const defaultPullRequestLimit = 100

// PullRequests is the pull request adapter.
type PullRequests struct {
	backend *Backend
	repos   *Repositories
}

// NewPullRequests returns the pull request adapter.
func NewPullRequests(b *Backend) *PullRequests {
	return &PullRequests{backend: b, repos: NewRepositories(b)}
}

type wirePullRequest struct {
	PullRequestID int          `json:"pullRequestId"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Status        string       `json:"status"`
	IsDraft       bool         `json:"isDraft"`
	SourceRefName string       `json:"sourceRefName"`
	TargetRefName string       `json:"targetRefName"`
	CreatedBy     *IdentityRef `json:"createdBy"`
	CreationDate  time.Time    `json:"creationDate"`
	MergeStatus   string       `json:"mergeStatus"`
	URL           string       `json:"url"`
	Repository    struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		WebURL  string `json:"webUrl"`
		Project struct {
			Name string `json:"name"`
		} `json:"project"`
	} `json:"repository"`
}

func (w *wirePullRequest) toPullRequest() PullRequest {
	url := w.URL
	if w.Repository.WebURL != "" {
		url = w.Repository.WebURL + "/pullrequest/" + strconv.Itoa(w.PullRequestID)
	}
	return PullRequest{
		ID:           w.PullRequestID,
		Title:        w.Title,
		Description:  w.Description,
		Status:       w.Status,
		Draft:        w.IsDraft,
		Repository:   w.Repository.Name,
		RepositoryID: w.Repository.ID,
		Project:      w.Repository.Project.Name,
		SourceBranch: w.SourceRefName,
		TargetBranch: w.TargetRefName,
		CreatedBy:    w.CreatedBy,
		CreatedAt:    w.CreationDate,
		MergeStatus:  w.MergeStatus,
		URL:          url,
	}
}

func pullRequestsPath(project, repo string) string {
	return projectPath(project, "git/repositories/"+segment(repo)+"/pullrequests")
}

// List returns the pull requests of a repository, filtered by --status.
// Pages are fetched concurrently by offset.
func (a *PullRequests) List(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourcePullRequest, p); err != nil {
		return nil, err
	}
	repo, err := requireArg(ResourcePullRequest, p, 0, "repo")
	if err != nil {
		return nil, err
	}
	limit, err := intOption(ResourcePullRequest, p, "limit", defaultPullRequestLimit)
	if err != nil {
		return nil, err
	}
	status := p.Option("status")
	if status == "" {
		status = "active"
	}
	if err := oneOf(ResourcePullRequest, "status", status, "active", "completed", "abandoned", "all"); err != nil {
		return nil, err
	}

	req := api.Get(pullRequestsPath(p.Project, repo)).WithQuery("searchCriteria.status", strings.ToLower(status))
	if v := p.Option("author"); v != "" {
		req = req.WithQuery("searchCriteria.creatorId", v)
	}
	if v := p.Option("target"); v != "" {
		req = req.WithQuery("searchCriteria.targetRefName", branchRef(v))
	}

	resps, err := a.backend.API.PaginateOffset(ctx, req, a.backend.PageSize, limit, api.CountList)
	if err != nil {
		return nil, a.backend.mapError(ResourceRepository, repo, err)
	}

	prs := []PullRequest{}
	for _, resp := range resps {
		var page api.List[wirePullRequest]
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		for i := range page.Value {
			if limit > 0 && len(prs) == limit {
				return prs, nil
			}
			prs = append(prs, page.Value[i].toPullRequest())
		}
	}
	return prs, nil
}

// Get returns a pull request by id. Ids are unique per project, so no
// repository is needed.
func (a *PullRequests) Get(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourcePullRequest, p); err != nil {
		return nil, err
	}
	id, err := requireID(ResourcePullRequest, p, 0, "id")
	if err != nil {
		return nil, err
	}
	return a.get(ctx, p.Project, id)
}

func (a *PullRequests) get(ctx context.Context, project string, id int) (*PullRequest, error) {
	ref := ResourceRef{Project: project, Type: ResourcePullRequest, ID: strconv.Itoa(id)}
	return lookup(ctx, a.backend.Cache, ref, func(ctx context.Context) (*PullRequest, error) {
		var w wirePullRequest
		req := api.Get(projectPath(project, "git/pullrequests/"+strconv.Itoa(id)))
		if err := a.backend.send(ctx, req, ResourcePullRequest, strconv.Itoa(id), &w); err != nil {
			return nil, err
		}
		pr := w.toPullRequest()
		return &pr, nil
	})
}

// Create opens a pull request from --source into --target, which
// defaults to the repository's default branch.
func (a *PullRequests) Create(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourcePullRequest, p); err != nil {
		return nil, err
	}
	repoName, err := requireArg(ResourcePullRequest, p, 0, "repo")
	if err != nil {
		return nil, err
	}
	source, err := requireOption(ResourcePullRequest, p, "source")
	if err != nil {
		return nil, err
	}
	title, err := requireOption(ResourcePullRequest, p, "title")
	if err != nil {
		return nil, err
	}
	draft, err := boolOption(ResourcePullRequest, p, "draft")
	if err != nil {
		return nil, err
	}

	repo, err := a.repos.lookup(ctx, p.Project, repoName)
	if err != nil {
		return nil, err
	}

	target := p.Option("target")
	if target == "" {
		if repo.DefaultBranch == "" {
			return nil, adoerrors.WithHint(adoerrors.MissingField(string(ResourcePullRequest), "target"),
				"The repository has no default branch; pass --target")
		}
		target = repo.DefaultBranch
	}
	if branchRef(source) == branchRef(target) {
		return nil, adoerrors.InvalidField(string(ResourcePullRequest), "target", "must differ from the source branch")
	}

	body := map[string]any{
		"sourceRefName": branchRef(source),
		"targetRefName": branchRef(target),
		"title":         title,
		"isDraft":       draft,
	}
	if v := p.Option("description"); v != "" {
		body["description"] = v
	}

	req := api.NewRequest(http.MethodPost, pullRequestsPath(p.Project, repo.ID)).WithBody(body)

	var w wirePullRequest
	if err := a.backend.send(ctx, req, ResourceRepository, repoName, &w); err != nil {
		return nil, err
	}
	pr := w.toPullRequest()
	return &pr, nil
}

// Update changes the title, description, status or draft flag of a pull
// request.
func (a *PullRequests) Update(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourcePullRequest, p); err != nil {
		return nil, err
	}
	id, err := requireID(ResourcePullRequest, p, 0, "id")
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if v := p.Option("title"); v != "" {
		body["title"] = v
	}
	if v := p.Option("description"); v != "" {
		body["description"] = v
	}
	if v := p.Option("status"); v != "" {
		if err := oneOf(ResourcePullRequest, "status", v, "active", "abandoned"); err != nil {
			return nil, err
		}
		body["status"] = strings.ToLower(v)
	}
	if p.Has("draft") {
		draft, err := boolOption(ResourcePullRequest, p, "draft")
		if err != nil {
			return nil, err
		}
		body["isDraft"] = draft
	}
	if len(body) == 0 {
		return nil, adoerrors.WithHint(adoerrors.MissingField(string(ResourcePullRequest), "fields"),
			"Pass at least one of --title, --description, --status, --draft")
	}

	current, err := a.get(ctx, p.Project, id)
	if err != nil {
		return nil, err
	}

	req := api.NewRequest(http.MethodPatch,
		pullRequestsPath(p.Project, current.RepositoryID)+"/"+strconv.Itoa(id)).WithBody(body)

	var w wirePullRequest
	if err := a.backend.send(ctx, req, ResourcePullRequest, strconv.Itoa(id), &w); err != nil {
		return nil, err
	}
	pr := w.toPullRequest()
	return &pr, nil
}
