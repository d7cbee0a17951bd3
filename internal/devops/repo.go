// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"context"
	"net/http"

	"github.com/christianhelle/azdocli/internal/api"
)

// Repositories is the Git repository adapter.
type Repositories struct {
	backend  *Backend
	projects *Projects
}

// NewRepositories returns the repository adapter.
func NewRepositories(b *Backend) *Repositories {
	return &Repositories{backend: b, projects: NewProjects(b)}
}

type wireRepository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DefaultBranch string `json:"defaultBranch"`
	Size          int64  `json:"size"`
	IsDisabled    bool   `json:"isDisabled"`
	RemoteURL     string `json:"remoteUrl"`
	SSHURL        string `json:"sshUrl"`
	WebURL        string `json:"webUrl"`
	Project       struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"project"`
}

func (w *wireRepository) toRepository() Repository {
	return Repository{
		ID:            w.ID,
		Name:          w.Name,
		Project:       w.Project.Name,
		DefaultBranch: w.DefaultBranch,
		Size:          w.Size,
		Disabled:      w.IsDisabled,
		RemoteURL:     w.RemoteURL,
		SSHURL:        w.SSHURL,
		WebURL:        w.WebURL,
	}
}

// List returns every repository in the project.
func (a *Repositories) List(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceRepository, p); err != nil {
		return nil, err
	}

	var page api.List[wireRepository]
	if err := a.backend.send(ctx, api.Get(projectPath(p.Project, "git/repositories")), ResourceRepository, "", &page); err != nil {
		return nil, err
	}

	repos := make([]Repository, 0, len(page.Value))
	for i := range page.Value {
		repo := page.Value[i].toRepository()
		a.backend.Cache.Put(ResourceRef{Project: p.Project, Type: ResourceRepository, ID: repo.Name}, &repo)
		repos = append(repos, repo)
	}
	return repos, nil
}

// Get returns a repository by name or id.
func (a *Repositories) Get(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceRepository, p); err != nil {
		return nil, err
	}
	name, err := requireArg(ResourceRepository, p, 0, "name")
	if err != nil {
		return nil, err
	}
	return a.lookup(ctx, p.Project, name)
}

// lookup resolves a repository name or id through the invocation cache.
func (a *Repositories) lookup(ctx context.Context, project, nameOrID string) (*Repository, error) {
	ref := ResourceRef{Project: project, Type: ResourceRepository, ID: nameOrID}
	return lookup(ctx, a.backend.Cache, ref, func(ctx context.Context) (*Repository, error) {
		var w wireRepository
		req := api.Get(projectPath(project, "git/repositories/"+segment(nameOrID)))
		if err := a.backend.send(ctx, req, ResourceRepository, nameOrID, &w); err != nil {
			return nil, err
		}
		repo := w.toRepository()
		return &repo, nil
	})
}

// Create adds an empty repository to the project.
func (a *Repositories) Create(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceRepository, p); err != nil {
		return nil, err
	}
	name, err := requireArg(ResourceRepository, p, 0, "name")
	if err != nil {
		return nil, err
	}

	project, err := a.projects.lookup(ctx, p.Project)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":    name,
		"project": map[string]string{"id": project.ID},
	}
	req := api.NewRequest(http.MethodPost, projectPath(p.Project, "git/repositories")).WithBody(body)

	var w wireRepository
	if err := a.backend.send(ctx, req, ResourceRepository, "", &w); err != nil {
		return nil, err
	}
	repo := w.toRepository()
	return &repo, nil
}

// Delete removes a repository. The API only accepts ids, so names are
// resolved first.
func (a *Repositories) Delete(ctx context.Context, p Params) (any, error) {
	if err := requireProject(ResourceRepository, p); err != nil {
		return nil, err
	}
	name, err := requireArg(ResourceRepository, p, 0, "name")
	if err != nil {
		return nil, err
	}

	repo, err := a.lookup(ctx, p.Project, name)
	if err != nil {
		return nil, err
	}

	req := api.NewRequest(http.MethodDelete, projectPath(p.Project, "git/repositories/"+segment(repo.ID)))
	if err := a.backend.send(ctx, req, ResourceRepository, name, nil); err != nil {
		return nil, err
	}
	return &Deletion{Resource: ResourceRepository, ID: repo.ID, Name: repo.Name}, nil
}
