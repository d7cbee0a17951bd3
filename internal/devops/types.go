// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"strconv"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

// IdentityRef is a user as Azure DevOps reports it.
type IdentityRef struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName,omitempty"`
	ID          string `json:"id,omitempty"`
}

func (i *IdentityRef) String() string {
	if i == nil {
		return ""
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.UniqueName
}

// WorkItem is a board item: bug, task, user story and so on.
type WorkItem struct {
	ID            int          `json:"id"`
	Rev           int          `json:"rev"`
	Type          string       `json:"type"`
	Title         string       `json:"title"`
	State         string       `json:"state"`
	Reason        string       `json:"reason,omitempty"`
	AssignedTo    *IdentityRef `json:"assignedTo,omitempty"`
	AreaPath      string       `json:"areaPath,omitempty"`
	IterationPath string       `json:"iterationPath,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Description   string       `json:"description,omitempty"`
	Project       string       `json:"project,omitempty"`
	CreatedAt     time.Time    `json:"createdDate,omitzero"`
	ChangedAt     time.Time    `json:"changedDate,omitzero"`
	URL           string       `json:"url,omitempty"`
}

// Field implements render.Record.
func (w WorkItem) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.Itoa(w.ID), true
	case "rev":
		return strconv.Itoa(w.Rev), true
	case "type":
		return w.Type, true
	case "title":
		return w.Title, true
	case "state":
		return w.State, true
	case "reason":
		return w.Reason, true
	case "assigned-to":
		return w.AssignedTo.String(), true
	case "area":
		return w.AreaPath, true
	case "iteration":
		return w.IterationPath, true
	case "tags":
		return strings.Join(w.Tags, "; "), true
	case "project":
		return w.Project, true
	case "created":
		return formatTime(w.CreatedAt), true
	case "changed":
		return formatTime(w.ChangedAt), true
	case "url":
		return w.URL, true
	}
	return "", false
}

// Repository is a Git repository.
type Repository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Project       string `json:"project,omitempty"`
	DefaultBranch string `json:"defaultBranch,omitempty"`
	Size          int64  `json:"size"`
	Disabled      bool   `json:"isDisabled,omitempty"`
	RemoteURL     string `json:"remoteUrl,omitempty"`
	SSHURL        string `json:"sshUrl,omitempty"`
	WebURL        string `json:"webUrl,omitempty"`
}

// Field implements render.Record.
func (r Repository) Field(name string) (string, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "name":
		return r.Name, true
	case "project":
		return r.Project, true
	case "default-branch":
		return strings.TrimPrefix(r.DefaultBranch, "refs/heads/"), true
	case "size":
		return strconv.FormatInt(r.Size, 10), true
	case "disabled":
		return strconv.FormatBool(r.Disabled), true
	case "remote-url":
		return r.RemoteURL, true
	case "ssh-url":
		return r.SSHURL, true
	case "url":
		return r.WebURL, true
	}
	return "", false
}

// Pipeline is a pipeline definition.
type Pipeline struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Folder   string `json:"folder,omitempty"`
	Revision int    `json:"revision"`
	URL      string `json:"url,omitempty"`
}

// Field implements render.Record.
func (p Pipeline) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.Itoa(p.ID), true
	case "name":
		return p.Name, true
	case "folder":
		return p.Folder, true
	case "revision":
		return strconv.Itoa(p.Revision), true
	case "url":
		return p.URL, true
	}
	return "", false
}

// PipelineRun is one execution of a pipeline.
type PipelineRun struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	PipelineID   int       `json:"pipelineId"`
	PipelineName string    `json:"pipelineName,omitempty"`
	State        string    `json:"state"`
	Result       string    `json:"result,omitempty"`
	CreatedAt    time.Time `json:"createdDate,omitzero"`
	FinishedAt   time.Time `json:"finishedDate,omitzero"`
	URL          string    `json:"url,omitempty"`
}

// Field implements render.Record.
func (r PipelineRun) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.Itoa(r.ID), true
	case "name":
		return r.Name, true
	case "pipeline":
		if r.PipelineName != "" {
			return r.PipelineName, true
		}
		return strconv.Itoa(r.PipelineID), true
	case "state":
		return r.State, true
	case "result":
		return r.Result, true
	case "created":
		return formatTime(r.CreatedAt), true
	case "finished":
		return formatTime(r.FinishedAt), true
	case "url":
		return r.URL, true
	}
	return "", false
}

// PullRequest is a Git pull request.
type PullRequest struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Status       string       `json:"status"`
	Draft        bool         `json:"isDraft"`
	Repository   string       `json:"repository"`
	RepositoryID string       `json:"repositoryId"`
	Project      string       `json:"project,omitempty"`
	SourceBranch string       `json:"sourceRefName"`
	TargetBranch string       `json:"targetRefName"`
	CreatedBy    *IdentityRef `json:"createdBy,omitempty"`
	CreatedAt    time.Time    `json:"creationDate,omitzero"`
	MergeStatus  string       `json:"mergeStatus,omitempty"`
	URL          string       `json:"url,omitempty"`
}

// Field implements render.Record.
func (pr PullRequest) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.Itoa(pr.ID), true
	case "title":
		return pr.Title, true
	case "description":
		return pr.Description, true
	case "status":
		return pr.Status, true
	case "draft":
		return strconv.FormatBool(pr.Draft), true
	case "repository":
		return pr.Repository, true
	case "source":
		return strings.TrimPrefix(pr.SourceBranch, "refs/heads/"), true
	case "target":
		return strings.TrimPrefix(pr.TargetBranch, "refs/heads/"), true
	case "author":
		return pr.CreatedBy.String(), true
	case "created":
		return formatTime(pr.CreatedAt), true
	case "merge-status":
		return pr.MergeStatus, true
	case "url":
		return pr.URL, true
	}
	return "", false
}

// Project is a team project.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	State       string    `json:"state"`
	Visibility  string    `json:"visibility"`
	UpdatedAt   time.Time `json:"lastUpdateTime,omitzero"`
	URL         string    `json:"url,omitempty"`
}

// Field implements render.Record.
func (p Project) Field(name string) (string, bool) {
	switch name {
	case "id":
		return p.ID, true
	case "name":
		return p.Name, true
	case "description":
		return p.Description, true
	case "state":
		return p.State, true
	case "visibility":
		return p.Visibility, true
	case "updated":
		return formatTime(p.UpdatedAt), true
	case "url":
		return p.URL, true
	}
	return "", false
}

// Deletion reports a successful delete.
type Deletion struct {
	Resource Resource `json:"resource"`
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	// Permanent is false when the object went to a recycle bin.
	Permanent bool `json:"permanent"`
}

// Field implements render.Record.
func (d Deletion) Field(name string) (string, bool) {
	switch name {
	case "resource":
		return string(d.Resource), true
	case "id":
		return d.ID, true
	case "name":
		return d.Name, true
	case "status":
		if d.Permanent {
			return "destroyed", true
		}
		return "deleted", true
	}
	return "", false
}

// DefaultColumns implements render.Columnar.
func (Deletion) DefaultColumns() []string {
	return []string{"resource", "id", "status"}
}
