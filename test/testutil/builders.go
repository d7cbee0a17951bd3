// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package testutil

import (
	"fmt"
	"time"
)

// Project is the project the builders place objects in.
const Project = "Fabrikam"

// ProjectID is the id of Project.
const ProjectID = "6ce954b1-ce1f-45d1-b94d-e6bf2464ba2c"

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// List wraps values in the {count, value} envelope.
func List(values ...map[string]any) map[string]any {
	if values == nil {
		values = []map[string]any{}
	}
	return map[string]any{"count": len(values), "value": values}
}

// Identity builds an identity reference.
func Identity(name string) map[string]any {
	return map[string]any{
		"displayName": name,
		"uniqueName":  fmt.Sprintf("%s@contoso.com", name),
		"id":          fmt.Sprintf("id-%s", name),
	}
}

// WorkItem builds a work item as returned with $expand=links.
func WorkItem(id int, title, state string) map[string]any {
	return map[string]any{
		"id":  id,
		"rev": 1,
		"url": fmt.Sprintf("https://dev.azure.com/%s/_apis/wit/workItems/%d", Organization, id),
		"fields": map[string]any{
			"System.WorkItemType":  "Task",
			"System.Title":         title,
			"System.State":         state,
			"System.AreaPath":      Project,
			"System.IterationPath": Project + `\Sprint 1`,
			"System.TeamProject":   Project,
			"System.AssignedTo":    Identity("alice"),
			"System.Tags":          "backend; api",
			"System.CreatedDate":   baseTime.Format(time.RFC3339),
			"System.ChangedDate":   baseTime.Add(time.Duration(id) * time.Hour).Format(time.RFC3339),
		},
		"_links": map[string]any{
			"html": map[string]any{
				"href": fmt.Sprintf("https://dev.azure.com/%s/%s/_workitems/edit/%d", Organization, Project, id),
			},
		},
	}
}

// WIQLResult builds a WIQL query result referencing ids.
func WIQLResult(ids ...int) map[string]any {
	refs := make([]map[string]any, len(ids))
	for i, id := range ids {
		refs[i] = map[string]any{"id": id}
	}
	return map[string]any{"queryType": "flat", "workItems": refs}
}

// Repository builds a Git repository.
func Repository(id, name string) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"defaultBranch": "refs/heads/main",
		"size":          1024,
		"isDisabled":    false,
		"remoteUrl":     fmt.Sprintf("https://%s@dev.azure.com/%s/%s/_git/%s", Organization, Organization, Project, name),
		"sshUrl":        fmt.Sprintf("git@ssh.dev.azure.com:v3/%s/%s/%s", Organization, Project, name),
		"webUrl":        fmt.Sprintf("https://dev.azure.com/%s/%s/_git/%s", Organization, Project, name),
		"project":       map[string]any{"id": ProjectID, "name": Project},
	}
}

// Pipeline builds a pipeline definition.
func Pipeline(id int, name string) map[string]any {
	return map[string]any{
		"id":       id,
		"name":     name,
		"folder":   `\`,
		"revision": 3,
		"url":      fmt.Sprintf("https://dev.azure.com/%s/%s/_apis/pipelines/%d", Organization, ProjectID, id),
		"_links": map[string]any{
			"web": map[string]any{
				"href": fmt.Sprintf("https://dev.azure.com/%s/%s/_build/definition?definitionId=%d", Organization, Project, id),
			},
		},
	}
}

// Run builds a pipeline run.
func Run(pipelineID, id int, state, result string) map[string]any {
	run := map[string]any{
		"id":          id,
		"name":        fmt.Sprintf("20250301.%d", id),
		"state":       state,
		"createdDate": baseTime.Add(time.Duration(id) * time.Minute).Format(time.RFC3339),
		"pipeline":    map[string]any{"id": pipelineID, "name": fmt.Sprintf("pipeline-%d", pipelineID)},
		"_links": map[string]any{
			"web": map[string]any{
				"href": fmt.Sprintf("https://dev.azure.com/%s/%s/_build/results?buildId=%d", Organization, Project, id),
			},
		},
	}
	if result != "" {
		run["result"] = result
		run["finishedDate"] = baseTime.Add(time.Duration(id)*time.Minute + 5*time.Minute).Format(time.RFC3339)
	}
	return run
}

// PullRequest builds a pull request in the repository repoID/repoName.
func PullRequest(id int, repoID, repoName, title string) map[string]any {
	return map[string]any{
		"pullRequestId": id,
		"title":         title,
		"description":   "",
		"status":        "active",
		"isDraft":       false,
		"sourceRefName": fmt.Sprintf("refs/heads/feature/%d", id),
		"targetRefName": "refs/heads/main",
		"createdBy":     Identity("bob"),
		"creationDate":  baseTime.Add(time.Duration(id) * time.Hour).Format(time.RFC3339),
		"mergeStatus":   "succeeded",
		"url":           fmt.Sprintf("https://dev.azure.com/%s/_apis/git/pullRequests/%d", Organization, id),
		"repository":    Repository(repoID, repoName),
	}
}

// PullRequests builds pull requests with ids from..to.
func PullRequests(from, to int, repoID, repoName string) []map[string]any {
	prs := make([]map[string]any, 0, to-from+1)
	for id := from; id <= to; id++ {
		prs = append(prs, PullRequest(id, repoID, repoName, fmt.Sprintf("PR %d", id)))
	}
	return prs
}

// ProjectJSON builds a team project.
func ProjectJSON(id, name string) map[string]any {
	return map[string]any{
		"id":             id,
		"name":           name,
		"description":    name + " project",
		"state":          "wellFormed",
		"visibility":     "private",
		"lastUpdateTime": baseTime.Format(time.RFC3339),
		"url":            fmt.Sprintf("https://dev.azure.com/%s/_apis/projects/%s", Organization, id),
	}
}
