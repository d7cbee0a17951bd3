// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package main implements the ado command-line interface for Azure
// DevOps.
//
// Commands take the form:
//
//	ado <resource> <verb> [arguments] [--option value ...]
//
// where resource is one of workitem, repo, pipeline, run, pr or project.
// Run 'ado <resource> --help' for the verbs and options of a resource.
//
// Example:
//
//	export ADO_ORGANIZATION=contoso
//	ado login
//	ado project default Fabrikam
//	ado workitem list --assigned-to @me -o tsv
//
// Exit codes:
//   - 0: Success
//   - 1: Usage, validation or API error
//   - 2: Authentication error (no credential, expired, or rejected)
package main
