// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package devops contains one adapter per Azure DevOps resource: work
// items, repositories, pipelines, pipeline runs, pull requests and
// projects.
//
// An adapter supports a verb exactly when it implements the matching
// capability interface (Lister, Getter, Creator, Updater, Deleter,
// Triggerer). Adapters validate their input before sending anything,
// translate API failures into domain errors (not found per resource,
// access denied as an auth error) and return typed domain objects that
// the render package knows how to print.
//
// Descriptors is the closed table of resources, verbs, arguments,
// options and columns. The CLI builds its command tree from it and the
// dispatcher validates invocations against it.
package devops
