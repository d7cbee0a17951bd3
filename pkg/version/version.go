// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/christianhelle/azdocli/pkg/version.Version=1.2.3"
package version

// Version is the released version of ado, "dev" for local builds.
var Version = "dev"

// UserAgent is sent with every API request.
func UserAgent() string {
	return "ado/" + Version
}
