// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package credential resolves, persists and revokes the tokens ado uses to
// talk to Azure DevOps, one per organization.
//
// Resolution order:
//  1. ADO_PAT (or AZURE_DEVOPS_EXT_PAT) in the environment. Never stored.
//  2. A stored, unexpired credential.
//  3. A stored, expired credential refreshed silently.
//  4. Interactive authentication, when allowed.
//
// Two stores exist. FileStore keeps every organization in a single JSON
// document guarded by a version number and a SHA-256 checksum; it is
// written atomically and serialized across processes with a lock file.
// KeyringStore delegates to the operating system keychain.
package credential
