// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package credential

import (
	"errors"
	"strings"
)

// ErrNotStored is returned by Store.Load when no credential exists for
// the organization.
var ErrNotStored = errors.New("credential not stored")

// Store persists credentials keyed by organization. Organization names
// are case-insensitive.
type Store interface {
	Load(organization string) (*Credential, error)
	Save(cred *Credential) error
	Delete(organization string) error
	List() ([]string, error)
}

// Initializer is implemented by stores that need to create their backing
// storage before first use.
type Initializer interface {
	Init() error
}

func storeKey(organization string) string {
	return strings.ToLower(strings.TrimSpace(organization))
}
