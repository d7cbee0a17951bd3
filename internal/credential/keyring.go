// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name credentials are stored under.
const KeyringService = "ado"

// indexUser holds the list of stored organizations, since the keychain
// APIs cannot enumerate entries.
const indexUser = "__organizations__"

// KeyringStore keeps credentials in the operating system keychain.
type KeyringStore struct {
	service string
	mu      sync.Mutex
}

// NewKeyringStore returns a store using the "ado" keychain service.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: KeyringService}
}

// Init checks the keychain is reachable. A missing entry is fine; any
// other error (no D-Bus session in a container, say) is not.
func (s *KeyringStore) Init() error {
	if _, err := keyring.Get(s.service, indexUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("system keyring not available: %w", err)
	}
	return nil
}

// Load returns the credential stored for organization.
func (s *KeyringStore) Load(organization string) (*Credential, error) {
	data, err := keyring.Get(s.service, storeKey(organization))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotStored
		}
		return nil, fmt.Errorf("failed to retrieve credential from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Save stores cred.
func (s *KeyringStore) Save(cred *Credential) error {
	if cred == nil || cred.Organization == "" {
		return fmt.Errorf("credential must name an organization")
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(s.service, storeKey(cred.Organization), string(data)); err != nil {
		return fmt.Errorf("failed to store credential in keyring: %w", err)
	}
	return s.updateIndex(func(orgs []string) []string {
		if slices.Contains(orgs, cred.Organization) {
			return orgs
		}
		return append(orgs, cred.Organization)
	})
}

// Delete removes the credential for organization. Deleting an absent
// credential succeeds.
func (s *KeyringStore) Delete(organization string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, storeKey(organization)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete credential from keyring: %w", err)
	}
	key := storeKey(organization)
	return s.updateIndex(func(orgs []string) []string {
		return slices.DeleteFunc(orgs, func(o string) bool { return storeKey(o) == key })
	})
}

// List returns the organizations with stored credentials, sorted.
func (s *KeyringStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orgs, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	slices.Sort(orgs)
	return orgs, nil
}

func (s *KeyringStore) readIndex() ([]string, error) {
	data, err := keyring.Get(s.service, indexUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var orgs []string
	if err := json.Unmarshal([]byte(data), &orgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keyring index: %w", err)
	}
	return orgs, nil
}

func (s *KeyringStore) updateIndex(update func([]string) []string) error {
	orgs, err := s.readIndex()
	if err != nil {
		return err
	}
	orgs = update(orgs)
	data, err := json.Marshal(orgs)
	if err != nil {
		return fmt.Errorf("failed to marshal keyring index: %w", err)
	}
	if err := keyring.Set(s.service, indexUser, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
