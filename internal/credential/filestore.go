// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

// CurrentVersion is the credentials file schema version.
const CurrentVersion = 1

const (
	lockTimeout    = 5 * time.Second
	lockRetryDelay = 10 * time.Millisecond
)

// document is the on-disk layout of the credentials file.
type document struct {
	Version     int                    `json:"version"`
	Checksum    string                 `json:"checksum"`
	Credentials map[string]*Credential `json:"credentials"`
}

// FileStore keeps credentials in a single 0600 JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path. Nothing is
// touched on disk until Init or the first operation.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the credentials file location.
func (s *FileStore) Path() string { return s.path }

// Init creates an empty credentials file if none exists and verifies an
// existing one.
func (s *FileStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if doc != nil {
			return nil
		}
		return s.write(&document{Credentials: map[string]*Credential{}})
	})
}

// Load returns the credential stored for organization.
func (s *FileStore) Load(organization string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cred *Credential
	err := s.withRLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if doc == nil {
			return ErrNotStored
		}
		stored, ok := doc.Credentials[storeKey(organization)]
		if !ok || stored == nil {
			return ErrNotStored
		}
		c := *stored
		cred = &c
		return nil
	})
	return cred, err
}

// Save stores cred, replacing any credential for the same organization.
func (s *FileStore) Save(cred *Credential) error {
	if cred == nil || cred.Organization == "" {
		return fmt.Errorf("credential must name an organization")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if doc == nil {
			doc = &document{Credentials: map[string]*Credential{}}
		}
		c := *cred
		doc.Credentials[storeKey(cred.Organization)] = &c
		return s.write(doc)
	})
}

// Delete removes the credential for organization. Deleting an absent
// credential succeeds.
func (s *FileStore) Delete(organization string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withLock(func() error {
		doc, err := s.read()
		if err != nil || doc == nil {
			return err
		}
		key := storeKey(organization)
		if _, ok := doc.Credentials[key]; !ok {
			return nil
		}
		delete(doc.Credentials, key)
		return s.write(doc)
	})
}

// List returns the organizations with stored credentials, sorted.
func (s *FileStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orgs []string
	err := s.withRLock(func() error {
		doc, err := s.read()
		if err != nil || doc == nil {
			return err
		}
		for _, cred := range doc.Credentials {
			orgs = append(orgs, cred.Organization)
		}
		return nil
	})
	slices.Sort(orgs)
	return orgs, err
}

// read loads and verifies the document. A missing file yields nil.
func (s *FileStore) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials file %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("credentials file is corrupted (invalid JSON): %w", err)
	}
	if doc.Version != CurrentVersion {
		return nil, fmt.Errorf("credentials file version (%d) is incompatible with current version (%d)",
			doc.Version, CurrentVersion)
	}

	want, err := checksum(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum for validation: %w", err)
	}
	if doc.Checksum != want {
		return nil, fmt.Errorf("credentials file is corrupted (checksum mismatch)")
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]*Credential{}
	}
	return &doc, nil
}

// write stamps version and checksum and atomically replaces the file.
func (s *FileStore) write(doc *document) error {
	doc.Version = CurrentVersion
	sum, err := checksum(doc)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}
	doc.Checksum = sum

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// checksum is the SHA-256 of the document with an empty checksum field.
func checksum(doc *document) (string, error) {
	c := *doc
	c.Checksum = ""
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// withLock runs fn holding the exclusive cross-process lock. The lock
// lives next to the file so it survives the atomic rename.
func (s *FileStore) withLock(fn func() error) error {
	return s.locked(fn, func(l *flock.Flock, ctx context.Context) (bool, error) {
		return l.TryLockContext(ctx, lockRetryDelay)
	})
}

func (s *FileStore) withRLock(fn func() error) error {
	return s.locked(fn, func(l *flock.Flock, ctx context.Context) (bool, error) {
		return l.TryRLockContext(ctx, lockRetryDelay)
	})
}

func (s *FileStore) locked(fn func() error, acquire func(*flock.Flock, context.Context) (bool, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	lock := flock.New(s.path + ".lock")
	ok, err := acquire(lock, ctx)
	if err != nil {
		return fmt.Errorf("failed to lock credentials file %s: %w", s.path, err)
	}
	if !ok {
		return fmt.Errorf("credentials file %s is locked by another process", s.path)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}
