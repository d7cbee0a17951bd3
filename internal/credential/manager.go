// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

// Authenticator obtains a brand new credential, usually interactively.
type Authenticator interface {
	Authenticate(ctx context.Context, organization string) (*Credential, error)
}

// Refresher renews an expired credential without user interaction.
type Refresher interface {
	Refresh(ctx context.Context, cred *Credential) (*Credential, error)
}

// ErrClosed is returned by every Manager method after Close.
var ErrClosed = errors.New("credential manager is closed")

// Options configures a Manager.
type Options struct {
	Store         Store
	Authenticator Authenticator // nil disables interactive authentication
	Refresher     Refresher     // nil disables silent refresh
	Interactive   bool

	// EnvToken is a PAT supplied through the environment. When set it
	// wins over the store and is never persisted.
	EnvToken string

	Logger *log.Logger
	Now    func() time.Time
}

// Manager resolves credentials for organizations. It is safe for
// concurrent use; the store is only ever written by one goroutine at a
// time.
type Manager struct {
	store         Store
	authenticator Authenticator
	refresher     Refresher
	interactive   bool
	envToken      string
	logger        *log.Logger
	now           func() time.Time

	mu          sync.Mutex
	initialized bool
	closed      bool
	resolved    map[string]*Credential
}

// NewManager creates a Manager. The store is initialized lazily on the
// first call that needs it.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:         opts.Store,
		authenticator: opts.Authenticator,
		refresher:     opts.Refresher,
		interactive:   opts.Interactive,
		envToken:      strings.TrimSpace(opts.EnvToken),
		logger:        opts.Logger,
		now:           opts.Now,
		resolved:      make(map[string]*Credential),
	}
}

// Resolve returns a usable credential for organization. Repeated calls
// return the same credential without re-authenticating while it stays
// valid.
func (m *Manager) Resolve(ctx context.Context, organization string) (*Credential, error) {
	if organization == "" {
		return nil, adoerrors.Usagef("no organization configured (use --org or ADO_ORGANIZATION)")
	}
	if m.envToken != "" {
		m.logger.Debug("using personal access token from environment", "organization", organization)
		return NewPAT(organization, m.envToken), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.init(); err != nil {
		return nil, err
	}

	key := storeKey(organization)
	if cred, ok := m.resolved[key]; ok && cred.Valid(m.now()) {
		return cred, nil
	}

	stored, err := m.store.Load(organization)
	switch {
	case err == nil && stored.Valid(m.now()):
		m.resolved[key] = stored
		return stored, nil

	case err == nil && stored.Token != "":
		m.logger.Debug("stored credential expired", "organization", organization, "expires_at", stored.ExpiresAt)
		return m.renew(ctx, organization, stored)

	case err == nil, errors.Is(err, ErrNotStored):
		// Absent, or stored without a token.

	default:
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	if !m.interactive || m.authenticator == nil {
		return nil, adoerrors.NewAuthError(adoerrors.AuthNotFound, organization, nil)
	}
	cred, err := m.authenticate(ctx, organization)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, adoerrors.NewAuthError(adoerrors.AuthNotFound, organization, err)
	}
	return cred, nil
}

// renew refreshes an expired credential, falling back to interactive
// authentication when allowed.
func (m *Manager) renew(ctx context.Context, organization string, stored *Credential) (*Credential, error) {
	var cause error
	if m.refresher != nil && len(stored.RefreshState) > 0 {
		cred, err := m.refresher.Refresh(ctx, stored)
		if err == nil && cred.Valid(m.now()) {
			if err := m.persist(cred); err != nil {
				return nil, err
			}
			m.logger.Debug("refreshed credential", "organization", organization)
			return cred, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cause = err
		m.logger.Debug("silent refresh failed", "organization", organization, "err", err)
	}

	if !m.interactive || m.authenticator == nil {
		return nil, adoerrors.NewAuthError(adoerrors.AuthExpired, organization, cause)
	}
	cred, err := m.authenticate(ctx, organization)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, adoerrors.NewAuthError(adoerrors.AuthExpired, organization, err)
	}
	return cred, nil
}

func (m *Manager) authenticate(ctx context.Context, organization string) (*Credential, error) {
	cred, err := m.authenticator.Authenticate(ctx, organization)
	if err != nil {
		return nil, err
	}
	if !cred.Valid(m.now()) {
		return nil, fmt.Errorf("authentication returned an unusable credential")
	}
	cred.Organization = organization
	if err := m.persist(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (m *Manager) persist(cred *Credential) error {
	if err := m.store.Save(cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	m.resolved[storeKey(cred.Organization)] = cred
	return nil
}

// Login runs the configured authenticator even when a credential is
// already stored, replacing it.
func (m *Manager) Login(ctx context.Context, organization string) (*Credential, error) {
	if organization == "" {
		return nil, adoerrors.Usagef("no organization configured (use --org or ADO_ORGANIZATION)")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.init(); err != nil {
		return nil, err
	}
	if m.authenticator == nil || !m.interactive {
		return nil, adoerrors.WithHint(
			adoerrors.Usagef("interactive login is disabled"),
			"Pass the token with 'ado login --token-stdin' or set ADO_PAT")
	}
	return m.authenticate(ctx, organization)
}

// Store persists token as the personal access token for organization.
func (m *Manager) Store(ctx context.Context, organization, token string) error {
	if organization == "" {
		return adoerrors.Usagef("no organization configured (use --org or ADO_ORGANIZATION)")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return adoerrors.MissingField("credential", "token")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.init(); err != nil {
		return err
	}
	return m.persist(NewPAT(organization, token))
}

// Revoke deletes the stored credential for organization. Revoking an
// absent credential is not an error.
func (m *Manager) Revoke(organization string) error {
	if organization == "" {
		return adoerrors.Usagef("no organization configured (use --org or ADO_ORGANIZATION)")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.init(); err != nil {
		return err
	}
	delete(m.resolved, storeKey(organization))
	if err := m.store.Delete(organization); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}
	return nil
}

// Status describes one stored credential without exposing its token.
type Status struct {
	Organization string
	Kind         Kind
	ExpiresAt    *time.Time
	Expired      bool
}

// List reports every stored credential.
func (m *Manager) List() ([]Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.init(); err != nil {
		return nil, err
	}
	orgs, err := m.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	statuses := make([]Status, 0, len(orgs))
	for _, org := range orgs {
		cred, err := m.store.Load(org)
		if errors.Is(err, ErrNotStored) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load credential for %s: %w", org, err)
		}
		statuses = append(statuses, Status{
			Organization: cred.Organization,
			Kind:         cred.Kind,
			ExpiresAt:    cred.ExpiresAt,
			Expired:      cred.Expired(m.now()),
		})
	}
	return statuses, nil
}

// UsingEnvironment reports whether an environment PAT overrides the store.
func (m *Manager) UsingEnvironment() bool {
	return m.envToken != ""
}

// Close releases the manager. Writes are synchronous, so nothing is
// pending; later calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.resolved = nil
	if closer, ok := m.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// init loads or creates the store once. Callers hold m.mu.
func (m *Manager) init() error {
	if m.closed {
		return ErrClosed
	}
	if m.initialized {
		return nil
	}
	if m.store == nil {
		return fmt.Errorf("no credential store configured")
	}
	if initializer, ok := m.store.(Initializer); ok {
		if err := initializer.Init(); err != nil {
			return fmt.Errorf("failed to initialize credential store: %w", err)
		}
	}
	m.initialized = true
	m.logger.Debug("credential store ready", "store", fmt.Sprintf("%T", m.store))
	return nil
}
