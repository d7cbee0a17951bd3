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
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

// PATPrompter asks for a personal access token on the terminal.
type PATPrompter struct {
	isTerminal func() bool
	ask        func(ctx context.Context, organization string) (string, error)
}

// NewPATPrompter returns a prompter reading from the controlling terminal.
func NewPATPrompter() *PATPrompter {
	return &PATPrompter{
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		ask:        askPAT,
	}
}

// Authenticate prompts for a token. It refuses to run without a terminal
// so scripts fail fast instead of hanging.
func (p *PATPrompter) Authenticate(ctx context.Context, organization string) (*Credential, error) {
	if !p.isTerminal() {
		return nil, adoerrors.WithHint(
			errors.New("cannot prompt for a personal access token: stdin is not a terminal"),
			"Set ADO_PAT or run 'ado login --token-stdin'")
	}

	token, err := p.ask(ctx, organization)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, fmt.Errorf("login cancelled")
		}
		return nil, err
	}
	return NewPAT(organization, strings.TrimSpace(token)), nil
}

func askPAT(ctx context.Context, organization string) (string, error) {
	var token string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Personal access token for %s", organization)).
				Description(fmt.Sprintf("Create one at https://dev.azure.com/%s/_usersSettings/tokens", organization)).
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token cannot be empty")
					}
					return nil
				}).
				Value(&token),
		),
	).WithOutput(os.Stderr)

	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return token, nil
}
