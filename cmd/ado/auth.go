// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/christianhelle/azdocli/internal/credential"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
	"github.com/christianhelle/azdocli/internal/render"
)

func newAuthCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored credentials",
	}
	cmd.AddCommand(newLoginCommand(a, "login"))
	cmd.AddCommand(newLogoutCommand(a, "logout"))
	cmd.AddCommand(newStatusCommand(a))
	return cmd
}

func newLoginCommand(a *app, use string) *cobra.Command {
	var tokenStdin bool

	cmd := &cobra.Command{
		Use:   use,
		Short: "Authenticate with an Azure DevOps organization",
		Long: `Authenticate with an Azure DevOps organization and store the credential.

By default you are prompted for a personal access token. With
auth.method: device-code in the config file a Microsoft Entra ID device
code sign-in is used instead. --token-stdin reads a personal access
token from standard input for scripts:

  echo "$PAT" | ado login --org contoso --token-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := a.credentials()
			org := a.cfg.Organization

			if tokenStdin {
				token, err := readToken(a.stdin)
				if err != nil {
					return err
				}
				if err := m.Store(cmd.Context(), org, token); err != nil {
					return err
				}
			} else if _, err := m.Login(cmd.Context(), org); err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Logged in to %s\n", org)
			if m.UsingEnvironment() {
				fmt.Fprintln(a.stderr, "Note: ADO_PAT is set and takes precedence over the stored credential")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&tokenStdin, "token-stdin", false, "read a personal access token from standard input")
	return cmd
}

func readToken(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", adoerrors.WithHint(adoerrors.MissingField("credential", "token"),
			"Pipe the token in, e.g. echo \"$PAT\" | ado login --token-stdin")
	}
	return token, nil
}

func newLogoutCommand(a *app, use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Remove the stored credential for the organization",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			org := a.cfg.Organization
			if err := a.credentials().Revoke(org); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Logged out of %s\n", org)
			return nil
		},
	}
}

// credentialStatus is one row of "ado auth status".
type credentialStatus struct {
	Organization string     `json:"organization"`
	Kind         string     `json:"kind"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Expired      bool       `json:"expired"`
}

func (s credentialStatus) Field(name string) (string, bool) {
	switch name {
	case "organization":
		return s.Organization, true
	case "kind":
		return s.Kind, true
	case "expires":
		if s.ExpiresAt == nil {
			return "never", true
		}
		return s.ExpiresAt.Local().Format(time.RFC3339), true
	case "status":
		if s.Expired {
			return "expired", true
		}
		return "valid", true
	}
	return "", false
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			m := a.credentials()
			if m.UsingEnvironment() {
				fmt.Fprintln(a.stderr, "Using the personal access token from ADO_PAT")
			}

			stored, err := m.List()
			if err != nil {
				return err
			}
			if len(stored) == 0 {
				fmt.Fprintln(a.stderr, "No stored credentials")
				return nil
			}

			rows := make([]credentialStatus, 0, len(stored))
			for _, s := range stored {
				rows = append(rows, statusRow(s))
			}
			return render.Render(a.stdout, rows, render.Options{
				Format:  a.cfg.Output.Format,
				Columns: []string{"organization", "kind", "expires", "status"},
				Color:   a.cfg.Output.Color && a.isTerminal(a.stdout),
			})
		},
	}
}

func statusRow(s credential.Status) credentialStatus {
	return credentialStatus{
		Organization: s.Organization,
		Kind:         string(s.Kind),
		ExpiresAt:    s.ExpiresAt,
		Expired:      s.Expired,
	}
}
