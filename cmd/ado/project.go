// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/christianhelle/azdocli/internal/config"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

// newProjectDefaultCommand builds "ado project default [name]".
func newProjectDefaultCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "default [name]",
		Short: "Show or set the default project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				if a.cfg.Project == "" {
					return adoerrors.WithHint(adoerrors.Usagef("no default project configured"),
						"Set one with 'ado project default <name>' or pass --project")
				}
				fmt.Fprintln(a.stdout, a.cfg.Project)
				return nil
			}

			name := strings.TrimSpace(args[0])
			if name == "" {
				return adoerrors.MissingField("project", "name")
			}
			if err := config.SaveDefaultProject(a.cfg.Path, name); err != nil {
				return err
			}
			a.logger.Debug("default project saved", "path", a.cfg.Path, "project", name)
			fmt.Fprintf(a.stdout, "Default project set to %s\n", name)
			return nil
		},
	}
}
