// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/christianhelle/azdocli/internal/devops"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
	"github.com/christianhelle/azdocli/pkg/version"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ado",
		Short: "Work with Azure DevOps from the command line",
		Long: `ado manages Azure DevOps work items, repositories, pipelines, pull
requests and projects.

Authenticate once with 'ado login', set a default project with
'ado project default <name>', then run commands such as:

  ado workitem list --state Active
  ado pr create my-repo --source feature/x --title "Add x"
  ado pipeline run 12 --branch main`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.org, "org", "", "Azure DevOps organization (env ADO_ORGANIZATION)")
	pf.StringVarP(&a.flags.project, "project", "p", "", "team project (env ADO_PROJECT)")
	pf.StringVarP(&a.flags.output, "output", "o", "", "output format: table, json or tsv (env ADO_OUTPUT)")
	pf.StringSliceVar(&a.flags.columns, "columns", nil, "comma separated columns to show")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output (env NO_COLOR)")
	pf.BoolVar(&a.flags.nonInteractive, "non-interactive", false, "never prompt (env ADO_NON_INTERACTIVE)")
	pf.StringVar(&a.flags.configPath, "config", "", "config file (env ADO_CONFIG)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging and full error details")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return adoerrors.Usagef("%v", err)
	})

	for _, d := range devops.Descriptors() {
		cmd := newResourceCommand(a, d)
		switch d.Resource {
		case devops.ResourcePipeline:
			addPipelineRunAliases(a, cmd)
		case devops.ResourceProject:
			cmd.AddCommand(newProjectDefaultCommand(a))
		}
		root.AddCommand(cmd)
	}

	root.AddCommand(newAuthCommand(a))
	root.AddCommand(newLoginCommand(a, "login"))
	root.AddCommand(newLogoutCommand(a, "logout"))

	return root
}

// optionFlags registers one flag per option. Only flags the user set are
// passed on, so adapters apply their own defaults.
func optionFlags(fs *pflag.FlagSet, specs []devops.OptionSpec) {
	for _, o := range specs {
		usage := o.Usage
		if len(o.Values) > 0 {
			usage += " (" + strings.Join(o.Values, "|") + ")"
		}
		if o.Bool {
			fs.Bool(o.Name, false, usage)
			continue
		}
		fs.String(o.Name, o.Default, usage)
	}
}

func changedOptions(fs *pflag.FlagSet, specs []devops.OptionSpec) map[string]string {
	opts := make(map[string]string)
	for _, o := range specs {
		if f := fs.Lookup(o.Name); f != nil && f.Changed {
			opts[o.Name] = f.Value.String()
		}
	}
	return opts
}
