// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/christianhelle/azdocli/internal/devops"
	"github.com/christianhelle/azdocli/internal/dispatch"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

// newResourceCommand builds "ado <resource>" with one subcommand per verb.
func newResourceCommand(a *app, d devops.Descriptor) *cobra.Command {
	name := string(d.Resource)
	cmd := &cobra.Command{
		Use:     name + " <verb>",
		Aliases: d.Aliases,
		Short:   d.Summary,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return adoerrors.WithHint(
				adoerrors.Usagef("unknown verb %q for %s", args[0], name),
				"Run 'ado "+name+" --help' to list the supported verbs")
		},
	}

	for _, verb := range d.SortedVerbs() {
		cmd.AddCommand(newVerbCommand(a, d, verb, string(verb)))
	}
	return cmd
}

// newVerbCommand builds the command named use that runs verb on d.
func newVerbCommand(a *app, d devops.Descriptor, verb devops.Verb, use string) *cobra.Command {
	spec := d.Verbs[verb]

	usage := []string{use}
	for _, arg := range spec.Args {
		if arg.Optional {
			usage = append(usage, "["+arg.Name+"]")
		} else {
			usage = append(usage, "<"+arg.Name+">")
		}
	}

	cmd := &cobra.Command{
		Use:   strings.Join(usage, " "),
		Short: spec.Summary,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatcher().Run(cmd.Context(), dispatch.Invocation{
				Resource: string(d.Resource),
				Verb:     string(verb),
				Args:     args,
				Options:  changedOptions(cmd.Flags(), spec.Options),
				Columns:  a.flags.columns,
			})
		},
	}
	optionFlags(cmd.Flags(), spec.Options)
	return cmd
}

// addPipelineRunAliases adds "pipeline runs <id>" for listing runs and
// "pipeline run <id>" for queuing one.
func addPipelineRunAliases(a *app, pipeline *cobra.Command) {
	runs, ok := devops.Lookup(string(devops.ResourceRun))
	if !ok {
		return
	}
	pipeline.AddCommand(newVerbCommand(a, runs, devops.VerbList, "runs"))
	pipeline.AddCommand(newVerbCommand(a, runs, devops.VerbTrigger, "run"))
}
