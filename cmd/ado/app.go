// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/christianhelle/azdocli/internal/api"
	"github.com/christianhelle/azdocli/internal/config"
	"github.com/christianhelle/azdocli/internal/credential"
	"github.com/christianhelle/azdocli/internal/dispatch"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
	"github.com/christianhelle/azdocli/internal/logging"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	org            string
	project        string
	output         string
	columns        []string
	configPath     string
	noColor        bool
	nonInteractive bool
	verbose        bool
}

// app holds the state of one CLI run.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	flags  globalFlags

	cfg     *config.Config
	logger  *log.Logger
	manager *credential.Manager

	isTerminal func(io.Writer) bool
	newStore   func(*config.Config) credential.Store
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		isTerminal: isTerminal,
		newStore:   newStore,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newStore(cfg *config.Config) credential.Store {
	if cfg.Auth.Store == config.StoreKeyring {
		return credential.NewKeyringStore()
	}
	return credential.NewFileStore(cfg.Auth.StorePath)
}

// setup loads configuration and applies flag overrides. Flags win over
// the environment, which wins over the config file.
func (a *app) setup(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.LoadConfig(a.flags.configPath)
	if err != nil {
		return adoerrors.WithHint(err, "Check the file passed with --config or ADO_CONFIG")
	}

	flags := cmd.Flags()
	if flags.Changed("org") {
		cfg.Organization = a.flags.org
	}
	if flags.Changed("project") {
		cfg.Project = a.flags.project
	}
	if flags.Changed("output") {
		cfg.Output.Format = strings.ToLower(a.flags.output)
	}
	if a.flags.noColor {
		cfg.Output.Color = false
	}
	if a.flags.nonInteractive {
		cfg.Auth.Interactive = false
	}
	if a.flags.verbose {
		cfg.LogLevel = "debug"
	}
	cfg.Organization = strings.TrimSpace(cfg.Organization)
	cfg.Project = strings.TrimSpace(cfg.Project)

	if err := cfg.Validate(); err != nil {
		return adoerrors.WithHint(adoerrors.Usagef("invalid configuration: %v", err),
			fmt.Sprintf("Check %s and the ADO_* environment variables", cfg.Path))
	}

	logger, err := logging.New(a.stderr, cfg.LogLevel)
	if err != nil {
		return adoerrors.Usagef("invalid log level: %v", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.logger.Debug("configuration loaded", "path", cfg.Path, "organization", cfg.Organization,
		"project", cfg.Project, "format", cfg.Output.Format)
	return nil
}

// credentials returns the credential manager, creating it on first use.
func (a *app) credentials() *credential.Manager {
	if a.manager != nil {
		return a.manager
	}

	opts := credential.Options{
		Store:       a.newStore(a.cfg),
		Interactive: a.cfg.Auth.Interactive,
		EnvToken:    config.PATFromEnv(),
		Logger:      a.logger,
	}
	switch a.cfg.Auth.Method {
	case config.MethodDeviceCode:
		dc := credential.NewDeviceCodeAuthenticator(a.cfg.Auth.ClientID, a.cfg.Auth.TenantID, a.stderr)
		opts.Authenticator = dc
		opts.Refresher = dc
	default:
		opts.Authenticator = credential.NewPATPrompter()
	}

	a.manager = credential.NewManager(opts)
	return a.manager
}

func (a *app) dispatcher() *dispatch.Dispatcher {
	r := a.cfg.API.Retry
	return dispatch.New(dispatch.Options{
		Organization: a.cfg.Organization,
		Project:      a.cfg.Project,
		Format:       a.cfg.Output.Format,
		Color:        a.cfg.Output.Color && a.isTerminal(a.stdout),
		Columns:      a.cfg.Output.Columns,
		API: api.Options{
			BaseURL:    a.cfg.API.BaseURL,
			APIVersion: a.cfg.API.APIVersion,
			Timeout:    a.cfg.API.Timeout,
			Workers:    a.cfg.API.Workers,
			Retry: api.RetryConfig{
				MaxAttempts:      r.MaxAttempts,
				BaseDelay:        r.BaseDelay,
				MaxDelay:         r.MaxDelay,
				Multiplier:       r.Multiplier,
				MaxRateLimitWait: r.MaxRateLimitWait,
			},
		},
		PageSize:    a.cfg.API.PageSize,
		Credentials: a.credentials(),
		Out:         a.stdout,
		Logger:      a.logger,
	})
}

func (a *app) close() {
	if a.manager != nil {
		_ = a.manager.Close()
	}
}
