// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	// An interrupted command leaves no output behind, not even an error.
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return adoerrors.ExitCode(err)
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	for _, hint := range adoerrors.Hints(err) {
		fmt.Fprintf(stderr, "Hint: %s\n", hint)
	}
	if a.flags.verbose {
		fmt.Fprintf(stderr, "\n%+v\n", err)
	}
	return adoerrors.ExitCode(err)
}
