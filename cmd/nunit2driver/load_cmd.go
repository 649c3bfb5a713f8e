// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"github.com/nunit/v2driver/internal/logging"
)

// loadCmd implements subcommands.Command to print the loaded test tree.
type loadCmd struct {
	flags  *driverFlags
	stdout io.Writer
}

var _ = subcommands.Command(&loadCmd{})

func newLoadCmd(stdout io.Writer, verbose *bool) *loadCmd {
	return &loadCmd{flags: newDriverFlags(verbose), stdout: stdout}
}

func (*loadCmd) Name() string     { return "load" }
func (*loadCmd) Synopsis() string { return "load an assembly and print its test suite" }
func (*loadCmd) Usage() string {
	return `Usage: load [flag]... <assembly>

Description:
    Loads the assembly and prints the XML of its assembly suite, or a
    NotRunnable placeholder if it has no tests.

Flag:
`
}

func (lc *loadCmd) SetFlags(f *flag.FlagSet) { lc.flags.SetFlags(f) }

func (lc *loadCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path, ok := assemblyArg(ctx, f, lc.Usage())
	if !ok {
		return subcommands.ExitUsageError
	}
	d, tree, err := lc.flags.load(ctx, path)
	if err != nil {
		logging.Info(ctx, "Failed to load tests: ", err)
		return subcommands.ExitFailure
	}
	defer d.Close(ctx)

	fmt.Fprintln(lc.stdout, tree)
	return subcommands.ExitSuccess
}

// assemblyArg returns the single positional argument of f. It logs usage
// and returns false if there is not exactly one.
func assemblyArg(ctx context.Context, f *flag.FlagSet, usage string) (string, bool) {
	if f.NArg() != 1 {
		logging.Info(ctx, "Expected exactly one assembly.\n\n"+usage)
		return "", false
	}
	return f.Arg(0), true
}
