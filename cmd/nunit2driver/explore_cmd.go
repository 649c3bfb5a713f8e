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

// exploreCmd implements subcommands.Command to describe selected tests.
type exploreCmd struct {
	flags  *driverFlags
	stdout io.Writer
}

var _ = subcommands.Command(&exploreCmd{})

func newExploreCmd(stdout io.Writer, verbose *bool) *exploreCmd {
	return &exploreCmd{flags: newDriverFlags(verbose), stdout: stdout}
}

func (*exploreCmd) Name() string     { return "explore" }
func (*exploreCmd) Synopsis() string { return "describe tests selected by a filter" }
func (*exploreCmd) Usage() string {
	return `Usage: explore [flag]... <assembly>

Description:
    Loads the assembly and prints the full static description of the tests
    selected by -filter, without running them.

Flag:
`
}

func (ec *exploreCmd) SetFlags(f *flag.FlagSet) { ec.flags.SetFlags(f) }

func (ec *exploreCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path, ok := assemblyArg(ctx, f, ec.Usage())
	if !ok {
		return subcommands.ExitUsageError
	}
	d, _, err := ec.flags.load(ctx, path)
	if err != nil {
		logging.Info(ctx, "Failed to load tests: ", err)
		return subcommands.ExitFailure
	}
	defer d.Close(ctx)

	tree, err := d.Explore(ctx, ec.flags.filter)
	if err != nil {
		logging.Info(ctx, "Failed to explore tests: ", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(ec.stdout, tree)
	return subcommands.ExitSuccess
}
