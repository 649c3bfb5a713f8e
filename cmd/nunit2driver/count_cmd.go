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

// countCmd implements subcommands.Command to count selected test cases.
type countCmd struct {
	flags  *driverFlags
	stdout io.Writer
}

var _ = subcommands.Command(&countCmd{})

func newCountCmd(stdout io.Writer, verbose *bool) *countCmd {
	return &countCmd{flags: newDriverFlags(verbose), stdout: stdout}
}

func (*countCmd) Name() string     { return "count" }
func (*countCmd) Synopsis() string { return "count test cases selected by a filter" }
func (*countCmd) Usage() string {
	return `Usage: count [flag]... <assembly>

Description:
    Loads the assembly and prints the number of test cases selected by
    -filter.

Flag:
`
}

func (cc *countCmd) SetFlags(f *flag.FlagSet) { cc.flags.SetFlags(f) }

func (cc *countCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path, ok := assemblyArg(ctx, f, cc.Usage())
	if !ok {
		return subcommands.ExitUsageError
	}
	d, _, err := cc.flags.load(ctx, path)
	if err != nil {
		logging.Info(ctx, "Failed to load tests: ", err)
		return subcommands.ExitFailure
	}
	defer d.Close(ctx)

	n, err := d.CountTestCases(ctx, cc.flags.filter)
	if err != nil {
		logging.Info(ctx, "Failed to count tests: ", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(cc.stdout, n)
	return subcommands.ExitSuccess
}
