// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/subcommands"

	"github.com/nunit/v2driver/internal/driver"
	"github.com/nunit/v2driver/internal/logging"
)

// runCmd implements subcommands.Command to run tests.
type runCmd struct {
	flags     *driverFlags
	noSummary bool // do not print the colored summary
	stdout    io.Writer
	stderr    io.Writer

	// watch is called to intercept interrupts for the duration of the run.
	// Tests replace it.
	watch func(ctx context.Context, onInterrupt func()) (stop func())
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(stdout, stderr io.Writer, verbose *bool) *runCmd {
	return &runCmd{
		flags:  newDriverFlags(verbose),
		stdout: stdout,
		stderr: stderr,
		watch:  watchInterrupts,
	}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run tests selected by a filter" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... <assembly>

Description:
    Loads the assembly and runs the tests selected by -filter. Every progress
    report is printed on its own line as tests start and finish, followed by
    the final report. Exits with 0 if the run completed, even if some tests
    failed.

    An interrupt (Ctrl-C) asks the engine to stop after the current test; a
    second one exits immediately.

Flag:
`
}

func (rc *runCmd) SetFlags(f *flag.FlagSet) {
	rc.flags.SetFlags(f)
	f.BoolVar(&rc.noSummary, "nosummary", false, "do not print a summary to stderr")
}

func (rc *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path, ok := assemblyArg(ctx, f, rc.Usage())
	if !ok {
		return subcommands.ExitUsageError
	}
	d, _, err := rc.flags.load(ctx, path)
	if err != nil {
		logging.Info(ctx, "Failed to load tests: ", err)
		return subcommands.ExitFailure
	}
	defer d.Close(ctx)

	stop := rc.watch(ctx, func() {
		logging.Info(ctx, "Interrupted; stopping after the current test")
		if err := d.StopRun(ctx, false); err != nil {
			logging.Info(ctx, "Failed to stop run: ", err)
		}
	})
	defer stop()

	var sum summary
	l := driver.ListenerFunc(func(fragment string) {
		sum.add(fragment)
		fmt.Fprintln(rc.stdout, fragment)
	})
	rep, err := d.Run(ctx, l, rc.flags.filter)
	if err != nil {
		logging.Info(ctx, "Failed to run tests: ", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(rc.stdout, rep)

	if !rc.noSummary {
		sum.print(rc.stderr)
	}
	return subcommands.ExitSuccess
}

// summary counts test case results seen in progress reports.
type summary struct {
	passed, failed, skipped, other int
}

// add counts fragment if it is a test case result.
func (s *summary) add(fragment string) {
	if !strings.HasPrefix(fragment, "<test-case") {
		return
	}
	var tc struct {
		Result string `xml:"result,attr"`
	}
	if err := xml.Unmarshal([]byte(fragment), &tc); err != nil {
		return
	}
	switch tc.Result {
	case "Passed":
		s.passed++
	case "Failed", "Error":
		s.failed++
	case "Skipped":
		s.skipped++
	default:
		s.other++
	}
}

func (s *summary) print(w io.Writer) {
	total := s.passed + s.failed + s.skipped + s.other
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "%-12s %d\n", "Total", total)
	color.New(color.FgGreen).Fprintf(w, "%-12s %d\n", "Passed", s.passed)
	color.New(color.FgRed).Fprintf(w, "%-12s %d\n", "Failed", s.failed)
	color.New(color.FgYellow).Fprintf(w, "%-12s %d\n", "Skipped", s.skipped)
	if s.other > 0 {
		color.New(color.FgMagenta).Fprintf(w, "%-12s %d\n", "Inconclusive", s.other)
	}
}
