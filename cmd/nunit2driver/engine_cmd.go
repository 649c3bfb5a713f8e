// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"code.cloudfoundry.org/clock"
	"github.com/google/subcommands"

	"github.com/nunit/v2driver/internal/driver"
	"github.com/nunit/v2driver/internal/logging"
	"github.com/nunit/v2driver/internal/rpc"
)

// engineCmd implements subcommands.Command to serve the engine to a parent
// nunit2driver process.
type engineCmd struct {
	rpc bool
}

var _ = subcommands.Command(&engineCmd{})

func (*engineCmd) Name() string     { return "engine" }
func (*engineCmd) Synopsis() string { return "serve the test engine (internal)" }
func (*engineCmd) Usage() string {
	return `Usage: engine -rpc

Description:
    Serves the test engine over stdin and stdout. This is started by other
    commands with -isolation=process and is not meant to be run by hand.

Flag:
`
}

func (ec *engineCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&ec.rpc, "rpc", false, "serve the engine over stdin/stdout")
}

func (ec *engineCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !ec.rpc || f.NArg() != 0 {
		logging.Info(ctx, ec.Usage())
		return subcommands.ExitUsageError
	}
	// Interrupts from the terminal reach the whole process group. The parent
	// turns them into stop requests, so the engine must survive them.
	signal.Ignore(syscall.SIGINT)

	if err := serveEngine(ctx, os.Stdin, os.Stdout); err != nil {
		logging.Info(ctx, "Engine failed: ", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func serveEngine(ctx context.Context, r io.Reader, w io.Writer) error {
	return rpc.ServeEngine(ctx, r, w, driver.InProcess(clock.NewClock()))
}
