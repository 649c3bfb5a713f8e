// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the nunit2driver executable, which loads, explores
// and runs V2 test assemblies and prints the results as the newer engine's
// XML reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/nunit/v2driver/internal/logging"
)

// Version is the version info of this command. It is filled in at build time.
var Version = "<unknown>"

// newLogger creates a logging.Logger writing to stderr. stdout is reserved
// for reports and the engine protocol.
func newLogger(verbose bool) logging.Logger {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	return logging.NewWriterLogger(os.Stderr, level, verbose)
}

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit makes the program exit
// immediately.
func doMain() int {
	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "use verbose logging")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newLoadCmd(os.Stdout, verbose), "")
	subcommands.Register(newCountCmd(os.Stdout, verbose), "")
	subcommands.Register(newExploreCmd(os.Stdout, verbose), "")
	subcommands.Register(newRunCmd(os.Stdout, os.Stderr, verbose), "")
	subcommands.Register(&engineCmd{}, "")

	flag.Parse()

	if *version {
		fmt.Printf("nunit2driver version %s\n", Version)
		return 0
	}

	ctx := logging.AttachLogger(context.Background(), newLogger(*verbose))
	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
