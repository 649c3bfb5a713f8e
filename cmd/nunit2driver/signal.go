// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/nunit/v2driver/internal/logging"
)

const (
	signalChannelSize = 3 // capacity of channel used to intercept signals
)

// watchInterrupts calls onInterrupt on the first SIGINT. On a later SIGINT
// or a SIGTERM, it restores the terminal state and exits the process, which
// prevents deferred functions from running. The returned function stops
// watching.
func watchInterrupts(ctx context.Context, onInterrupt func()) (stop func()) {
	var st *terminal.State
	fd := int(os.Stdin.Fd())
	if terminal.IsTerminal(fd) {
		var err error
		if st, err = terminal.GetState(fd); err != nil {
			logging.Info(ctx, "Failed to get terminal state: ", err)
		}
	}

	sc := make(chan os.Signal, signalChannelSize)
	done := make(chan struct{})
	go func() {
		interrupted := false
		for {
			select {
			case sig := <-sc:
				if sig == syscall.SIGINT && !interrupted {
					interrupted = true
					onInterrupt()
					continue
				}
				if st != nil {
					terminal.Restore(fd, st)
				}
				fmt.Fprintf(os.Stderr, "\nCaught %v signal; exiting\n", sig)
				os.Exit(1)
			case <-done:
				return
			}
		}
	}()
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)

	return func() {
		signal.Stop(sc)
		close(done)
	}
}
