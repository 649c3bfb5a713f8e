// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/nunit/v2driver/internal/driver"
)

// NewLocalClient serves an engine opened with open on a goroutine and
// returns a Client connected to it through in-memory pipes. Calls still go
// through gRPC, so the engine sees exactly what an engine process would.
//
// The engine goroutine ends when the returned Client is closed.
func NewLocalClient(ctx context.Context, runnerID int, open driver.OpenFunc) (*Client, error) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()

	var g errgroup.Group
	g.Go(func() error {
		defer sw.Close()
		defer sr.Close()
		return ServeEngine(context.WithoutCancel(ctx), sr, sw, open)
	})

	return newClient(ctx, cr, cw, runnerID, func(context.Context) error {
		cw.Close()
		cr.Close()
		return g.Wait()
	})
}

// Isolated returns an OpenFunc that runs every execution context opened by
// open behind NewLocalClient.
func Isolated(open driver.OpenFunc) driver.OpenFunc {
	return func(ctx context.Context, runnerID int) (driver.ExecutionContext, error) {
		return NewLocalClient(ctx, runnerID, open)
	}
}

// Exec returns an OpenFunc starting the engine executable at path with args
// for every execution context.
func Exec(path string, args ...string) driver.OpenFunc {
	return func(ctx context.Context, runnerID int) (driver.ExecutionContext, error) {
		return DialExec(ctx, path, args, runnerID)
	}
}
