// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nunit/v2driver/errors"
)

// pipeAddr is reported as both ends of a pipe connection.
var pipeAddr = &net.IPAddr{IP: net.IPv4zero}

// pipeConn is a net.Conn reading from r and writing to w. Deadlines are not
// supported.
type pipeConn struct {
	io.Reader
	io.Writer

	once    sync.Once
	onClose func() // may be nil
}

func (c *pipeConn) Close() error {
	closed := false
	c.once.Do(func() {
		closed = true
		if c.onClose != nil {
			c.onClose()
		}
	})
	if !closed {
		return errors.New("pipe connection already closed")
	}
	return nil
}

func (c *pipeConn) LocalAddr() net.Addr  { return pipeAddr }
func (c *pipeConn) RemoteAddr() net.Addr { return pipeAddr }

func (c *pipeConn) SetDeadline(time.Time) error      { return errors.New("deadlines not supported on pipes") }
func (c *pipeConn) SetReadDeadline(time.Time) error  { return c.SetDeadline(time.Time{}) }
func (c *pipeConn) SetWriteDeadline(time.Time) error { return c.SetDeadline(time.Time{}) }

var _ net.Conn = (*pipeConn)(nil)

// PipeListener is a net.Listener serving a single connection made of an
// io.Reader and an io.Writer. The first Accept returns the connection; once
// it is closed, Accept returns io.EOF.
type PipeListener struct {
	conns chan net.Conn
}

var _ net.Listener = (*PipeListener)(nil)

// NewPipeListener returns a PipeListener for the connection made of r and w.
func NewPipeListener(r io.Reader, w io.Writer) *PipeListener {
	l := &PipeListener{conns: make(chan net.Conn, 1)}
	l.conns <- &pipeConn{Reader: r, Writer: w, onClose: func() { close(l.conns) }}
	return l
}

func (l *PipeListener) Accept() (net.Conn, error) {
	if c, ok := <-l.conns; ok {
		return c, nil
	}
	return nil, io.EOF
}

// Close does nothing; the listener ends when its connection is closed.
func (l *PipeListener) Close() error { return nil }

func (l *PipeListener) Addr() net.Addr { return pipeAddr }

// NewPipeClientConn returns a gRPC client connection whose transport reads
// from r and writes to w.
func NewPipeClientConn(ctx context.Context, r io.Reader, w io.Writer, extraOpts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dial := func(context.Context, string) (net.Conn, error) {
		return &pipeConn{Reader: r, Writer: w}, nil
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dial),
	}
	return grpc.DialContext(ctx, "", append(opts, extraOpts...)...)
}
