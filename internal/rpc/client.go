// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/driver"
	"github.com/nunit/v2driver/internal/filter"
	"github.com/nunit/v2driver/internal/legacy"
	"github.com/nunit/v2driver/internal/logging"
	"github.com/nunit/v2driver/shutil"
)

// exitTimeout is how long Close waits for an engine process to exit after
// its stdin is closed before sending SIGTERM.
const exitTimeout = 10 * time.Second

// Client talks to an engine served by ServeEngine. It implements
// driver.ExecutionContext.
type Client struct {
	conn *grpc.ClientConn
	// clean is called on closing the client. For an engine process, it waits
	// for the process to exit.
	clean func(context.Context) error
}

var _ driver.ExecutionContext = (*Client)(nil)

// NewClient establishes a connection to an engine served on r/w and opens
// an execution context for runnerID there.
func NewClient(ctx context.Context, r io.Reader, w io.Writer, runnerID int) (*Client, error) {
	return newClient(ctx, r, w, runnerID, func(context.Context) error { return nil })
}

// newClient is NewClient with a clean function.
//
// When this function succeeds, clean is called in Client.Close. Otherwise it is called
// before this function returns.
func newClient(ctx context.Context, r io.Reader, w io.Writer, runnerID int, clean func(context.Context) error) (_ *Client, retErr error) {
	defer func() {
		if retErr != nil {
			clean(ctx)
		}
	}()

	if err := sendHandshakeRequest(w, runnerID); err != nil {
		return nil, err
	}
	if err := receiveHandshakeResponse(r); err != nil {
		return nil, err
	}

	conn, err := NewPipeClientConn(ctx, r, w)
	if err != nil {
		return nil, errors.Wrap(err, "failed to establish RPC connection")
	}
	return &Client{conn: conn, clean: clean}, nil
}

// DialExec starts the engine executable at path with args and connects to
// it over its stdin and stdout. The executable is expected to call
// ServeEngine. Its stderr is passed through.
func DialExec(ctx context.Context, path string, args []string, runnerID int) (*Client, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	logging.Debug(ctx, "Starting engine: ", shutil.EscapeSlice(cmd.Args))
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start engine %s", path)
	}
	logging.Debugf(ctx, "Engine process %d started", cmd.Process.Pid)

	return newClient(ctx, stdout, stdin, runnerID, func(ctx context.Context) error {
		stdin.Close()
		return waitProcess(ctx, cmd)
	})
}

// waitProcess waits for cmd to exit, terminating it if it does not exit
// within exitTimeout.
func waitProcess(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(exitTimeout):
	case <-ctx.Done():
	}
	logging.Infof(ctx, "Engine process %d did not exit; terminating it", cmd.Process.Pid)
	if err := cmd.Process.Signal(unix.SIGTERM); err != nil {
		return errors.Wrap(err, "failed to terminate engine")
	}
	return <-done
}

// Close closes the connection and releases the engine.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if err := c.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.clean(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// remoteError converts an error returned by the engine service to an error
// carrying the original message.
func remoteError(err error) error {
	if s, ok := status.FromError(err); ok {
		return errors.New(s.Message())
	}
	return err
}

func (c *Client) Load(ctx context.Context, path string, settings map[string]interface{}) (*legacy.LoadResult, error) {
	st, err := settingsToStruct(ctx, settings)
	if err != nil {
		return nil, err
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"path":     structpb.NewStringValue(path),
		"settings": structpb.NewStructValue(st),
	}}
	res := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, fullMethod("Load"), req, res); err != nil {
		return nil, remoteError(err)
	}
	m := res.AsMap()
	found, _ := m["found"].(bool)
	return &legacy.LoadResult{Found: found, Tree: stringOf(m["tree"])}, nil
}

func (c *Client) CountTestCases(ctx context.Context, f *filter.Node) (int, error) {
	req, err := filterToStruct(f)
	if err != nil {
		return 0, err
	}
	res := &wrapperspb.Int64Value{}
	if err := c.conn.Invoke(ctx, fullMethod("CountTestCases"), req, res); err != nil {
		return 0, remoteError(err)
	}
	return int(res.GetValue()), nil
}

func (c *Client) Explore(ctx context.Context, f *filter.Node) (string, error) {
	req, err := filterToStruct(f)
	if err != nil {
		return "", err
	}
	res := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(ctx, fullMethod("Explore"), req, res); err != nil {
		return "", remoteError(err)
	}
	return res.GetValue(), nil
}

func (c *Client) CancelRun(ctx context.Context, force bool) error {
	if err := c.conn.Invoke(ctx, fullMethod("CancelRun"), wrapperspb.Bool(force), &emptypb.Empty{}); err != nil {
		return remoteError(err)
	}
	return nil
}

// Run runs tests in the engine, passing its events to l in order, and
// returns the final report.
func (c *Client) Run(ctx context.Context, l legacy.EventListener, f *filter.Node) (string, error) {
	req, err := filterToStruct(f)
	if err != nil {
		return "", err
	}

	// Cancelling ctx releases the stream if we return before reading it to
	// the end.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &engineServiceDesc.Streams[0], fullMethod("Run"))
	if err != nil {
		return "", remoteError(err)
	}
	if err := stream.SendMsg(req); err != nil {
		return "", remoteError(err)
	}
	if err := stream.CloseSend(); err != nil {
		return "", err
	}

	for {
		ev := &structpb.Struct{}
		if err := stream.RecvMsg(ev); err == io.EOF {
			return "", errors.New("engine ended the run without a report")
		} else if err != nil {
			return "", remoteError(err)
		}
		m := ev.AsMap()
		kind := stringOf(m["kind"])
		if kind == eventReport {
			// Read up to the end of the stream so the call completes.
			for stream.RecvMsg(&structpb.Struct{}) == nil {
			}
			return stringOf(m["report"]), nil
		}
		if err := dispatch(l, kind, m); err != nil {
			return "", err
		}
	}
}

// dispatch passes an event received from the Run stream to l.
func dispatch(l legacy.EventListener, kind string, m map[string]interface{}) error {
	name, _ := m["name"].(map[string]interface{})
	result, _ := m["result"].(map[string]interface{})
	switch kind {
	case eventRunStarted:
		l.RunStarted(stringOf(m["name"]), intOf(m["testCount"]))
	case eventRunFinished:
		var res *legacy.TestResult
		if result != nil {
			res = testResultFromMap(result)
		}
		var runErr error
		if msg := stringOf(m["error"]); msg != "" {
			runErr = errors.New(msg)
		}
		l.RunFinished(res, runErr)
	case eventSuiteStarted:
		l.SuiteStarted(testNameFromMap(name))
	case eventSuiteFinished:
		l.SuiteFinished(testResultFromMap(result))
	case eventTestStarted:
		l.TestStarted(testNameFromMap(name))
	case eventTestFinished:
		l.TestFinished(testResultFromMap(result))
	default:
		return errors.Errorf("unknown engine event %q", kind)
	}
	return nil
}
