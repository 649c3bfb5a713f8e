// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"context"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/driver"
	"github.com/nunit/v2driver/internal/legacy"
	"github.com/nunit/v2driver/internal/logging"
)

// ServeEngine runs the engine service on r/w. It first reads the runner id
// sent by NewClient and opens an execution context with open, then serves
// gRPC requests until the client closes the connection or ctx is done.
//
// Logs emitted while handling requests are sent to the logger attached to
// ctx.
func ServeEngine(ctx context.Context, r io.Reader, w io.Writer, open driver.OpenFunc) error {
	ec, err := handshake(ctx, r, w, open)
	if err != nil {
		return err
	}
	defer ec.Close(ctx)

	srv := grpc.NewServer(serverOpts(ctx)...)
	srv.RegisterService(&engineServiceDesc, &engineService{ec: ec})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			srv.Stop()
		case <-done:
		}
	}()

	if err := srv.Serve(NewPipeListener(r, w)); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// handshake receives the runner id and replies with the result of opening
// the execution context. An empty reply means success.
func handshake(ctx context.Context, r io.Reader, w io.Writer, open driver.OpenFunc) (driver.ExecutionContext, error) {
	runnerID, err := receiveHandshakeRequest(r)
	if err != nil {
		return nil, err
	}
	ec, openErr := open(ctx, runnerID)
	if err := sendHandshakeResponse(w, openErr); err != nil {
		if ec != nil {
			ec.Close(ctx)
		}
		return nil, err
	}
	if openErr != nil {
		return nil, openErr
	}
	logging.Debugf(ctx, "Engine opened for runner %d", runnerID)
	return ec, nil
}

// serverStreamWithContext wraps grpc.ServerStream with overriding Context.
type serverStreamWithContext struct {
	grpc.ServerStream
	ctx context.Context
}

// Context overrides grpc.ServerStream.Context.
func (s *serverStreamWithContext) Context() context.Context {
	return s.ctx
}

var _ grpc.ServerStream = (*serverStreamWithContext)(nil)

// serverOpts returns gRPC server-side interceptors that send logs of request
// contexts to the logger of base, if it has one.
func serverOpts(base context.Context) []grpc.ServerOption {
	if !logging.HasLogger(base) {
		return nil
	}
	logger := logging.NewFuncLogger(func(level logging.Level, ts time.Time, msg string) {
		if level == logging.LevelDebug {
			logging.Debug(base, msg)
		} else {
			logging.Info(base, msg)
		}
	})
	before := func(ctx context.Context, method string) context.Context {
		ctx = logging.AttachLoggerNoPropagation(ctx, logger)
		logging.Debug(ctx, "Engine request ", method)
		return ctx
	}

	return []grpc.ServerOption{
		grpc.UnaryInterceptor(func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			return handler(before(ctx, info.FullMethod), req)
		}),
		grpc.StreamInterceptor(func(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			ctx := before(stream.Context(), info.FullMethod)
			return handler(srv, &serverStreamWithContext{stream, ctx})
		}),
	}
}

// engineService exposes an ExecutionContext as the engine service.
type engineService struct {
	ec driver.ExecutionContext
}

var _ engineServer = (*engineService)(nil)

func (s *engineService) Load(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	settings, err := settingsFromStruct(req.GetFields()["settings"].GetStructValue())
	if err != nil {
		return nil, err
	}
	res, err := s.ec.Load(ctx, req.GetFields()["path"].GetStringValue(), settings)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{
		"found": res.Found,
		"tree":  res.Tree,
	})
}

func (s *engineService) CountTestCases(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	f, err := filterFromStruct(req)
	if err != nil {
		return nil, err
	}
	n, err := s.ec.CountTestCases(ctx, f)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *engineService) Explore(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	f, err := filterFromStruct(req)
	if err != nil {
		return nil, err
	}
	tree, err := s.ec.Explore(ctx, f)
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(tree), nil
}

func (s *engineService) CancelRun(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	if err := s.ec.CancelRun(ctx, req.GetValue()); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *engineService) Run(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	f, err := filterFromStruct(req)
	if err != nil {
		return err
	}
	l := &streamListener{stream: stream}
	rep, err := s.ec.Run(ctx, l, f)
	if err != nil {
		return err
	}
	if err := l.err(); err != nil {
		return errors.Wrap(err, "failed to stream events")
	}
	return l.send(map[string]interface{}{"kind": eventReport, "report": rep})
}

// streamListener sends engine events to a Run stream. The first send error
// is kept and later events are dropped.
type streamListener struct {
	stream grpc.ServerStream

	mu      sync.Mutex
	sendErr error
}

var _ legacy.EventListener = (*streamListener)(nil)

func (l *streamListener) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sendErr
}

func (l *streamListener) send(ev map[string]interface{}) error {
	st, err := structpb.NewStruct(ev)
	if err != nil {
		return err
	}
	return l.stream.SendMsg(st)
}

func (l *streamListener) emit(ev map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return
	}
	l.sendErr = l.send(ev)
}

func (l *streamListener) RunStarted(name string, testCount int) {
	l.emit(map[string]interface{}{"kind": eventRunStarted, "name": name, "testCount": float64(testCount)})
}

func (l *streamListener) RunFinished(result *legacy.TestResult, err error) {
	ev := map[string]interface{}{"kind": eventRunFinished}
	if result != nil {
		ev["result"] = testResultToMap(result)
	}
	if err != nil {
		ev["error"] = err.Error()
	}
	l.emit(ev)
}

func (l *streamListener) SuiteStarted(n legacy.TestName) {
	l.emit(map[string]interface{}{"kind": eventSuiteStarted, "name": testNameToMap(n)})
}

func (l *streamListener) SuiteFinished(r *legacy.TestResult) {
	l.emit(map[string]interface{}{"kind": eventSuiteFinished, "result": testResultToMap(r)})
}

func (l *streamListener) TestStarted(n legacy.TestName) {
	l.emit(map[string]interface{}{"kind": eventTestStarted, "name": testNameToMap(n)})
}

func (l *streamListener) TestFinished(r *legacy.TestResult) {
	l.emit(map[string]interface{}{"kind": eventTestFinished, "result": testResultToMap(r)})
}
