// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "v2driver.Engine"

// Kinds of messages streamed by the Run method.
const (
	eventRunStarted    = "runStarted"
	eventRunFinished   = "runFinished"
	eventSuiteStarted  = "suiteStarted"
	eventSuiteFinished = "suiteFinished"
	eventTestStarted   = "testStarted"
	eventTestFinished  = "testFinished"
	eventReport        = "report"
)

// engineServer is implemented by the server side of the engine service.
type engineServer interface {
	Load(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CountTestCases(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error)
	Explore(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	CancelRun(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error)
	Run(req *structpb.Struct, stream grpc.ServerStream) error
}

// engineServiceDesc describes the engine service. Messages are well-known
// protobuf types, so no generated code is needed.
var engineServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*engineServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Load", engineServer.Load),
		unaryMethod("CountTestCases", engineServer.CountTestCases),
		unaryMethod("Explore", engineServer.Explore),
		unaryMethod("CancelRun", engineServer.CancelRun),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Run",
		ServerStreams: true,
		Handler: func(srv interface{}, stream grpc.ServerStream) error {
			req := &structpb.Struct{}
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			return srv.(engineServer).Run(req, stream)
		},
	}},
}

// fullMethod returns the gRPC method path of name.
func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func unaryMethod[Req, Res any](name string, call func(engineServer, context.Context, *Req) (Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(engineServer)
			if interceptor == nil {
				return call(s, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, req, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}
