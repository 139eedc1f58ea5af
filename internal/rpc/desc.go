package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// server is what RegisterService checks the implementation against.
type server interface {
	Status(context.Context, *Empty) (*StatusResponse, error)
	Watch(*WatchRequest, grpc.ServerStream) error
}

func unary[Req, Resp any](name string, fn func(*Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Service)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPath(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*Req))
			})
		},
	}
}

func methodPath(name string) string { return "/" + ServiceName + "/" + name }

var watchStream = grpc.StreamDesc{
	StreamName:    "Watch",
	ServerStreams: true,
	Handler: func(srv any, stream grpc.ServerStream) error {
		in := new(WatchRequest)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return srv.(*Service).Watch(in, stream)
	},
}

// serviceDesc describes the ClipStack service by hand, in place of
// generated code.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*server)(nil),
	Methods: []grpc.MethodDesc{
		unary("Copy", (*Service).Copy),
		unary("Paste", (*Service).Paste),
		unary("History", (*Service).History),
		unary("Pin", (*Service).Pin),
		unary("Edit", (*Service).Edit),
		unary("Delete", (*Service).Delete),
		unary("Clear", (*Service).Clear),
		unary("Collections", (*Service).Collections),
		unary("CollectionEdit", (*Service).CollectionEdit),
		unary("StackActivate", (*Service).StackActivate),
		unary("StackNext", (*Service).StackNext),
		unary("StackSkip", (*Service).StackSkip),
		unary("StackCancel", (*Service).StackCancel),
		unary("StackStatus", (*Service).StackStatus),
		unary("Status", (*Service).Status),
	},
	Streams:  []grpc.StreamDesc{watchStream},
	Metadata: "clipstack/v1/clipstack.json",
}

// Register adds svc to a gRPC server.
func Register(s grpc.ServiceRegistrar, svc *Service) {
	s.RegisterService(&serviceDesc, svc)
}
