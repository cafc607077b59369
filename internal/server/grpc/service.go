package grpc

import (
	"context"

	pb "github.com/dmitrijs2005/saveme/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// handlerFunc serves one method. The returned value is encoded with pb.Encode.
type handlerFunc func(s *Server, ctx context.Context, in *structpb.Struct) (any, error)

// vaultServer is the HandlerType of the service.
type vaultServer interface {
	dispatch(ctx context.Context, h handlerFunc, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: pb.ServiceName,
	HandlerType: (*vaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(pb.MethodPing, handle((*Server).ping)),
		unary(pb.MethodRegister, handle((*Server).register)),
		unary(pb.MethodLogin, handle((*Server).login)),
		unary(pb.MethodLock, handle((*Server).lock)),
		unary(pb.MethodSessionExpired, handle((*Server).sessionExpired)),
		unary(pb.MethodAddFile, handle((*Server).addFile)),
		unary(pb.MethodListFiles, handle((*Server).listFiles)),
		unary(pb.MethodDeleteFile, handle((*Server).deleteFile)),
		unary(pb.MethodRevealFile, handle((*Server).revealFile)),
		unary(pb.MethodShare, handle((*Server).share)),
		unary(pb.MethodInbox, handle((*Server).inbox)),
		unary(pb.MethodSent, handle((*Server).sent)),
		unary(pb.MethodView, handle((*Server).view)),
		unary(pb.MethodDeleteShare, handle((*Server).deleteShare)),
		unary(pb.MethodAccessLog, handle((*Server).accessLog)),
		unary(pb.MethodSweep, handle((*Server).sweep)),
		unary(pb.MethodWipe, handle((*Server).wipe)),
		unary(pb.MethodExport, handle((*Server).export)),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "saveme/vault",
}

func unary(name string, h handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				return srv.(vaultServer).dispatch(ctx, h, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pb.FullMethod(name)}
			return interceptor(ctx, in, info, call)
		},
	}
}

// handle decodes the request into Req before calling fn.
func handle[Req any](fn func(s *Server, ctx context.Context, req *Req) (any, error)) handlerFunc {
	return func(s *Server, ctx context.Context, in *structpb.Struct) (any, error) {
		req := new(Req)
		if err := pb.Decode(in, req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return fn(s, ctx, req)
	}
}

func (s *Server) dispatch(ctx context.Context, h handlerFunc, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := h(s, ctx, in)
	if err != nil {
		if _, ok := status.FromError(err); !ok {
			s.logger.Warn(ctx, "call failed", "error", err)
		}
		return nil, pb.StatusFromError(err)
	}
	resp, err := pb.Encode(out)
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}
