// Package grpcsvc serves an Evaluator over gRPC using the dynamic
// descriptors generated by protoreg. No generated Go code is involved: the
// service is registered from a hand-built grpc.ServiceDesc and requests are
// decoded into dynamicpb messages.
package grpcsvc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	v1reflectiongrpc "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/fieldcover/internal/evaluator"
	"github.com/hanpama/fieldcover/internal/field"
	"github.com/hanpama/fieldcover/internal/grpctp"
	"github.com/hanpama/fieldcover/internal/protoreg"
	"github.com/hanpama/fieldcover/internal/provider"
	"github.com/hanpama/fieldcover/internal/reqid"
	"github.com/hanpama/fieldcover/internal/setcover"
)

// Service answers Eval calls with an Evaluator.
type Service struct {
	reg *protoreg.Registry
	ev  *evaluator.Evaluator
}

// evalServer is the handler type of the generated service description.
type evalServer interface {
	eval(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
}

// New pairs descriptors with an Evaluator. Both must describe the same
// universe.
func New(reg *protoreg.Registry, ev *evaluator.Evaluator) (*Service, error) {
	if reg.Universe() != ev.Universe() {
		return nil, errors.New("grpcsvc: descriptors and evaluator use different universes")
	}
	return &Service{reg: reg, ev: ev}, nil
}

// Register adds the service to s.
func (svc *Service) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(svc.Desc(), svc)
}

// Desc returns the service description for the Eval method.
func (svc *Service) Desc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: svc.reg.ServiceName(),
		HandlerType: (*evalServer)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: string(svc.reg.Method().Name()),
			Handler:    handleEval,
		}},
		Metadata: svc.reg.File().Path(),
	}
}

// RegisterReflection exposes the generated descriptors through the gRPC
// server reflection service, so tools like grpcurl can call Eval.
func RegisterReflection(s *grpc.Server, reg *protoreg.Registry) error {
	files := new(protoregistry.Files)
	if err := files.RegisterFile(reg.File()); err != nil {
		return fmt.Errorf("register descriptors: %w", err)
	}
	v1reflectiongrpc.RegisterServerReflectionServer(s, reflection.NewServerV1(reflection.ServerOptions{
		Services:           s,
		DescriptorResolver: files,
	}))
	return nil
}

func handleEval(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	svc := srv.(*Service)
	req := dynamicpb.NewMessage(svc.reg.Method().Input())
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return svc.eval(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: svc.reg.FullMethod()}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return svc.eval(ctx, req.(*dynamicpb.Message))
	})
}

func (svc *Service) eval(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(grpctp.RequestIDHeader); len(ids) > 0 && ids[0] != "" {
			ctx = reqid.WithID(ctx, ids[0])
		}
	}
	ctx, _ = reqid.Ensure(ctx)

	fields, input, err := svc.reg.ReadRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	log := &evaluator.SeqLog{}
	res, err := svc.ev.Eval(ctx, fields, input, log)
	if err != nil {
		return nil, Status(err)
	}
	resp, err := svc.reg.EncodeResponse(res, log.Providers())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// Status converts an evaluation error to a gRPC status error.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}

// Code classifies an evaluation error.
func Code(err error) codes.Code {
	var (
		unknown     *field.UnknownFieldError
		dupQuery    *evaluator.DuplicateQueryFieldError
		uncoverable *setcover.UncoverableTargetError
		unpopulated *evaluator.UnpopulatedFieldError
	)
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.As(err, &unknown), errors.As(err, &dupQuery), errors.Is(err, provider.ErrInvalidInput):
		return codes.InvalidArgument
	case errors.As(err, &uncoverable), errors.As(err, &unpopulated):
		return codes.FailedPrecondition
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}
