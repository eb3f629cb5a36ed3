package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/devghori1264/prodmon/internal/repair"
	"github.com/devghori1264/prodmon/internal/shiftclock"
)

// The Dashboard service carries its payloads as google.protobuf.Struct so no
// generated stubs are needed; field names match the JSON wire format.
const dashboardServiceName = "prodmon.v1.Dashboard"

// DashboardService is the gRPC surface of the coordinator.
type DashboardService interface {
	Ping(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetBoard(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RequestRepair(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AdvanceTicket(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ DashboardService = (*grpcService)(nil)

var dashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: dashboardServiceName,
	HandlerType: (*DashboardService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unaryHandler("Ping", newEmpty, func(s DashboardService, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.Ping(ctx, in.(*emptypb.Empty))
		})},
		{MethodName: "GetBoard", Handler: unaryHandler("GetBoard", newEmpty, func(s DashboardService, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.GetBoard(ctx, in.(*emptypb.Empty))
		})},
		{MethodName: "RequestRepair", Handler: unaryHandler("RequestRepair", newStruct, func(s DashboardService, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.RequestRepair(ctx, in.(*structpb.Struct))
		})},
		{MethodName: "AdvanceTicket", Handler: unaryHandler("AdvanceTicket", newStruct, func(s DashboardService, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.AdvanceTicket(ctx, in.(*structpb.Struct))
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "prodmon/v1/dashboard",
}

func newEmpty() proto.Message  { return new(emptypb.Empty) }
func newStruct() proto.Message { return new(structpb.Struct) }

func fullMethod(name string) string {
	return "/" + dashboardServiceName + "/" + name
}

func unaryHandler(name string, newReq func() proto.Message, call func(DashboardService, context.Context, proto.Message) (proto.Message, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DashboardService), ctx, req.(proto.Message))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		return interceptor(ctx, in, info, handler)
	}
}

// grpcService adapts Server to DashboardService.
type grpcService struct {
	s *Server
}

// RegisterGRPC registers the Dashboard service on gs.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&dashboardServiceDesc, &grpcService{s: s})
}

// Ping handler (for connectivity test)
func (g *grpcService) Ping(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"msg": "pong from prodmon"})
}

func (g *grpcService) GetBoard(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	board, err := g.s.Board(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	reading := shiftclock.At(g.s.now())
	return toStruct(map[string]any{
		"shiftId":   board.ShiftID,
		"remaining": reading.RemainingString(),
		"version":   board.Version,
		"machines":  board.Machines,
		"tickets":   board.Tickets,
	})
}

func (g *grpcService) RequestRepair(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := machineID(in)
	if err != nil {
		return nil, err
	}
	ticket, err := g.s.RequestRepair(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(ticket)
}

func (g *grpcService) AdvanceTicket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["ticketId"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "ticketId required")
	}
	ticket, resolved, err := g.s.AdvanceTicket(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"ticket": ticket, "resolved": resolved})
}

// machineID reads the integral "machineId" field of in.
func machineID(in *structpb.Struct) (int, error) {
	v, ok := in.GetFields()["machineId"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "machineId required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "machineId must be an integer, got %v", v.AsInterface())
	}
	return int(n.NumberValue), nil
}

// toStruct converts any JSON-encodable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// fromStruct decodes a Struct into out through its JSON form.
func fromStruct(in *structpb.Struct, out any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, repair.ErrMachineNotFound), errors.Is(err, repair.ErrTicketNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, repair.ErrMachineNotDown), errors.Is(err, repair.ErrRepairPending),
		errors.Is(err, repair.ErrTicketResolved), errors.Is(err, ErrAlreadyDown):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, fmt.Sprintf("internal: %v", err))
	}
}
