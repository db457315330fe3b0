package alarm

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "alarm.monitor.v1.MonitorService"
	// SendActionMethod is the full method name of SendAction.
	SendActionMethod = "/" + ServiceName + "/SendAction"
	// GetStateMethod is the full method name of GetState.
	GetStateMethod = "/" + ServiceName + "/GetState"
)

// MonitorServiceServer is the server API of the MonitorService.
type MonitorServiceServer interface {
	SendAction(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
	GetState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the MonitorService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // grpc expects a package-level descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MonitorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendAction",
			Handler:    sendActionHandler,
		},
		{
			MethodName: "GetState",
			Handler:    getStateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "alarm/monitor/v1/monitor.proto",
}

// RegisterMonitorServiceServer registers srv on registrar.
func RegisterMonitorServiceServer(registrar grpc.ServiceRegistrar, srv MonitorServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

//nolint:forcetypeassert // The descriptor guarantees the handler type.
func sendActionHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(MonitorServiceServer).SendAction(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendActionMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MonitorServiceServer).SendAction(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

//nolint:forcetypeassert // The descriptor guarantees the handler type.
func getStateHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(MonitorServiceServer).GetState(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStateMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MonitorServiceServer).GetState(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// MonitorServiceClient is the client API of the MonitorService.
type MonitorServiceClient struct {
	// cc carries the calls.
	cc grpc.ClientConnInterface
}

// NewMonitorServiceClient wraps a client connection.
func NewMonitorServiceClient(cc grpc.ClientConnInterface) *MonitorServiceClient {
	return &MonitorServiceClient{cc: cc}
}

// SendAction submits an action by name.
func (c *MonitorServiceClient) SendAction(
	ctx context.Context,
	in *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, SendActionMethod, in, out, opts...); err != nil {
		return nil, fmt.Errorf("invoke %s: %w", SendActionMethod, err)
	}

	return out, nil
}

// GetState fetches the current state snapshot.
func (c *MonitorServiceClient) GetState(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStateMethod, in, out, opts...); err != nil {
		return nil, fmt.Errorf("invoke %s: %w", GetStateMethod, err)
	}

	return out, nil
}
