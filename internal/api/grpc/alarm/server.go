package alarm

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

// ErrStopReserved is returned when a client tries to stop the daemon.
var ErrStopReserved = errors.New("stop is reserved for the supervisor")

// Service abstracts the operations the transport layer depends on.
type Service interface {
	// SendAction submits an action to every worker.
	SendAction(ctx context.Context, action domain.Action) error
	// GetState returns the latest state snapshot.
	GetState(ctx context.Context) *domain.Snapshot
}

// Server implements the MonitorService gRPC API.
type Server struct {
	// service provides the business logic.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// SendAction validates an action name and submits it.
// STOP cannot be requested remotely.
func (s *Server) SendAction(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	action, err := domain.ParseAction(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if action == domain.ActionStop {
		return nil, status.Error(codes.InvalidArgument, ErrStopReserved.Error())
	}

	logger.InfoKV(ctx, "Action received", "action", action, "actor", ActorFromIncoming(ctx))

	if err = s.service.SendAction(ctx, action); err != nil {
		return nil, status.Error(codes.Unavailable, "unable to submit action")
	}

	return &emptypb.Empty{}, nil
}

// GetState returns the latest snapshot.
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snapshot := s.service.GetState(ctx)
	if snapshot == nil {
		return nil, status.Error(codes.Unavailable, "state is not available yet")
	}

	result, err := SnapshotToStruct(snapshot)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode state")
	}

	return result, nil
}
