package server

import (
	"context"

	api "github.com/oshokin/alarm-monitor/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

// StateReader exposes the monitor's latest snapshot.
type StateReader interface {
	Snapshot() *domain.Snapshot
}

// service forwards remote commands onto the action bus and answers state
// queries from the monitor snapshot. It is unexported to keep the transport
// decoupled from the implementation.
type service struct {
	// sender copies actions into every worker inbox.
	sender bus.Sender
	// state is read without touching the state machine.
	state StateReader
}

// newService creates a service over the bus and the monitor snapshot.
func newService(sender bus.Sender, state StateReader) *service {
	return &service{
		sender: sender,
		state:  state,
	}
}

// SendAction broadcasts the action. STOP belongs to the supervisor.
func (s *service) SendAction(ctx context.Context, action domain.Action) error {
	if action == domain.ActionStop {
		return api.ErrStopReserved
	}

	s.sender.Send(action)

	logger.InfoKV(ctx, "Action submitted", "action", action)

	return nil
}

// GetState returns the latest snapshot.
func (s *service) GetState(ctx context.Context) *domain.Snapshot {
	snapshot := s.state.Snapshot()
	if snapshot != nil {
		logger.DebugKV(ctx, "State requested",
			"arm_state", snapshot.ArmState,
			"monitoring_state", snapshot.MonitoringState,
		)
	}

	return snapshot
}
