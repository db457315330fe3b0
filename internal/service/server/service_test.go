package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/alarm-monitor/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// fixedState is a StateReader returning a preset snapshot.
type fixedState struct {
	snapshot *domain.Snapshot
}

func (f *fixedState) Snapshot() *domain.Snapshot {
	return f.snapshot.Clone()
}

// TestService_SendAction verifies actions reach every inbox and STOP is refused.
func TestService_SendAction(t *testing.T) {
	t.Parallel()

	b := bus.NewBroadcaster()
	monitorInbox := b.Register("monitor")
	keypadInbox := b.Register("keypad")

	s := newService(b, &fixedState{})

	require.NoError(t, s.SendAction(context.Background(), domain.ActionArmStay))
	require.ErrorIs(t, s.SendAction(context.Background(), domain.ActionStop), api.ErrStopReserved)

	for _, inbox := range []*bus.Inbox{monitorInbox, keypadInbox} {
		action, ok := inbox.TryReceive()
		require.True(t, ok)
		require.Equal(t, domain.ActionArmStay, action)

		_, ok = inbox.TryReceive()
		require.False(t, ok)
	}
}

// TestService_GetState returns copies of the monitor snapshot.
func TestService_GetState(t *testing.T) {
	t.Parallel()

	snapshot := &domain.Snapshot{
		Timestamp:       time.Unix(100, 0),
		ArmState:        domain.ArmAway,
		MonitoringState: domain.MonitoringArmed,
		Sensors:         []domain.SensorStatus{{ID: 1, Name: "front-door", Channel: 2}},
	}

	s := newService(bus.NewBroadcaster(), &fixedState{snapshot: snapshot})

	got := s.GetState(context.Background())
	require.Equal(t, snapshot, got)
	require.NotSame(t, snapshot, got)

	require.Nil(t, newService(bus.NewBroadcaster(), &fixedState{}).GetState(context.Background()))
}

// TestResolveListenAddress checks override and port extraction.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("monitor.local:50051", "")
	require.NoError(t, err)
	require.Equal(t, ":50051", addr)

	addr, err = resolveListenAddress("monitor.local:50051", "127.0.0.1:9090")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("monitor.local", "")
	require.Error(t, err)
}

// TestGRPCWorker_ServesUntilCancelled runs the worker over an in-memory listener.
func TestGRPCWorker_ServesUntilCancelled(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 20)
	b := bus.NewBroadcaster()
	inbox := b.Register("monitor")

	grpcServer := grpc.NewServer()
	api.RegisterMonitorServiceServer(grpcServer, api.NewServer(newService(b, &fixedState{
		snapshot: &domain.Snapshot{
			ArmState:        domain.ArmDisarm,
			MonitoringState: domain.MonitoringReady,
		},
	})))

	worker := newGRPCWorker(grpcServer, lis)
	require.Equal(t, grpcWorkerName, worker.Name())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- worker.Run(ctx) }()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	client := api.NewMonitorServiceClient(conn)

	_, err = client.SendAction(ctx, wrapperspb.String("arm_away"))
	require.NoError(t, err)

	action, ok := inbox.TryReceive()
	require.True(t, ok)
	require.Equal(t, domain.ActionArmAway, action)

	payload, err := client.GetState(ctx, &emptypb.Empty{})
	require.NoError(t, err)

	state, err := api.StructToSnapshot(payload)
	require.NoError(t, err)
	require.Equal(t, domain.MonitoringReady, state.MonitoringState)

	cancel()
	require.NoError(t, <-done)
}
