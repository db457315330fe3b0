//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/alarm-monitor/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-monitor/internal/config"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// Client wraps the MonitorService gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the monitor daemon.
	conn *grpc.ClientConn
	// api is the MonitorService client.
	api *api.MonitorServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
)

// Dial establishes a gRPC connection to the monitor daemon.
// Note: this uses insecure transport credentials; the daemon listens on
// localhost by default.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial monitor: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewMonitorServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// SendAction submits an action on behalf of actor.
func (c *Client) SendAction(ctx context.Context, actor *domain.Actor, action domain.Action) error {
	if actor == nil {
		return errActorRequired
	}

	callCtx, cancel := c.callContext(api.WithActor(ctx, actor))
	defer cancel()

	if _, err := c.api.SendAction(callCtx, wrapperspb.String(string(action))); err != nil {
		return fmt.Errorf("send action %s: %w", action, err)
	}

	return nil
}

// GetState retrieves the current state snapshot.
func (c *Client) GetState(ctx context.Context) (*domain.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	payload, err := c.api.GetState(callCtx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	snapshot, err := api.StructToSnapshot(payload)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return snapshot, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
