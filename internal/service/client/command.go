package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-monitor/internal/config"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
	"github.com/oshokin/alarm-monitor/internal/service/common"
)

// Options configures alarm-ctl send.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Action is the action name, e.g. "arm-away" or "update_config".
	Action string

	// RetryInterval is the delay between attempts; defaults to DefaultPushInterval.
	RetryInterval time.Duration
}

// DefaultPushInterval defines retry delay when pushing an action to the daemon.
const DefaultPushInterval = 1 * time.Second

// monitorClient is the part of common.Client the command needs.
type monitorClient interface {
	SendAction(ctx context.Context, actor *domain.Actor, action domain.Action) error
	GetState(ctx context.Context) (*domain.Snapshot, error)
}

// Run submits the action, retrying until the daemon confirms it or ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-ctl")

	// Validate the action before touching the network.
	action, err := domain.ParseAction(opts.Action)
	if err != nil {
		return err
	}

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	// Connect to the daemon with timeout from config.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Pushing action", "server_address", serverAddress, "action", action)

	return push(ctx, client, actor, action, opts.RetryInterval)
}

// push sends action once and, for arm state changes, waits for confirmation.
// Transport failures are retried; rejected actions are returned as errors.
//
//nolint:cyclop // Retry flow reads best in one place.
func push(
	ctx context.Context,
	client monitorClient,
	actor *domain.Actor,
	action domain.Action,
	interval time.Duration,
) error {
	if interval <= 0 {
		interval = DefaultPushInterval
	}

	desired, confirm := action.ArmState()
	sent := false

	// attempt tries once to make progress, returns (completed, error).
	attempt := func() (bool, error) {
		if !sent {
			if err := client.SendAction(ctx, actor, action); err != nil {
				if status.Code(err) == codes.InvalidArgument {
					return false, fmt.Errorf("action rejected: %w", err)
				}

				// Log error but continue retrying for transient failures.
				logger.ErrorKV(ctx, "SendAction failed", "error", err)

				return false, nil
			}

			sent = true

			if !confirm {
				logger.InfoKV(ctx, "Action submitted", "action", action)

				return true, nil
			}
		}

		snapshot, err := client.GetState(ctx)
		if err != nil {
			logger.ErrorKV(ctx, "GetState failed", "error", err)

			return false, nil
		}

		// Check if the daemon reached the requested arm state.
		if snapshot.ArmState == desired {
			logger.Infof(ctx, "Action confirmed: %s", common.FormatSnapshot(snapshot))

			return true, nil
		}

		return false, nil
	}

	// Attempt immediately before starting retry loop.
	if done, err := attempt(); err != nil {
		return err
	} else if done {
		return nil
	}

	// Setup retry timer for subsequent attempts.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Retry loop until success or cancellation.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil {
				return err
			}

			if done {
				return nil
			}
		}
	}
}
