package checker

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/oshokin/alarm-monitor/internal/config"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
	"github.com/oshokin/alarm-monitor/internal/service/common"
)

// Options controls the checker polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between state checks.
	PollInterval time.Duration
	// Output receives the status line; used by Status only.
	Output io.Writer
}

// DefaultPollInterval defines the polling interval for state checks.
const DefaultPollInterval = 2 * time.Second

// stateReader is the part of common.Client the commands need.
type stateReader interface {
	GetState(ctx context.Context) (*domain.Snapshot, error)
}

// Status prints the current daemon state once.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-ctl")

	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	return printState(ctx, client, opts.Output)
}

// Watch polls the daemon and logs every state change until ctx is cancelled.
func Watch(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-ctl")

	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	return watch(ctx, client, opts.PollInterval)
}

// connect loads the settings and dials the daemon.
func connect(ctx context.Context, opts *Options) (*common.Client, error) {
	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	logger.DebugKV(ctx, "Connected to daemon", "server_address", serverAddress)

	return client, nil
}

func printState(ctx context.Context, client stateReader, out io.Writer) error {
	snapshot, err := client.GetState(ctx)
	if err != nil {
		return err
	}

	if out == nil {
		logger.Info(ctx, common.FormatSnapshot(snapshot))

		return nil
	}

	if _, err = fmt.Fprintln(out, common.FormatSnapshot(snapshot)); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	return nil
}

// watch logs the first snapshot and then every change. Poll failures are
// logged and retried at the next tick.
func watch(ctx context.Context, client stateReader, interval time.Duration) error {
	// Use default polling interval when not overridden.
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	logger.InfoKV(ctx, "Watching daemon state", "interval", interval.String())

	var last *domain.Snapshot

	check := func() {
		snapshot, err := client.GetState(ctx)
		if err != nil {
			logger.ErrorKV(ctx, "Check state failed", "error", err)

			return
		}

		if changed(last, snapshot) {
			logger.Infof(ctx, "State: %s", common.FormatSnapshot(snapshot))
		}

		last = snapshot
	}

	check()

	// Setup polling ticker with fixed interval.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Main polling loop until context cancellation.
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
			check()
		}
	}
}

// changed ignores the timestamp, which moves on every tick.
func changed(previous, current *domain.Snapshot) bool {
	if previous == nil || current == nil {
		return previous != current
	}

	return previous.ArmState != current.ArmState ||
		previous.MonitoringState != current.MonitoringState ||
		previous.SensorsAlerting != current.SensorsAlerting ||
		previous.SyrenOn != current.SyrenOn ||
		!slices.Equal(previous.Sensors, current.Sensors)
}
