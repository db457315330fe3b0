package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-monitor/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-monitor/internal/bus"
	"github.com/oshokin/alarm-monitor/internal/config"
	"github.com/oshokin/alarm-monitor/internal/hardware/keypad"
	"github.com/oshokin/alarm-monitor/internal/hardware/sensor"
	"github.com/oshokin/alarm-monitor/internal/layoutwatch"
	"github.com/oshokin/alarm-monitor/internal/logger"
	"github.com/oshokin/alarm-monitor/internal/metrics"
	"github.com/oshokin/alarm-monitor/internal/monitor"
	"github.com/oshokin/alarm-monitor/internal/notify"
	"github.com/oshokin/alarm-monitor/internal/pidfile"
	"github.com/oshokin/alarm-monitor/internal/repository/layout"
	"github.com/oshokin/alarm-monitor/internal/repository/store"
	"github.com/oshokin/alarm-monitor/internal/supervisor"
	"github.com/oshokin/alarm-monitor/internal/version"
)

// Options controls the alarm-monitor process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// DatabasePath overrides the SQLite file from the settings.
	DatabasePath string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts every daemon worker and blocks until the supervisor stops them.
// It returns an error when startup fails or a worker crashed.
//
//nolint:cyclop,funlen // Startup wiring is a flat sequence of steps.
func Run(ctx context.Context, opts *Options) error {
	// Load configuration first to get logging and server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	closeLog, err := logger.Setup(settings.LogLevel, settings.LogFile)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	defer closeLog()

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-monitor")

	// Refuse to start next to a live daemon.
	pid, err := pidfile.Acquire(settings.PIDFile)
	if err != nil {
		return fmt.Errorf("acquire pid file: %w", err)
	}

	defer func() {
		if err := pid.Release(); err != nil {
			logger.ErrorKV(ctx, "Failed to remove PID file", "path", pid.Path(), "error", err)
		}
	}()

	// Use DatabasePath from config unless overridden by command line option.
	databasePath := settings.DatabasePath
	if opts.DatabasePath != "" {
		databasePath = opts.DatabasePath
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	// Open the store holding zones, sensors and alert records.
	db, err := store.NewSQLiteStore(ctx, databasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		if err := db.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close store", "error", err)
		}
	}()

	driver, err := sensor.New(sensor.Options{
		Name:         settings.Sensor.Driver,
		ChannelCount: settings.Sensor.ChannelCount,
		DevicePath:   settings.Sensor.DevicePath,
		Scale:        settings.Sensor.Scale,
	})
	if err != nil {
		return fmt.Errorf("create sensor driver: %w", err)
	}

	broadcaster := bus.NewBroadcaster()
	registry := metrics.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	publishers := []notify.Publisher{notify.LogPublisher{}, recorder}

	var sender notify.Sender = notify.LogSender{}

	// The push channel is optional; without it state and alerts stay in the log.
	if settings.NATSURL != "" {
		var conn *nats.Conn

		conn, err = notify.Connect(settings.NATSURL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}

		defer conn.Close()

		publishers = append(publishers, notify.NewNATSPublisher(conn))
		sender = notify.NewNATSSender(conn, settings.Notify.Subject)

		logger.InfoKV(ctx, "Push channel enabled", "url", settings.NATSURL, "subject", settings.Notify.Subject)
	}

	dispatcher := notify.NewDispatcher(
		broadcaster.Register("notifier"),
		sender,
		notify.RetryPolicy{
			MaxAttempts:     settings.Notify.MaxAttempts,
			InitialInterval: settings.Notify.InitialInterval,
			MaxInterval:     settings.Notify.MaxInterval,
		},
		notify.DefaultQueueSize,
	)
	dispatcher.OnResult(recorder.NotificationResult)

	mon, err := monitor.New(monitor.Options{
		Inbox:          broadcaster.Register("monitor"),
		Driver:         driver,
		Store:          db,
		Publisher:      notify.NewFanout(publishers...),
		Actuator:       notify.NewAlarmActuator(dispatcher),
		Observer:       recorder,
		Layout:         layoutSource(settings.LayoutFile),
		Tolerance:      settings.Tolerance,
		SampleInterval: settings.SampleInterval(),
	})
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}

	workers := []supervisor.Worker{mon, dispatcher}

	pad, err := keypad.New(settings.Keypad.Driver)
	if err != nil {
		return fmt.Errorf("create keypad: %w", err)
	}

	if pad != nil {
		workers = append(workers, keypad.NewWorker(pad, broadcaster.Register("keypad"), broadcaster, settings.Keypad.Codes))
	}

	if settings.LayoutFile != "" {
		var watcher *layoutwatch.Watcher

		watcher, err = layoutwatch.New(
			settings.LayoutFile,
			broadcaster.Register("config-watcher"),
			broadcaster,
			layoutwatch.DefaultDebounce,
		)
		if err != nil {
			return fmt.Errorf("create layout watcher: %w", err)
		}

		workers = append(workers, watcher)
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	// Create and configure gRPC server with the command service.
	grpcServer := grpc.NewServer()
	api.RegisterMonitorServiceServer(grpcServer, api.NewServer(newService(broadcaster, mon)))

	workers = append(workers, supervisor.StopOnAction(
		broadcaster.Register(grpcWorkerName),
		newGRPCWorker(grpcServer, lis),
	))

	if settings.MetricsAddress != "" {
		var metricsServer *metrics.Server

		metricsServer, err = metrics.NewServer(settings.MetricsAddress, registry)
		if err != nil {
			_ = lis.Close()

			return fmt.Errorf("create metrics server: %w", err)
		}

		workers = append(workers, supervisor.StopOnAction(broadcaster.Register(metricsServer.Name()), metricsServer))
	}

	logger.InfoKV(ctx, "Alarm monitor starting",
		"version", version.Short(),
		"commit", version.Commit,
		"listen_address", listenAddress,
		"database", databasePath,
		"sensor_driver", settings.Sensor.Driver,
		"inboxes", broadcaster.Inboxes(),
	)

	return supervisor.New(broadcaster, supervisor.Options{}, workers...).Run(ctx)
}

// layoutSource loads the layout file at every configuration load.
// An empty path leaves the store as the only source of sensors.
func layoutSource(path string) monitor.LayoutSource {
	if path == "" {
		return nil
	}

	return func(context.Context) (*layout.Layout, error) {
		return layout.Load(path)
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	// Extract port from config address (e.g., "monitor.local:50051" -> ":50051").
	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Parse the address to extract port.
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
