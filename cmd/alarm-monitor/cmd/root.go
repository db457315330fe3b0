package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-monitor/internal/config"
	"github.com/oshokin/alarm-monitor/internal/service/server"
	"github.com/oshokin/alarm-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// databasePath overrides the SQLite file from the configuration.
	databasePath string

	// rootCmd represents the base command for running the monitoring daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-monitor [listen-address]",
		Short: "Run the premises security monitoring daemon.",
		Long: `Starts the monitoring daemon: it samples the sensor channels, tracks the arm
and monitoring state, escalates alerts after the zone delays and hands fired
escalations to the notifier.

Only the port from server_addr config is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:50051).
SIGINT and SIGTERM stop every worker gracefully.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				DatabasePath:  databasePath,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&databasePath, "database", "d", "", "path to the SQLite database, overrides the configuration")
}
