package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-monitor/internal/config"
	"github.com/oshokin/alarm-monitor/internal/service/checker"
	"github.com/oshokin/alarm-monitor/internal/service/client"
	"github.com/oshokin/alarm-monitor/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverAddress overrides the daemon address from the configuration.
	serverAddress string
	// pollInterval is the watch polling period.
	pollInterval time.Duration

	// rootCmd is the control tool entry point.
	rootCmd = &cobra.Command{
		Use:   "alarm-ctl",
		Short: "Control the alarm-monitor daemon.",
		Long: `Sends actions to the alarm-monitor daemon and reports its state.

Server address and call timeout are loaded from the configuration file unless
overridden with --server.`,
	}

	// sendCmd submits one action.
	sendCmd = &cobra.Command{
		Use:   "send <action>",
		Short: "Send an action to the daemon.",
		Long: `Sends arm-away, arm-stay, disarm, update-config or update-keypad to the daemon.

Arming and disarming are retried every second until the daemon reports the
requested arm state. Stop is reserved for the daemon itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Action:        args[0],
			})
		},
	}

	// statusCmd prints the current state.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the daemon state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return checker.Status(context.Background(), &checker.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Output:        cmd.OutOrStdout(),
			})
		},
	}

	// watchCmd polls the state and logs changes.
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Log every daemon state change.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return checker.Watch(ctx, &checker.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				PollInterval:  pollInterval,
			})
		},
	}
)

// Execute runs the alarm-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "daemon address, overrides the configuration")

	watchCmd.Flags().DurationVarP(&pollInterval, "interval", "i", checker.DefaultPollInterval, "polling interval")

	rootCmd.AddCommand(sendCmd, statusCmd, watchCmd)
}
