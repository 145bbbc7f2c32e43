// Pvble-bridge exposes PowerView BLE shades over HTTP, WebSocket and NATS.
//
// It scans continuously, decodes every shade advertisement, pushes the
// resulting state to WebSocket clients and NATS subscribers, and accepts
// commands over REST or NATS request/reply.
//
// Usage:
//
//	pvble-bridge serve [flags]
//
// See 'pvble-bridge serve --help' for available options.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/bridge"
	"github.com/muurk/powerview-ble/internal/cli"
	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pvble-bridge",
	Short: "PowerView BLE bridge",
	Long: `A bridge between PowerView Bluetooth LE shades and the network.

Shade state decoded from advertisements is streamed to WebSocket clients on
/events and published to NATS on powerview.shade.<address>.telemetry.
Commands are accepted on the REST API and on powerview.shade.<address>.command.

For one-off control from the terminal, use 'pvctl'.`,
	Version:      version.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	host           string
	port           int
	natsURL        string
	commandTimeout time.Duration
	autoRegister   bool
	logLevel       string
	configPath     string
	adapterID      string
	responseTime   time.Duration
	attempts       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge",
	Long: `Start scanning for shades and serve the HTTP API.

Shades listed in the config file are registered at startup. With
--auto-register every PowerView shade heard is registered as well. Shades
paired to a home need the home key; see 'pv-homekey extract --save'.`,
	Example: `  # Serve on :8080
  pvble-bridge serve

  # Publish telemetry to NATS and accept any shade in range
  pvble-bridge serve --nats-url nats://localhost:4222 --auto-register

  # Debug logging on a second adapter
  pvble-bridge serve --adapter hci1 --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 8080, "HTTP port")
	serveCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (disabled if not specified)")
	serveCmd.Flags().DurationVar(&commandTimeout, "command-timeout", bridge.DefaultCommandTimeout, "Upper bound for one shade command")
	serveCmd.Flags().BoolVar(&autoRegister, "auto-register", false, "Register every PowerView shade heard")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/powerview-ble/config.yaml)")
	serveCmd.Flags().StringVar(&adapterID, "adapter", "", "Bluetooth adapter, e.g. hci1 (Linux only)")
	serveCmd.Flags().DurationVar(&responseTime, "timeout", 0, "How long to wait for a command confirmation (default from config)")
	serveCmd.Flags().IntVar(&attempts, "attempts", 0, "Connection attempts before giving up (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := cli.Open(cli.Options{
		LogLevel:        logLevel,
		ConfigPath:      configPath,
		AdapterID:       adapterID,
		ResponseTimeout: responseTime,
		ConnectAttempts: attempts,
		AutoRegister:    autoRegister,
	})
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := bridge.New(&bridge.Config{
		Host:           host,
		Port:           port,
		NATSURL:        natsURL,
		CommandTimeout: commandTimeout,
	}, env.Manager)

	scanDone := make(chan error, 1)
	go func() {
		scanDone <- env.Adapter.Scan(ctx, env.Manager.HandleAdvertisement)
	}()

	serveErr := srv.Start(ctx)
	cancel()

	if err := <-scanDone; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("Scan stopped with error", zap.Error(err))
		if serveErr == nil {
			serveErr = fmt.Errorf("scan failed: %w", err)
		}
	}
	return serveErr
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pvble-bridge %s\n", version.Get())
	},
}
