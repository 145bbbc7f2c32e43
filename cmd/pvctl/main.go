// Pvctl controls Hunter Douglas PowerView shades over Bluetooth LE.
//
// It scans for shade advertisements, shows a live dashboard, reads device
// information and sends position, stop, scene and identify commands. Shades
// paired to a PowerView home need the home key, which pv-homekey can extract
// from a Gen 3 gateway.
//
// Usage:
//
//	pvctl [command] [flags]
//
// See 'pvctl --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/powerview-ble/internal/cli"
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

// Persistent flags
var (
	logLevel        string
	configPath      string
	adapterID       string
	scanTimeout     time.Duration
	responseTimeout time.Duration
	connectAttempts int
	outputFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "pvctl",
	Short: "PowerView BLE shade control",
	Long: `Control Hunter Douglas PowerView shades directly over Bluetooth LE.

Shades are found by their advertisements, which also carry position, battery
and motion state. Shades that belong to a PowerView home encrypt their
commands with the home key; store it with 'pv-homekey extract --save' or set
POWERVIEW_HOME_KEY.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: `  # List shades in range
  pvctl scan

  # Live dashboard
  pvctl watch

  # Move a shade to 40% with the vanes at 20%
  pvctl position C2:4F:11:0A:3B:9E 40 --tilt 20`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	flags.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/powerview-ble/config.yaml)")
	flags.StringVar(&adapterID, "adapter", "", "Bluetooth adapter, e.g. hci1 (Linux only)")
	flags.DurationVar(&scanTimeout, "scan-timeout", 0, "How long to scan for advertisements (default from config)")
	flags.DurationVar(&responseTimeout, "timeout", 0, "How long to wait for a command confirmation (default from config)")
	flags.IntVar(&connectAttempts, "attempts", 0, "Connection attempts before giving up (default from config)")
	flags.StringVar(&outputFormat, "format", "table", "Output format (table, json)")

	rootCmd.AddCommand(versionCmd)
}

func options(autoRegister bool) cli.Options {
	return cli.Options{
		LogLevel:        logLevel,
		ConfigPath:      configPath,
		AdapterID:       adapterID,
		ScanTimeout:     scanTimeout,
		ResponseTimeout: responseTimeout,
		ConnectAttempts: connectAttempts,
		AutoRegister:    autoRegister,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pvctl %s\n", version.Get())
	},
}
