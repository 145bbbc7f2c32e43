// Pv-homekey extracts the PowerView home key from a Gen 3 gateway.
//
// Shades paired to a PowerView home only accept commands encrypted with the
// home's 16-byte key. The gateway hands out each shade's key through its
// local exec endpoint; pv-homekey collects them, checks they agree and can
// store the result in the powerview-ble config file.
//
// Usage:
//
//	pv-homekey [command] [flags]
//
// See 'pv-homekey --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

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
	logLevel   string
	configPath string
	mdnsWait   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "pv-homekey",
	Short: "PowerView home key extraction",
	Long: `Extract the PowerView home key from a Gen 3 gateway on the local network.

The key is needed by pvctl and pvble-bridge to control shades that belong to a
PowerView home. Gateways are found with mDNS, or can be given with --gateway.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: `  # Find gateways
  pv-homekey scan

  # Extract and store the key
  pv-homekey extract --save`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	flags.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/powerview-ble/config.yaml)")
	flags.DurationVar(&mdnsWait, "scan-timeout", 5*time.Second, "How long to browse for gateways")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pv-homekey %s\n", version.Get())
	},
}
