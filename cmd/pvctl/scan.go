package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/powerview-ble/internal/cli"
	"github.com/muurk/powerview-ble/internal/discovery"
	"github.com/muurk/powerview-ble/internal/shade"
	"github.com/muurk/powerview-ble/internal/ui"
	"github.com/muurk/powerview-ble/internal/watch"
)

var noSave bool

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)

	scanCmd.Flags().BoolVar(&noSave, "no-save", false, "Do not remember discovered shades in the config file")
}

// scanCmd lists shades in range
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for PowerView shades",
	Long: `Listen for PowerView shade advertisements and list every shade heard.

Each advertisement carries the shade's type, position, battery level and home
id, so no connection is made. Discovered shades are remembered in the config
file unless --no-save is given.`,
	Example: `  # Scan for 10 seconds (default)
  pvctl scan

  # Longer scan, JSON output
  pvctl scan --scan-timeout 30s --format json`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	env, err := cli.Open(options(false))
	if err != nil {
		return err
	}
	defer env.Close()

	var shades []*discovery.Shade
	err = ui.RunWithSpinner(cmd.Context(), "Scanning for shades...", func(ctx context.Context) error {
		var err error
		shades, err = env.Scanner.Scan(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if !noSave && len(shades) > 0 {
		env.Remember(shades...)
	}

	if outputFormat == "json" {
		return printJSON(shades)
	}

	p := ui.NewPrinter(os.Stdout)
	if len(shades) == 0 {
		p.PrintWarning("No shades found",
			ui.Field{Key: "Scanned for", Value: env.Scanner.Timeout.String()},
		)
		p.Println(ui.HintStyle.Render("Make sure Bluetooth is on and the shades are within range. Try a longer --scan-timeout."))
		return nil
	}

	p.Printf("Found %d shade(s):\n\n", len(shades))
	p.PrintTable(shadeTable(shades))
	p.Newline()
	p.Println(ui.HintStyle.Render("Use 'pvctl info <address>' for device details or 'pvctl watch' for a live view."))
	return nil
}

func shadeTable(shades []*discovery.Shade) *ui.Table {
	t := ui.NewTable("ADDRESS", "NAME", "TYPE", "POSITION", "BATTERY", "HOME", "RSSI")
	for _, s := range shades {
		home := "-"
		if s.Encrypted() {
			home = fmt.Sprintf("%04X", s.Telemetry.HomeID)
		}
		t.AddRow(
			s.Address,
			s.Name,
			s.Telemetry.TypeName(),
			fmt.Sprintf("%.1f%%", s.Telemetry.Position),
			fmt.Sprintf("%d%%", s.Telemetry.BatteryLevel),
			home,
			fmt.Sprintf("%d", s.RSSI),
		)
	}
	return t
}

// watchCmd opens the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of shades in range",
	Long: `Show every shade in range with its live position, battery and motion state,
and control the selected shade from the keyboard.

Keys: up/down select, o open, c close, s stop, +/- step 10%, i identify,
? help, q quit.`,
	Example: `  pvctl watch`,
	RunE:    runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := cli.Open(options(true))
	if err != nil {
		return err
	}
	defer env.Close()

	if err := watch.Run(cmd.Context(), env.Manager, env.Adapter, env.CommandTimeout()); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	for _, s := range env.Manager.Shades() {
		if t, ok := s.Telemetry(); ok {
			env.Registry.RememberShade(s.Address(), s.Name(), &t)
		}
	}
	env.Save()
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printFailure renders a shade command error with its hint and returns it
func printFailure(title string, err error) error {
	p := ui.NewPrinter(os.Stderr)
	var hints []string
	if hint := shade.TroubleshootingHint(err); hint != "" {
		hints = append(hints, hint)
	}
	p.PrintError(title, errors.New(shade.ShortMessage(err)), hints...)
	return err
}
