package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/powerview-ble/internal/cli"
	"github.com/muurk/powerview-ble/internal/discovery"
	"github.com/muurk/powerview-ble/internal/gateway"
	"github.com/muurk/powerview-ble/internal/ui"
)

// Extract command flags
var (
	gatewayURL string
	save       bool
	assumeYes  bool
)

func init() {
	extractCmd.Flags().StringVar(&gatewayURL, "gateway", "", "Gateway base URL, e.g. http://192.168.1.20 (skips discovery)")
	extractCmd.Flags().BoolVar(&save, "save", false, "Store the home key in the config file")
	extractCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Replace a different stored key without asking")
}

// scanCmd lists gateways found with mDNS
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for PowerView gateways",
	Long: `Browse the local network for PowerView Gen 3 gateways using mDNS and list
every gateway that answers.`,
	Example: `  pv-homekey scan
  pv-homekey scan --scan-timeout 15s`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := cli.InitLogging(logLevel); err != nil {
		return err
	}

	scanner := discovery.NewGatewayScanner()
	scanner.Timeout = mdnsWait

	var gateways []*discovery.Gateway
	err := ui.RunWithSpinner(cmd.Context(), "Browsing for gateways...", func(ctx context.Context) error {
		var err error
		gateways, err = scanner.ScanForGateways(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	p := ui.NewPrinter(os.Stdout)
	if len(gateways) == 0 {
		p.PrintWarning("No gateways found", ui.Field{Key: "Scanned for", Value: mdnsWait.String()})
		p.Println(ui.HintStyle.Render("Check that this machine is on the same network as the gateway, or pass --gateway to extract."))
		return nil
	}

	t := ui.NewTable("INSTANCE", "HOST", "URL")
	for _, gw := range gateways {
		t.AddRow(gw.Instance, gw.Hostname, gw.BaseURL())
	}
	p.Printf("Found %d gateway(s):\n\n", len(gateways))
	p.PrintTable(t)
	p.Newline()
	p.Println(ui.HintStyle.Render("Use 'pv-homekey extract --gateway <url>' to extract the home key."))
	return nil
}

// extractCmd collects the shade keys from a gateway
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the home key from a gateway",
	Long: `Ask the gateway for the key of every shade it manages and report the home
key they share. With --save the key is written to the config file; a different
key already stored there is only replaced after confirmation.`,
	Example: `  # Discover the gateway and print the key
  pv-homekey extract

  # Use a known gateway and store the key
  pv-homekey extract --gateway http://192.168.1.20 --save`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := cli.InitLogging(logLevel); err != nil {
		return err
	}

	baseURL := gatewayURL
	if baseURL == "" {
		scanner := discovery.NewGatewayScanner()
		scanner.Timeout = mdnsWait

		var gw *discovery.Gateway
		err := ui.RunWithSpinner(cmd.Context(), "Looking for a gateway...", func(ctx context.Context) error {
			var err error
			gw, err = scanner.FindGateway(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w (use --gateway to skip discovery)", err)
		}
		baseURL = gw.BaseURL()
	}

	client := gateway.NewClientWithURL(baseURL)
	p := ui.NewPrinter(os.Stdout)
	p.PrintHeader("Home key extraction", "extract", ui.Field{Key: "Gateway", Value: baseURL})

	var keys []gateway.ShadeKey
	err := ui.RunWithSpinner(cmd.Context(), "Requesting shade keys...", func(ctx context.Context) error {
		var err error
		keys, err = client.ExtractKeys(ctx)
		return err
	})
	if err != nil {
		var hints []string
		if hint := gateway.GetTroubleshootingHint(err); hint != "" {
			hints = append(hints, hint)
		}
		ui.NewPrinter(os.Stderr).PrintError("Extraction failed", errors.New(gateway.GetShortErrorMessage(err)), hints...)
		return err
	}

	p.PrintTable(keyTable(keys))
	p.Newline()

	home, err := gateway.HomeKey(keys)
	if err != nil {
		p.PrintError("No home key", err)
		return err
	}

	p.PrintSuccess("Home key found", ui.Field{Key: "Key", Value: fmt.Sprintf("%x", home)})
	if !save {
		p.Println(ui.HintStyle.Render("Run again with --save to store it, or export POWERVIEW_HOME_KEY."))
		return nil
	}
	return saveKey(p, home)
}

func keyTable(keys []gateway.ShadeKey) *ui.Table {
	t := ui.NewTable("ID", "NAME", "BLE NAME", "KEY")
	for _, k := range keys {
		key := k.Hex()
		if k.Err != nil {
			key = "error: " + gateway.GetShortErrorMessage(k.Err)
		}
		t.AddRow(strconv.Itoa(k.Shade.ID), k.Shade.DisplayName(), k.Shade.BLEName, key)
	}
	return t
}

func saveKey(p *ui.Printer, home []byte) error {
	registry, path, err := cli.LoadRegistry(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	current, err := registry.HomeKeyBytes()
	if err == nil && bytes.Equal(current, home) {
		p.Println(ui.HintStyle.Render("The stored key is already up to date."))
		return nil
	}
	if current != nil && !assumeYes {
		if !ui.Confirm(os.Stdin, os.Stdout, "Replace the stored home key?",
			fmt.Sprintf("Stored key: %x", current),
			fmt.Sprintf("New key:    %x", home),
			"Shades of the old home will stop accepting commands",
		) {
			return nil
		}
	}

	if err := registry.SetHomeKey(home); err != nil {
		return err
	}
	if err := registry.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	p.PrintSuccess("Home key saved", ui.Field{Key: "Config", Value: path})
	return nil
}
