package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/powerview-ble/internal/cli"
	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/ui"
)

func init() {
	rootCmd.AddCommand(nameCmd)
}

// nameCmd stores a nickname for a shade
var nameCmd = &cobra.Command{
	Use:   "name <address> <nickname>",
	Short: "Give a shade a nickname",
	Long: `Store a nickname for a shade in the config file. The nickname replaces the
advertised name in logs, the dashboard and the bridge API. An empty nickname
restores the advertised name.`,
	Example: `  pvctl name C2:4F:11:0A:3B:9E "Kitchen"`,
	Args:    cobra.ExactArgs(2),
	RunE:    runName,
}

func runName(cmd *cobra.Command, args []string) error {
	if err := cli.InitLogging(logLevel); err != nil {
		return err
	}
	registry, path, err := cli.LoadRegistry(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	address := link.NormalizeAddress(args[0])
	registry.SetShadeNickname(address, args[1])
	if err := registry.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	ui.NewPrinter(os.Stdout).PrintSuccess("Nickname saved",
		ui.Field{Key: "Address", Value: address},
		ui.Field{Key: "Name", Value: registry.GetShade(address).DisplayName()},
	)
	return nil
}
