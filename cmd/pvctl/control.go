package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/powerview-ble/internal/cli"
	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/shade"
	"github.com/muurk/powerview-ble/internal/ui"
)

// Command flags
var (
	tilt     int
	velocity uint8
	beeps    int
)

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(positionCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(sceneCmd)
	rootCmd.AddCommand(identifyCmd)

	positionCmd.Flags().IntVar(&tilt, "tilt", -1, "Vane tilt 0-100 (unset when negative)")
	positionCmd.Flags().Uint8Var(&velocity, "velocity", 0, "Movement speed, 0 for the shade default")
	identifyCmd.Flags().IntVar(&beeps, "beeps", shade.DefaultIdentifyBeeps, "Number of beeps")
}

// withShade opens the environment, finds the shade and runs op under the
// command timeout with a spinner.
func withShade(cmd *cobra.Command, address, label string, op func(ctx context.Context, s *shade.Shade) error) (*cli.Env, *shade.Shade, error) {
	env, err := cli.Open(options(false))
	if err != nil {
		return nil, nil, err
	}

	var target *shade.Shade
	err = ui.RunWithSpinner(cmd.Context(), label, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, env.CommandTimeout())
		defer cancel()

		s, err := env.Shade(ctx, address)
		if err != nil {
			return err
		}
		target = s
		return op(ctx, s)
	})
	if err != nil {
		env.Close()
		return nil, nil, err
	}
	return env, target, nil
}

// runCommand executes one shade command and prints the outcome
func runCommand(cmd *cobra.Command, address, action string, op func(ctx context.Context, s *shade.Shade) error, details ...ui.Field) error {
	label := fmt.Sprintf("%s %s...", action, address)
	env, s, err := withShade(cmd, address, label, op)
	if err != nil {
		return printFailure(action+" failed", err)
	}
	defer env.Close()

	p := ui.NewPrinter(os.Stdout)
	fields := append([]ui.Field{
		{Key: "Shade", Value: s.Name()},
		{Key: "Address", Value: s.Address()},
	}, details...)
	p.PrintSuccess(action+" confirmed", fields...)
	return nil
}

// infoCmd reads the Device Information strings
var infoCmd = &cobra.Command{
	Use:   "info <address>",
	Short: "Read device information from a shade",
	Long: `Connect to a shade and read its manufacturer, model, serial number and
hardware, firmware and software revisions. The result is stored in the config
file.`,
	Example: `  pvctl info C2:4F:11:0A:3B:9E
  pvctl info C2:4F:11:0A:3B:9E --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	var info *shade.DeviceInfo
	env, s, err := withShade(cmd, args[0], "Reading device information...", func(ctx context.Context, s *shade.Shade) error {
		var err error
		info, err = s.QueryInfo(ctx)
		return err
	})
	if err != nil {
		return printFailure("Reading device information failed", err)
	}
	defer env.Close()

	env.Registry.SetShadeInfo(s.Address(), info)
	env.Save()

	if outputFormat == "json" {
		return printJSON(s.State())
	}

	p := ui.NewPrinter(os.Stdout)
	p.PrintSuccess("Device information",
		ui.Field{Key: "Shade", Value: s.Name()},
		ui.Field{Key: "Address", Value: s.Address()},
		ui.Field{Key: "Manufacturer", Value: info.Manufacturer},
		ui.Field{Key: "Model", Value: info.Model},
		ui.Field{Key: "Serial", Value: info.SerialNr},
		ui.Field{Key: "Hardware", Value: info.HWRev},
		ui.Field{Key: "Firmware", Value: info.FWRev},
		ui.Field{Key: "Software", Value: info.SWRev},
	)
	return nil
}

// positionCmd moves a shade to a position
var positionCmd = &cobra.Command{
	Use:   "position <address> <percent>",
	Short: "Move a shade to a position",
	Long: `Move a shade to a position between 0 (closed) and 100 (open).

The command is refused while the shade reports it is charging, or when it
belongs to a PowerView home and no home key is configured.`,
	Example: `  # Half open
  pvctl position C2:4F:11:0A:3B:9E 50

  # Fully open with the vanes at 20%
  pvctl position C2:4F:11:0A:3B:9E 100 --tilt 20`,
	Args: cobra.ExactArgs(2),
	RunE: runPosition,
}

func runPosition(cmd *cobra.Command, args []string) error {
	pct, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", args[1], err)
	}

	var opts []protocol.PositionOption
	if tilt >= 0 {
		opts = append(opts, protocol.WithTilt(tilt))
	}
	if velocity > 0 {
		opts = append(opts, protocol.WithVelocity(velocity))
	}

	return runCommand(cmd, args[0], "Move", func(ctx context.Context, s *shade.Shade) error {
		return s.MoveTo(ctx, pct, opts...)
	}, ui.Field{Key: "Position", Value: fmt.Sprintf("%d%%", pct)})
}

var openCmd = &cobra.Command{
	Use:     "open <address>",
	Short:   "Fully open a shade",
	Example: `  pvctl open C2:4F:11:0A:3B:9E`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args[0], "Open", func(ctx context.Context, s *shade.Shade) error {
			return s.Open(ctx)
		})
	},
}

var closeCmd = &cobra.Command{
	Use:     "close <address>",
	Short:   "Fully close a shade",
	Example: `  pvctl close C2:4F:11:0A:3B:9E`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args[0], "Close", func(ctx context.Context, s *shade.Shade) error {
			return s.Close(ctx)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:     "stop <address>",
	Short:   "Stop a moving shade",
	Example: `  pvctl stop C2:4F:11:0A:3B:9E`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args[0], "Stop", func(ctx context.Context, s *shade.Shade) error {
			return s.Stop(ctx)
		})
	},
}

var sceneCmd = &cobra.Command{
	Use:     "scene <address> <index>",
	Short:   "Activate a scene stored in the shade",
	Example: `  pvctl scene C2:4F:11:0A:3B:9E 2`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid scene index %q: %w", args[1], err)
		}
		return runCommand(cmd, args[0], "Scene", func(ctx context.Context, s *shade.Shade) error {
			return s.ActivateScene(ctx, index)
		}, ui.Field{Key: "Scene", Value: args[1]})
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <address>",
	Short: "Make a shade beep",
	Long: `Make a shade beep so it can be located. Identify works even while the
shade is charging.`,
	Example: `  pvctl identify C2:4F:11:0A:3B:9E --beeps 5`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args[0], "Identify", func(ctx context.Context, s *shade.Shade) error {
			return s.Identify(ctx, beeps)
		}, ui.Field{Key: "Beeps", Value: strconv.Itoa(beeps)})
	},
}
