package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/ui"
)

func init() {
	rootCmd.AddCommand(decodeCmd)
}

// decodeCmd decodes a manufacturer data record offline
var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a shade advertisement record",
	Long: `Decode the 9-byte manufacturer data record from a PowerView shade
advertisement, as captured by any BLE sniffer. Spaces, colons and a 0x prefix
are accepted.`,
	Example: `  pvctl decode 0100060002000032c0
  pvctl decode "01:00:06:00:02:00:00:32:c0"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHex(strings.Join(args, ""))
	if err != nil {
		return err
	}

	attrs := protocol.DecodeTelemetry(data)
	if len(attrs) == 0 {
		return fmt.Errorf("record must be %d bytes, got %d", protocol.TelemetrySize, len(data))
	}

	if outputFormat == "json" {
		values := make(map[string]any, len(attrs))
		for _, a := range attrs {
			values[a.Name] = a.Value
		}
		return printJSON(values)
	}

	t := ui.NewTable("ATTRIBUTE", "VALUE")
	for _, a := range attrs {
		t.AddRow(a.Name, fmt.Sprintf("%v", a.Value))
	}
	tel, _ := protocol.ParseTelemetry(data)

	p := ui.NewPrinter(os.Stdout)
	p.PrintHeader("Shade advertisement", "decode", ui.Field{Key: "Type", Value: tel.TypeName()})
	p.PrintTable(t)
	return nil
}

// parseHex decodes hex that may contain separators and a 0x prefix
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}
