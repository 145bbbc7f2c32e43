package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muurk/powerview-ble/internal/discovery"
	"github.com/muurk/powerview-ble/internal/protocol"
)

func TestParseHex(t *testing.T) {
	want := []byte{0x01, 0x00, 0x06, 0x00, 0x02, 0x00, 0x00, 0x32, 0xC0}

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"plain", "0100060002000032c0", false},
		{"upper case with prefix", "0x0100060002000032C0", false},
		{"colons", "01:00:06:00:02:00:00:32:c0", false},
		{"spaces", " 01 00 06 00 02 00 00 32 c0 ", false},
		{"dashes", "01-00-06-00-02-00-00-32-c0", false},
		{"odd length", "010", true},
		{"not hex", "zz00060002000032c0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, want) {
				t.Errorf("parseHex() = % x, want % x", got, want)
			}
		})
	}
}

func TestShadeTable(t *testing.T) {
	paired, err := protocol.ParseTelemetry([]byte{0x34, 0x12, 0x01, 0xA0, 0x0F, 0x00, 0x00, 0x00, 0xC0})
	if err != nil {
		t.Fatalf("ParseTelemetry() error = %v", err)
	}
	unpaired, err := protocol.ParseTelemetry([]byte{0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40})
	if err != nil {
		t.Fatalf("ParseTelemetry() error = %v", err)
	}

	table := shadeTable([]*discovery.Shade{
		{Address: "AA:BB:CC:DD:EE:01", Name: "ROL:1A2B", RSSI: -60, Telemetry: paired},
		{Address: "AA:BB:CC:DD:EE:02", Name: "DUE:3C4D", RSSI: -75, Telemetry: unpaired},
	})
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}

	out := table.Render()
	for _, want := range []string{"AA:BB:CC:DD:EE:01", "Designer Roller", "100.0%", "1234", "Duette", "20%"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
