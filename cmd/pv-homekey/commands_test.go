package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/muurk/powerview-ble/internal/gateway"
)

func TestKeyTable(t *testing.T) {
	keys := []gateway.ShadeKey{
		{
			Shade: gateway.ShadeRecord{ID: 7, Name: "TGl2aW5nIFJvb20=", BLEName: "DUE:1A2B"},
			Key:   []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		},
		{
			Shade: gateway.ShadeRecord{ID: 9, Name: "not base64!", BLEName: "ROL:3C4D"},
			Err:   errors.New("shade did not answer"),
		},
	}

	table := keyTable(keys)
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}

	out := table.Render()
	for _, want := range []string{"Living Room", "00112233445566778899aabbccddeeff", "ROL:3C4D", "error: shade did not answer"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
