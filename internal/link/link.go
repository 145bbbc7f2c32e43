// Package link is the transport boundary between the shade protocol engine
// and a BLE radio.
//
// A Link opens Sessions to one shade. A Session exposes exactly what the
// protocol needs: a write-only command characteristic, a notify channel for
// responses, and read-only Device Information characteristics. The BLE
// implementation lives in ble.go; tests use in-memory fakes.
package link

import (
	"context"
	"fmt"
	"strings"
)

// GATT identifiers used by PowerView shades
const (
	ShadeServiceUUID      uint16 = 0xFDC1
	DeviceInfoServiceUUID uint16 = 0x180A

	// CommandCharacteristicUUID accepts command frames (write without
	// response) and notifies responses.
	CommandCharacteristicUUID = "cafe1001-c0ff-ee01-8000-a110ca7ab1e0"
)

// Characteristic names a readable GATT characteristic
type Characteristic struct {
	Name string
	UUID string
}

// DeviceInfoCharacteristics lists the Device Information Service strings in
// the order they are read.
var DeviceInfoCharacteristics = []Characteristic{
	{Name: "manufacturer", UUID: UUID16(0x2A29)},
	{Name: "model", UUID: UUID16(0x2A24)},
	{Name: "serial_nr", UUID: UUID16(0x2A25)},
	{Name: "hw_rev", UUID: UUID16(0x2A27)},
	{Name: "fw_rev", UUID: UUID16(0x2A26)},
	{Name: "sw_rev", UUID: UUID16(0x2A28)},
}

// UUID16 expands a 16-bit Bluetooth SIG UUID to its canonical 128-bit form
func UUID16(short uint16) string {
	return fmt.Sprintf("%08x-0000-1000-8000-00805f9b34fb", uint32(short))
}

// NormalizeAddress returns the canonical (upper-case, trimmed) form of a
// device address, used as the key for per-shade state.
func NormalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// Link opens sessions to a single shade
type Link interface {
	// Address returns the normalized device address
	Address() string

	// Connect establishes a session. Implementations may retry internally.
	Connect(ctx context.Context) (Session, error)
}

// Session is one live connection to a shade
type Session interface {
	// Subscribe routes notifications from the command characteristic to handler.
	// The handler is called from the transport's goroutine and must not block.
	Subscribe(handler func(data []byte)) error

	// Write sends a frame to the command characteristic without response
	Write(ctx context.Context, data []byte) error

	// Read returns the value of a readable characteristic by UUID
	Read(ctx context.Context, uuid string) ([]byte, error)

	// Disconnect closes the session. Calling it twice is harmless.
	Disconnect() error

	// Connected reports whether the session is still up
	Connected() bool

	// Done is closed when the session ends for any reason
	Done() <-chan struct{}
}

// Advertisement is one received BLE advertisement
type Advertisement struct {
	Address          string
	LocalName        string
	RSSI             int16
	ManufacturerData map[uint16][]byte
}

// Scanner delivers advertisements until ctx is cancelled
type Scanner interface {
	Scan(ctx context.Context, handler func(Advertisement)) error
}
