// Package protocol implements the PowerView BLE shade wire protocol.
//
// This package handles construction, parsing and validation of the binary
// command/response frames exchanged with Hunter Douglas PowerView shades over
// the shade's GATT command characteristic, the optional AES-CTR wrapping used
// by shades that belong to a PowerView home, and decoding of the manufacturer
// data that shades broadcast in their BLE advertisements.
//
// # Frame Format
//
// Commands and responses share one layout:
//
//	[0-1]  opcode          Command opcode (little-endian uint16)
//	[2]    sequence        Per-connection sequence counter
//	[3]    length          Payload length (0-255)
//	[4+]   payload         Command parameters, or one status byte in a response
//
// A response echoes the request opcode with bit 4 cleared and carries exactly
// one status byte (0 = success).
//
// # Commands
//
//   - SetPosition (0x01F7): pos1, pos2, pos3, tilt (uint16 LE each) + velocity
//   - Stop (0xB8F7): no payload
//   - ActivateScene (0xBAF7): scene index + constant 0xA2
//   - Identify (0x11F7): beep count
//
// # Encryption
//
// Shades paired to a PowerView home only accept frames encrypted with the
// 16-byte home key using AES-128 in CTR mode. Every frame is encrypted with a
// fresh all-zero counter block. This is how the shades behave and must be kept
// as is.
//
// # Advertisement Telemetry
//
// Shades broadcast a 9-byte manufacturer-specific record (company ID 2073):
//
//	[0-1]  home id              PowerView home the shade is paired to
//	[2]    type id              Shade model (see ShadeTypeName)
//	[3-4]  position + motion    10-bit position, 2-bit motion/charging state
//	[4-5]  position2            Secondary rail (high nibble of [4] + [5])
//	[6]    position3
//	[7]    tilt
//	[8]    power + flags        Power level (bits 6-7), reset flags (bits 0-1)
//
// # Usage Example
//
//	frame, err := protocol.Encode(protocol.OpStop, seq, nil)
//	if err != nil {
//	    return err
//	}
//	// ... write frame, receive response ...
//	resp, err := protocol.Decode(data, seq, protocol.OpStop)
//	if protocol.IsStatusError(err) {
//	    code, _ := protocol.StatusCode(err)
//	    log.Printf("shade rejected command: %d", code)
//	}
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use. A Cipher holds only
// the expanded key and may be shared.
package protocol
