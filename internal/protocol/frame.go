package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Frame layout constants
const (
	HeaderSize     = 4                           // opcode(2) + sequence(1) + length(1)
	MaxPayloadSize = 255                         // limited by the 1-byte length field
	MaxFrameSize   = HeaderSize + MaxPayloadSize // 259 bytes
	ResponseLength = 1                           // every response carries one status byte
	StatusSuccess  = 0x00                        // status byte for an accepted command
	ResponseMask   = 0xFFEF                      // responses clear bit 4 of the request opcode
)

// Opcode identifies a shade command on the wire
type Opcode uint16

// Shade command opcodes
const (
	OpSetPosition   Opcode = 0x01F7
	OpStop          Opcode = 0xB8F7
	OpActivateScene Opcode = 0xBAF7
	OpIdentify      Opcode = 0x11F7
)

// String returns a human-readable opcode name
func (op Opcode) String() string {
	switch op {
	case OpSetPosition:
		return "set_position"
	case OpStop:
		return "stop"
	case OpActivateScene:
		return "activate_scene"
	case OpIdentify:
		return "identify"
	default:
		return fmt.Sprintf("unknown(0x%04X)", uint16(op))
	}
}

// Matches reports whether a received opcode answers this command opcode.
// Responses differ from requests only in bit 4.
func (op Opcode) Matches(received Opcode) bool {
	return uint16(received)&ResponseMask == uint16(op)&ResponseMask
}

// Frame represents a parsed command or response frame
type Frame struct {
	Opcode   Opcode
	Sequence uint8
	Length   uint8  // declared payload length
	Payload  []byte // payload bytes (exactly Length bytes)
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{opcode=%s (0x%04X), seq=%d, len=%d, payload=%s}",
		f.Opcode, uint16(f.Opcode), f.Sequence, f.Length, hex.EncodeToString(f.Payload))
}

// Response is a validated shade response
type Response struct {
	Opcode   Opcode // echoed opcode as received
	Sequence uint8
	Status   uint8 // always StatusSuccess for a Response returned by Decode
}

// String returns a debug representation of the response
func (r *Response) String() string {
	return fmt.Sprintf("Response{opcode=0x%04X, seq=%d, status=%d}", uint16(r.Opcode), r.Sequence, r.Status)
}

// Encode builds a command frame
//
// Frame Structure:
//
//	[0-1]   opcode     little-endian uint16
//	[2]     sequence   sequence counter value for this transmission
//	[3]     length     len(payload)
//	[4+]    payload
//
// Returns an error if the payload exceeds MaxPayloadSize.
func Encode(op Opcode, sequence uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, newFrameError(ErrTypePayloadTooLarge, MaxPayloadSize, len(payload),
			"payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(frame[0:2], uint16(op))
	frame[2] = sequence
	frame[3] = byte(len(payload))
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// ParseFrame parses the header and payload of a frame without interpreting it
// as a response. Trailing bytes beyond the declared length are ignored.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, newFrameError(ErrTypeTooShort, HeaderSize, len(data),
			"frame too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}

	f := &Frame{
		Opcode:   Opcode(binary.LittleEndian.Uint16(data[0:2])),
		Sequence: data[2],
		Length:   data[3],
	}

	end := HeaderSize + int(f.Length)
	if len(data) < end {
		return nil, newFrameError(ErrTypeTruncated, end, len(data),
			"frame declares %d payload bytes but only %d received", f.Length, len(data)-HeaderSize)
	}
	f.Payload = make([]byte, f.Length)
	copy(f.Payload, data[HeaderSize:end])

	return f, nil
}

// Decode parses and validates a response frame against the command it answers.
//
// Checks run in a fixed order and the first failure is returned:
//  1. at least HeaderSize bytes
//  2. opcode matches expectedOpcode under ResponseMask
//  3. sequence equals expectedSequence
//  4. declared length equals ResponseLength
//  5. status byte is StatusSuccess
func Decode(data []byte, expectedSequence uint8, expectedOpcode Opcode) (*Response, error) {
	if len(data) < HeaderSize {
		return nil, newFrameError(ErrTypeTooShort, HeaderSize, len(data),
			"response too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}

	opcode := Opcode(binary.LittleEndian.Uint16(data[0:2]))
	if !expectedOpcode.Matches(opcode) {
		return nil, newFrameError(ErrTypeOpcodeMismatch,
			int(uint16(expectedOpcode)&ResponseMask), int(uint16(opcode)&ResponseMask),
			"response to opcode 0x%04X, expected 0x%04X", uint16(opcode), uint16(expectedOpcode))
	}

	sequence := data[2]
	if sequence != expectedSequence {
		return nil, newFrameError(ErrTypeSequenceMismatch, int(expectedSequence), int(sequence),
			"response sequence %d, expected %d", sequence, expectedSequence)
	}

	length := data[3]
	if length != ResponseLength {
		return nil, newFrameError(ErrTypeLengthMismatch, ResponseLength, int(length),
			"response payload length %d, expected %d", length, ResponseLength)
	}

	if len(data) < HeaderSize+ResponseLength {
		return nil, newFrameError(ErrTypeTruncated, HeaderSize+ResponseLength, len(data),
			"response is missing its status byte")
	}

	status := data[HeaderSize]
	if status != StatusSuccess {
		return nil, newFrameError(ErrTypeStatus, StatusSuccess, int(status),
			"command 0x%04X returned error #%d", uint16(expectedOpcode), status)
	}

	return &Response{
		Opcode:   opcode,
		Sequence: sequence,
		Status:   status,
	}, nil
}
