package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Position limits and markers used by SetPosition
const (
	OpenPosition   = 100    // fully open, percent
	ClosedPosition = 0      // fully closed, percent
	PositionUnset  = 0x8000 // "leave unchanged" marker for optional position fields

	setPositionPayloadSize = 9
	sceneTrailer           = 0xA2
)

// Command is an immutable shade command: an opcode and its payload.
// The zero value is not a valid command.
type Command struct {
	opcode  Opcode
	payload []byte
}

// NewCommand creates a command with an arbitrary payload.
// The payload is copied; it must not exceed MaxPayloadSize.
func NewCommand(op Opcode, payload []byte) (Command, error) {
	if len(payload) > MaxPayloadSize {
		return Command{}, newFrameError(ErrTypePayloadTooLarge, MaxPayloadSize, len(payload),
			"payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return Command{opcode: op, payload: p}, nil
}

// Opcode returns the command opcode
func (c Command) Opcode() Opcode {
	return c.opcode
}

// Payload returns a copy of the command payload
func (c Command) Payload() []byte {
	p := make([]byte, len(c.payload))
	copy(p, c.payload)
	return p
}

// IsZero reports whether c is the zero Command
func (c Command) IsZero() bool {
	return c.opcode == 0 && c.payload == nil
}

// Frame encodes the command with the given sequence number
func (c Command) Frame(sequence uint8) ([]byte, error) {
	return Encode(c.opcode, sequence, c.payload)
}

// String returns a debug representation of the command
func (c Command) String() string {
	return fmt.Sprintf("%s[%s]", c.opcode, hex.EncodeToString(c.payload))
}

// PositionOption sets an optional field of a SetPosition command
type PositionOption func(*positionRequest)

type positionRequest struct {
	pos2     *int
	pos3     *int
	tilt     *int
	velocity uint8
}

// WithPosition2 sets the secondary rail position (percent) of a top-down/bottom-up shade
func WithPosition2(pct int) PositionOption {
	return func(r *positionRequest) { r.pos2 = &pct }
}

// WithPosition3 sets the third position field (sent as is)
func WithPosition3(pct int) PositionOption {
	return func(r *positionRequest) { r.pos3 = &pct }
}

// WithTilt sets the tilt position (percent)
func WithTilt(pct int) PositionOption {
	return func(r *positionRequest) { r.tilt = &pct }
}

// WithVelocity sets the motor velocity byte. 0 lets the shade choose.
func WithVelocity(v uint8) PositionOption {
	return func(r *positionRequest) { r.velocity = v }
}

// SetPosition builds a SetPosition command
//
// Payload Structure:
//
//	[0-1]  pos1      primary position * 100 (little-endian uint16)
//	[2-3]  pos2      secondary position * 100, or PositionUnset
//	[4-5]  pos3      raw value, or PositionUnset
//	[6-7]  tilt      raw value, or PositionUnset
//	[8]    velocity
//
// All positions are percentages in 0-100.
func SetPosition(pos1 int, opts ...PositionOption) (Command, error) {
	req := positionRequest{}
	for _, opt := range opts {
		opt(&req)
	}

	if err := checkPercent("position", pos1); err != nil {
		return Command{}, err
	}

	payload := make([]byte, setPositionPayloadSize)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(pos1*100))

	fields := []struct {
		name  string
		value *int
		scale int
		at    int
	}{
		{"position2", req.pos2, 100, 2},
		{"position3", req.pos3, 1, 4},
		{"tilt", req.tilt, 1, 6},
	}
	for _, f := range fields {
		raw := uint16(PositionUnset)
		if f.value != nil {
			if err := checkPercent(f.name, *f.value); err != nil {
				return Command{}, err
			}
			raw = uint16(*f.value * f.scale)
		}
		binary.LittleEndian.PutUint16(payload[f.at:f.at+2], raw)
	}
	payload[8] = req.velocity

	return Command{opcode: OpSetPosition, payload: payload}, nil
}

// Stop builds a Stop command (empty payload)
func Stop() Command {
	return Command{opcode: OpStop, payload: []byte{}}
}

// ActivateScene builds an ActivateScene command for a scene stored on the shade.
// By convention scene 2 opens and scene 3 closes.
func ActivateScene(index int) (Command, error) {
	if index < 0 || index > 0xFF {
		return Command{}, newFrameError(ErrTypeInvalidArgument, 0xFF, index,
			"scene index %d out of range 0-255", index)
	}
	return Command{opcode: OpActivateScene, payload: []byte{byte(index), sceneTrailer}}, nil
}

// Identify builds an Identify command. The beep count is clamped to 0-255.
func Identify(beeps int) Command {
	switch {
	case beeps < 0:
		beeps = 0
	case beeps > 0xFF:
		beeps = 0xFF
	}
	return Command{opcode: OpIdentify, payload: []byte{byte(beeps)}}
}

func checkPercent(field string, v int) error {
	if v < ClosedPosition || v > OpenPosition {
		return newFrameError(ErrTypeInvalidArgument, OpenPosition, v,
			"%s %d out of range %d-%d", field, v, ClosedPosition, OpenPosition)
	}
	return nil
}
