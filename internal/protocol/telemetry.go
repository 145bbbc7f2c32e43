package protocol

import (
	"encoding/binary"
	"fmt"
)

// Advertisement constants
const (
	ManufacturerID = 2073 // Hunter Douglas company identifier (0x0819)
	TelemetrySize  = 9    // length of a V2 manufacturer data record
)

// Attribute names, in the order DecodeTelemetry returns them
const (
	AttrPosition        = "position"
	AttrPosition2       = "position2"
	AttrPosition3       = "position3"
	AttrTilt            = "tilt"
	AttrHomeID          = "home_id"
	AttrTypeID          = "type_id"
	AttrIsOpening       = "is_opening"
	AttrIsClosing       = "is_closing"
	AttrBatteryCharging = "battery_charging"
	AttrBatteryLevel    = "battery_level"
	AttrResetMode       = "resetMode"
	AttrResetClock      = "resetClock"
)

// Motion is the 2-bit state carried alongside the primary position
type Motion uint8

// Motion states
const (
	MotionIdle     Motion = 0x0
	MotionClosing  Motion = 0x1
	MotionOpening  Motion = 0x2
	MotionCharging Motion = 0x3
)

// String returns the motion state name
func (m Motion) String() string {
	switch m {
	case MotionIdle:
		return "idle"
	case MotionClosing:
		return "closing"
	case MotionOpening:
		return "opening"
	case MotionCharging:
		return "charging"
	default:
		return fmt.Sprintf("Motion(%d)", uint8(m))
	}
}

// powerLevels maps the 2-bit power index to a battery percentage.
// Index 4 (hardwired) cannot be encoded in two bits but is kept for completeness.
var powerLevels = map[int]int{
	0: 0,   // no power remaining
	1: 20,  // 20% or less
	2: 50,  // 50% to 21%
	3: 100, // 100% to 51%
	4: 100, // hardwired
}

// BatteryPercent converts a power level index to a battery percentage.
// Unknown indexes report 0.
func BatteryPercent(index int) int {
	return powerLevels[index]
}

var shadeTypes = map[uint8]string{
	// up down only
	1:  "Designer Roller",
	4:  "Roman",
	5:  "Bottom Up",
	6:  "Duette",
	10: "Duette and Applause SkyLift",
	19: "Provenance Woven Wood",
	31: "Vignette",
	32: "Vignette",
	42: "M25T Roller Blind",
	49: "AC Roller",
	52: "Banded Shades",
	53: "Sonnette",
	84: "Vignette",
	// top down bottom up
	8:  "Duette, Top Down Bottom Up",
	9:  "Duette DuoLite, Top Down Bottom Up",
	33: "Duette Architella, Top Down Bottom Up",
	47: "Pleated, Top Down Bottom Up",
	// top down, tilt anywhere
	51: "Venetian, Tilt Anywhere",
	62: "Venetian, Tilt Anywhere",
}

// ShadeTypeName returns the model name for a shade type id, or "unknown"
func ShadeTypeName(typeID uint8) string {
	if name, ok := shadeTypes[typeID]; ok {
		return name
	}
	return "unknown"
}

// Telemetry is the state a shade broadcasts in its advertisement
type Telemetry struct {
	Position        float64 `json:"position"`
	Position2       int     `json:"position2"`
	Position3       int     `json:"position3"`
	Tilt            int     `json:"tilt"`
	HomeID          uint16  `json:"home_id"`
	TypeID          uint8   `json:"type_id"`
	Motion          Motion  `json:"-"`
	BatteryLevel    int     `json:"battery_level"`
	PowerIndex      int     `json:"-"`
	ResetMode       bool    `json:"reset_mode"`
	ResetClock      bool    `json:"reset_clock"`
	IsOpening       bool    `json:"is_opening"`
	IsClosing       bool    `json:"is_closing"`
	BatteryCharging bool    `json:"battery_charging"`
}

// ParseTelemetry decodes a 9-byte manufacturer data record
//
// Record Structure:
//
//	[0-1]  home id        little-endian uint16, 0 when not paired to a home
//	[2]    type id        see ShadeTypeName
//	[3-4]  raw position   bits 0-1 motion, bits 2-11 position in tenths of a percent
//	[4-5]  position2      high nibble of [4] and all of [5], shifted right by 2
//	[6]    position3
//	[7]    tilt
//	[8]    power          bits 6-7 power index, bit 0 reset mode, bit 1 reset clock
func ParseTelemetry(data []byte) (*Telemetry, error) {
	if len(data) != TelemetrySize {
		return nil, fmt.Errorf("telemetry record must be %d bytes, got %d", TelemetrySize, len(data))
	}

	raw := binary.LittleEndian.Uint16(data[3:5])
	motion := Motion(data[3] & 0x3)
	power := int(data[8] >> 6)

	t := &Telemetry{
		Position:        float64((raw&0x0FFF)>>2) / 10,
		Position2:       ((int(data[5]) << 4) + (int(data[4]) >> 4)) >> 2,
		Position3:       int(data[6]),
		Tilt:            int(data[7]),
		HomeID:          binary.LittleEndian.Uint16(data[0:2]),
		TypeID:          data[2],
		Motion:          motion,
		PowerIndex:      power,
		BatteryLevel:    BatteryPercent(power),
		ResetMode:       data[8]&0x1 != 0,
		ResetClock:      data[8]&0x2 != 0,
		IsOpening:       motion == MotionOpening,
		IsClosing:       motion == MotionClosing,
		BatteryCharging: motion == MotionCharging,
	}
	return t, nil
}

// TypeName returns the shade model name
func (t *Telemetry) TypeName() string {
	return ShadeTypeName(t.TypeID)
}

// Paired reports whether the shade belongs to a PowerView home, in which case
// commands must be encrypted with the home key.
func (t *Telemetry) Paired() bool {
	return t.HomeID != 0
}

// Moving reports whether the shade is opening or closing
func (t *Telemetry) Moving() bool {
	return t.IsOpening || t.IsClosing
}

// Attribute is one named telemetry value
type Attribute struct {
	Name  string
	Value any
}

// String returns "name=value"
func (a Attribute) String() string {
	return fmt.Sprintf("%s=%v", a.Name, a.Value)
}

// Attributes returns the telemetry as an ordered attribute list
func (t *Telemetry) Attributes() []Attribute {
	return []Attribute{
		{AttrPosition, t.Position},
		{AttrPosition2, t.Position2},
		{AttrPosition3, t.Position3},
		{AttrTilt, t.Tilt},
		{AttrHomeID, int(t.HomeID)},
		{AttrTypeID, int(t.TypeID)},
		{AttrIsOpening, t.IsOpening},
		{AttrIsClosing, t.IsClosing},
		{AttrBatteryCharging, t.BatteryCharging},
		{AttrBatteryLevel, t.BatteryLevel},
		{AttrResetMode, t.ResetMode},
		{AttrResetClock, t.ResetClock},
	}
}

// DecodeTelemetry decodes a manufacturer data record into its attribute list.
// Any input that is not exactly TelemetrySize bytes yields an empty result.
func DecodeTelemetry(data []byte) []Attribute {
	t, err := ParseTelemetry(data)
	if err != nil {
		return []Attribute{}
	}
	return t.Attributes()
}
