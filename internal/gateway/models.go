package gateway

import (
	"encoding/base64"
	"encoding/hex"
)

// ShadeRecord is one entry of GET /home/shades
type ShadeRecord struct {
	ID      int    `json:"id"`
	Name    string `json:"name"` // base64 encoded
	BLEName string `json:"bleName"`
	RoomID  int    `json:"roomId,omitempty"`
	TypeID  int    `json:"type,omitempty"`
}

// DisplayName returns the decoded shade name, or the BLE name when the
// name is not valid base64.
func (s ShadeRecord) DisplayName() string {
	decoded, err := base64.StdEncoding.DecodeString(s.Name)
	if err != nil || len(decoded) == 0 {
		return s.BLEName
	}
	return string(decoded)
}

// execRequest is the body of POST /home/shades/exec
type execRequest struct {
	Hex string `json:"hex"`
}

// execResponse is the reply of POST /home/shades/exec
type execResponse struct {
	Err       int `json:"err"`
	Responses []struct {
		Hex string `json:"hex"`
	} `json:"responses"`
}

// ShadeKey is the key extracted for one shade
type ShadeKey struct {
	Shade ShadeRecord
	Key   []byte
	Err   error
}

// Hex returns the key as lower-case hex
func (k ShadeKey) Hex() string {
	return hex.EncodeToString(k.Key)
}
