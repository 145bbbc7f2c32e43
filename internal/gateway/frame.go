package gateway

import (
	"errors"
	"fmt"
)

// Service and command identifiers
const (
	SIDShadeKey = 251 // key management service
	CIDGetKey   = 18  // GetShadeKey

	headerSize     = 4
	maxFrameData   = 255
	homeKeyLength  = 16
	errorCodeIndex = headerSize
)

// Frame decoding errors
var (
	ErrPacketTooSmall = errors.New("packet size too small")
	ErrIncomplete     = errors.New("not all data present")
	ErrNoErrorCode    = errors.New("no error code present")
)

// Response is a decoded gateway-relayed shade response
type Response struct {
	SID       uint8
	CID       uint8
	Sequence  uint8
	ErrorCode uint8
	Data      []byte
}

// EncodeRequest assembles a request frame: sid, cid, seq, len, data
func EncodeRequest(sid, cid, seq uint8, data []byte) ([]byte, error) {
	if len(data) > maxFrameData {
		return nil, fmt.Errorf("request data too large: %d bytes (max %d)", len(data), maxFrameData)
	}
	frame := make([]byte, headerSize+len(data))
	frame[0] = sid
	frame[1] = cid
	frame[2] = seq
	frame[3] = uint8(len(data))
	copy(frame[headerSize:], data)
	return frame, nil
}

// GetShadeKeyRequest returns the GetShadeKey request frame
func GetShadeKeyRequest(seq uint8) []byte {
	frame, _ := EncodeRequest(SIDShadeKey, CIDGetKey, seq, nil)
	return frame
}

// DecodeResponse parses a response frame. The first data byte is the error
// code; the rest is the payload.
func DecodeResponse(packet []byte) (*Response, error) {
	if len(packet) < headerSize {
		return nil, ErrPacketTooSmall
	}
	length := int(packet[3])
	if len(packet) != headerSize+length {
		return nil, fmt.Errorf("%w: header says %d bytes, got %d", ErrIncomplete, length, len(packet)-headerSize)
	}
	if length < 1 {
		return nil, ErrNoErrorCode
	}
	return &Response{
		SID:       packet[0],
		CID:       packet[1],
		Sequence:  packet[2],
		ErrorCode: packet[errorCodeIndex],
		Data:      append([]byte(nil), packet[errorCodeIndex+1:]...),
	}, nil
}
