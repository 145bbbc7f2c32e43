package bridge

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/protocol"
)

// ackLink is an in-memory link whose sessions acknowledge every plaintext
// frame, or stay silent when mute is set.
type ackLink struct {
	address string
	mute    bool

	mu     sync.Mutex
	frames [][]byte
}

func (l *ackLink) Address() string { return l.address }

func (l *ackLink) Connect(ctx context.Context) (link.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ackSession{link: l, done: make(chan struct{})}, nil
}

func (l *ackLink) written() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.frames...)
}

type ackSession struct {
	link *ackLink

	mu      sync.Mutex
	handler func([]byte)
	closed  bool
	done    chan struct{}
}

func (s *ackSession) Subscribe(handler func([]byte)) error {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	return nil
}

func (s *ackSession) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return link.ErrNotConnected
	}
	h := s.handler
	s.mu.Unlock()

	s.link.mu.Lock()
	s.link.frames = append(s.link.frames, append([]byte(nil), data...))
	mute := s.link.mute
	s.link.mu.Unlock()

	if !mute && h != nil {
		op := binary.LittleEndian.Uint16(data[0:2]) & protocol.ResponseMask
		h([]byte{byte(op), byte(op >> 8), data[2], protocol.ResponseLength, 0})
	}
	return nil
}

func (s *ackSession) Read(ctx context.Context, uuid string) ([]byte, error) {
	for _, c := range link.DeviceInfoCharacteristics {
		if c.UUID == uuid {
			return []byte(c.Name + "-value"), nil
		}
	}
	return nil, link.ErrNotConnected
}

func (s *ackSession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *ackSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *ackSession) Done() <-chan struct{} { return s.done }

// telemetryRecord builds a manufacturer data record
func telemetryRecord(homeID uint16, pct int, motion protocol.Motion, power int) []byte {
	raw := uint16(pct*10)<<2 | uint16(motion)
	data := make([]byte, protocol.TelemetrySize)
	binary.LittleEndian.PutUint16(data[0:2], homeID)
	data[2] = 6
	binary.LittleEndian.PutUint16(data[3:5], raw)
	data[8] = byte(power << 6)
	return data
}

func advertisement(address string, record []byte) link.Advertisement {
	return link.Advertisement{
		Address:          address,
		LocalName:        "DUE:" + address,
		RSSI:             -55,
		ManufacturerData: map[uint16][]byte{protocol.ManufacturerID: record},
	}
}
