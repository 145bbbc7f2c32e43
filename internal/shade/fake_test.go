package shade

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/protocol"
)

// fakeLink is an in-memory link. respond is called synchronously for every
// written frame and may call s.notify.
type fakeLink struct {
	address string

	mu           sync.Mutex
	connects     int
	connectDelay time.Duration
	connectErr   error
	subErr       error
	writeErr     error
	readErrAt    string
	disconnErr   error
	values       map[string][]byte
	sessions     []*fakeSession
	respond      func(s *fakeSession, data []byte)
}

func newFakeLink(address string) *fakeLink {
	values := make(map[string][]byte)
	for _, c := range link.DeviceInfoCharacteristics {
		values[c.UUID] = []byte(c.Name + "-value")
	}
	return &fakeLink{
		address: link.NormalizeAddress(address),
		values:  values,
		respond: func(s *fakeSession, data []byte) { s.notify(ack(data, 0)) },
	}
}

func (l *fakeLink) Address() string { return l.address }

func (l *fakeLink) Connect(ctx context.Context) (link.Session, error) {
	l.mu.Lock()
	delay := l.connectDelay
	l.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.connectErr != nil {
		return nil, l.connectErr
	}
	l.connects++
	s := &fakeSession{link: l, done: make(chan struct{})}
	l.sessions = append(l.sessions, s)
	return s, nil
}

func (l *fakeLink) connectCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects
}

func (l *fakeLink) last() *fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sessions) == 0 {
		return nil
	}
	return l.sessions[len(l.sessions)-1]
}

// writes returns every frame written across all sessions, in order
func (l *fakeLink) writes() [][]byte {
	l.mu.Lock()
	sessions := append([]*fakeSession(nil), l.sessions...)
	l.mu.Unlock()

	var out [][]byte
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, s.written...)
		s.mu.Unlock()
	}
	return out
}

type fakeSession struct {
	link *fakeLink

	mu      sync.Mutex
	handler func([]byte)
	written [][]byte
	reads   []string
	closed  bool
	done    chan struct{}
}

func (s *fakeSession) Subscribe(handler func([]byte)) error {
	s.link.mu.Lock()
	err := s.link.subErr
	s.link.mu.Unlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Write(ctx context.Context, data []byte) error {
	s.link.mu.Lock()
	err := s.link.writeErr
	respond := s.link.respond
	s.link.mu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return link.ErrNotConnected
	}
	s.written = append(s.written, append([]byte(nil), data...))
	s.mu.Unlock()

	if respond != nil {
		respond(s, data)
	}
	return nil
}

func (s *fakeSession) Read(ctx context.Context, uuid string) ([]byte, error) {
	s.link.mu.Lock()
	failAt := s.link.readErrAt
	value, ok := s.link.values[uuid]
	s.link.mu.Unlock()

	s.mu.Lock()
	s.reads = append(s.reads, uuid)
	s.mu.Unlock()

	if uuid == failAt {
		return nil, errors.New("read failed")
	}
	if !ok {
		return nil, errors.New("no such characteristic")
	}
	return value, nil
}

func (s *fakeSession) Disconnect() error {
	s.drop()
	s.link.mu.Lock()
	defer s.link.mu.Unlock()
	return s.link.disconnErr
}

func (s *fakeSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

// drop ends the session as if the shade went away
func (s *fakeSession) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *fakeSession) notify(data []byte) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(data)
	}
}

func (s *fakeSession) readOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reads...)
}

// ack builds the response a shade sends for a plaintext command frame
func ack(frame []byte, status byte) []byte {
	op := binary.LittleEndian.Uint16(frame[0:2]) & protocol.ResponseMask
	return []byte{byte(op), byte(op >> 8), frame[2], protocol.ResponseLength, status}
}

// encryptedAck answers encrypted frames with encrypted responses
func encryptedAck(c *protocol.Cipher) func(s *fakeSession, data []byte) {
	return func(s *fakeSession, data []byte) {
		s.notify(c.Encrypt(ack(c.Decrypt(data), 0)))
	}
}
