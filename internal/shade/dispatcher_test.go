package shade

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/protocol"
)

func newTestEngine(t *testing.T, l *fakeLink, cipher *protocol.Cipher, timeout time.Duration, logger *zap.Logger) (*Connection, *Dispatcher) {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	w := newResponseWaiter()
	c := newConnection(l, "test", cipher, w, logger)
	d := newDispatcher(c, w, cipher, "test", timeout, logger)
	t.Cleanup(d.Close)
	return c, d
}

func TestSubmitSendsFrame(t *testing.T) {
	tests := []struct {
		name            string
		cmd             func() protocol.Command
		disconnectAfter bool
		want            []byte
	}{
		{
			name:            "stop disconnects after",
			cmd:             protocol.Stop,
			disconnectAfter: true,
			want:            []byte{0xF7, 0xB8, 0x01, 0x00},
		},
		{
			name: "open keeps the link",
			cmd: func() protocol.Command {
				c, _ := protocol.SetPosition(100)
				return c
			},
			disconnectAfter: false,
			want:            []byte{0xF7, 0x01, 0x01, 0x09, 0x10, 0x27, 0x00, 0x80, 0x00, 0x80, 0x00, 0x80, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLink("aa:bb")
			conn, d := newTestEngine(t, l, nil, time.Second, nil)

			if err := d.Submit(context.Background(), tt.cmd(), tt.disconnectAfter); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}

			writes := l.writes()
			if len(writes) != 1 || !bytes.Equal(writes[0], tt.want) {
				t.Fatalf("writes = % x, want % x", writes, tt.want)
			}
			if conn.Connected() == tt.disconnectAfter {
				t.Errorf("Connected() = %v after disconnectAfter=%v", conn.Connected(), tt.disconnectAfter)
			}
			if d.Sequence() != 2 {
				t.Errorf("Sequence() = %d, want 2", d.Sequence())
			}
		})
	}
}

func TestSequenceIncrementsAndWraps(t *testing.T) {
	l := newFakeLink("aa:bb")
	_, d := newTestEngine(t, l, nil, time.Second, nil)

	d.mu.Lock()
	d.seq = 254
	d.mu.Unlock()

	for i := 0; i < 4; i++ {
		if err := d.Submit(context.Background(), protocol.Stop(), false); err != nil {
			t.Fatalf("Submit() #%d error = %v", i, err)
		}
	}

	want := []byte{254, 255, 0, 1}
	writes := l.writes()
	if len(writes) != len(want) {
		t.Fatalf("got %d writes, want %d", len(writes), len(want))
	}
	for i, w := range writes {
		if w[2] != want[i] {
			t.Errorf("write %d seq = %d, want %d", i, w[2], want[i])
		}
	}
	if d.Sequence() != 2 {
		t.Errorf("Sequence() = %d, want 2", d.Sequence())
	}
	if d.Sent() != 4 {
		t.Errorf("Sent() = %d, want 4", d.Sent())
	}
}

func TestSubmitTimeout(t *testing.T) {
	tests := []struct {
		name            string
		disconnectAfter bool
	}{
		{"disconnect after", true},
		{"keep link", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLink("aa:bb")
			l.respond = nil
			conn, d := newTestEngine(t, l, nil, 20*time.Millisecond, nil)

			err := d.Submit(context.Background(), protocol.Stop(), tt.disconnectAfter)
			if !IsTimeout(err) {
				t.Fatalf("Submit() error = %v, want timeout", err)
			}
			if conn.Connected() == tt.disconnectAfter {
				t.Errorf("Connected() = %v after timeout with disconnectAfter=%v", conn.Connected(), tt.disconnectAfter)
			}
			if d.Sequence() != 2 {
				t.Errorf("Sequence() = %d, want 2 (frame was transmitted)", d.Sequence())
			}
		})
	}
}

func TestWriteFailureKeepsSequence(t *testing.T) {
	l := newFakeLink("aa:bb")
	l.writeErr = errors.New("gatt write failed")
	_, d := newTestEngine(t, l, nil, time.Second, nil)

	err := d.Submit(context.Background(), protocol.Stop(), true)
	if !IsTransportError(err) {
		t.Fatalf("Submit() error = %v, want transport error", err)
	}
	if d.Sequence() != 1 {
		t.Errorf("Sequence() = %d, want 1", d.Sequence())
	}

	// The dispatch lock must be free again.
	l.mu.Lock()
	l.writeErr = nil
	l.mu.Unlock()
	if err := d.Submit(context.Background(), protocol.Stop(), true); err != nil {
		t.Fatalf("Submit() after recovery error = %v", err)
	}
	if w := l.writes(); len(w) != 1 || w[0][2] != 1 {
		t.Errorf("writes = % x, want one frame with seq 1", w)
	}
}

func TestConnectFailure(t *testing.T) {
	l := newFakeLink("aa:bb")
	l.connectErr = errors.New("adapter off")
	_, d := newTestEngine(t, l, nil, time.Second, nil)

	err := d.Submit(context.Background(), protocol.Stop(), true)
	if !IsTransportError(err) {
		t.Fatalf("Submit() error = %v, want transport error", err)
	}
	if len(l.writes()) != 0 {
		t.Error("frame written without a connection")
	}

	// The failed command must not be sent once the link recovers
	l.mu.Lock()
	l.connectErr = nil
	l.mu.Unlock()
	time.Sleep(50 * time.Millisecond)

	if n := l.connectCount(); n != 0 {
		t.Errorf("connects after failure = %d, want 0", n)
	}
	if w := l.writes(); len(w) != 0 {
		t.Errorf("writes after failure = % x, want none", w)
	}
	if d.Sent() != 0 {
		t.Errorf("Sent() = %d, want 0", d.Sent())
	}
}

func TestCancelledContextDropsCommand(t *testing.T) {
	l := newFakeLink("aa:bb")
	_, d := newTestEngine(t, l, nil, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Submit(ctx, protocol.Stop(), true); err == nil {
		t.Fatal("Submit() with cancelled context error = nil")
	}
	time.Sleep(50 * time.Millisecond)

	if w := l.writes(); len(w) != 0 {
		t.Errorf("writes = % x, want none", w)
	}

	if err := d.Submit(context.Background(), protocol.Stop(), true); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if w := l.writes(); len(w) != 1 || w[0][2] != 1 {
		t.Errorf("writes = % x, want one frame with seq 1", w)
	}
}

func TestVerificationFailureIsSoft(t *testing.T) {
	tests := []struct {
		name    string
		respond func(s *fakeSession, data []byte)
	}{
		{"nonzero status", func(s *fakeSession, data []byte) { s.notify(ack(data, 0x05)) }},
		{"wrong sequence", func(s *fakeSession, data []byte) {
			r := ack(data, 0)
			r[2]++
			s.notify(r)
		}},
		{"too short", func(s *fakeSession, data []byte) { s.notify([]byte{0x01}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			l := newFakeLink("aa:bb")
			l.respond = tt.respond
			_, d := newTestEngine(t, l, nil, time.Second, zap.New(core))

			if err := d.Submit(context.Background(), protocol.Stop(), true); err != nil {
				t.Fatalf("Submit() error = %v, want nil", err)
			}
			if logs.FilterMessage("Response verification failed").Len() != 1 {
				t.Errorf("verification failure not logged: %v", logs.All())
			}
		})
	}
}

func TestEncryptedFrames(t *testing.T) {
	key := []byte("0123456789abcdef")
	c, err := protocol.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	l := newFakeLink("aa:bb")
	l.respond = encryptedAck(c)
	_, d := newTestEngine(t, l, c, time.Second, zap.New(core))

	cmd, _ := protocol.ActivateScene(3)
	if err := d.Submit(context.Background(), cmd, true); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	plain, _ := protocol.Encode(protocol.OpActivateScene, 1, []byte{0x03, 0xA2})
	want := c.Encrypt(plain)
	if w := l.writes(); len(w) != 1 || !bytes.Equal(w[0], want) {
		t.Errorf("wire frame = % x, want % x", w, want)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected warnings: %v", logs.All())
	}
}

func TestCoalescing(t *testing.T) {
	l := newFakeLink("aa:bb")
	written := make(chan []byte, 4)
	release := make(chan struct{})
	l.respond = func(s *fakeSession, data []byte) {
		written <- data
		<-release
		s.notify(ack(data, 0))
	}
	_, d := newTestEngine(t, l, nil, time.Second, nil)

	cmdA, _ := protocol.SetPosition(10)
	cmdB, _ := protocol.SetPosition(20)
	cmdC, _ := protocol.SetPosition(30)

	errA := make(chan error, 1)
	go func() { errA <- d.Submit(context.Background(), cmdA, false) }()

	first := waitFrame(t, written)
	if !bytes.Equal(first[4:], cmdA.Payload()) {
		t.Fatalf("first frame payload = % x, want A", first[4:])
	}

	// A is in flight: B and C are queued, C replaces B.
	if err := d.Submit(context.Background(), cmdB, false); err != nil {
		t.Fatalf("Submit(B) error = %v", err)
	}
	if err := d.Submit(context.Background(), cmdC, true); err != nil {
		t.Fatalf("Submit(C) error = %v", err)
	}

	release <- struct{}{}
	select {
	case err := <-errA:
		if err != nil {
			t.Fatalf("Submit(A) error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit(A) did not return")
	}

	// A returned while the queued command is still waiting for its ack.
	second := waitFrame(t, written)
	if !bytes.Equal(second[4:], cmdC.Payload()) {
		t.Errorf("second frame payload = % x, want C", second[4:])
	}
	if second[2] != 2 {
		t.Errorf("second frame seq = %d, want 2", second[2])
	}
	release <- struct{}{}
	d.Close()

	if n := len(l.writes()); n != 2 {
		t.Errorf("got %d writes, want 2", n)
	}
	select {
	case extra := <-written:
		t.Errorf("unexpected frame % x", extra)
	default:
	}
}

func TestCoalescedReplacesBeforeSend(t *testing.T) {
	l := newFakeLink("aa:bb")
	connecting := make(chan struct{})
	proceed := make(chan struct{})
	_, d := newTestEngine(t, l, nil, time.Second, nil)

	// Hold the first cycle inside Connect so the slot is still unread.
	blocking := &blockingLink{fakeLink: l, entered: connecting, proceed: proceed}
	d.conn.link = blocking

	cmdA, _ := protocol.SetPosition(10)
	cmdB, _ := protocol.SetPosition(90)

	errA := make(chan error, 1)
	go func() { errA <- d.Submit(context.Background(), cmdA, true) }()
	<-connecting

	if err := d.Submit(context.Background(), cmdB, true); err != nil {
		t.Fatalf("Submit(B) error = %v", err)
	}
	close(proceed)

	if err := <-errA; err != nil {
		t.Fatalf("Submit(A) error = %v", err)
	}
	d.Close()

	writes := l.writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(writes))
	}
	if !bytes.Equal(writes[0][4:], cmdB.Payload()) {
		t.Errorf("payload = % x, want B", writes[0][4:])
	}
}

type blockingLink struct {
	*fakeLink
	entered chan struct{}
	proceed chan struct{}
}

func (b *blockingLink) Connect(ctx context.Context) (link.Session, error) {
	close(b.entered)
	<-b.proceed
	return b.fakeLink.Connect(ctx)
}

func waitFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame written")
		return nil
	}
}
