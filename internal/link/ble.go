package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// DefaultConnectAttempts is the number of connection attempts before giving up
const DefaultConnectAttempts = 3

// maxReadSize covers any Device Information string
const maxReadSize = 512

// ErrNotConnected is returned for operations on a closed session
var ErrNotConnected = errors.New("not connected")

// Option configures a BLELink
type Option func(*BLELink)

// WithConnectAttempts sets how many times Connect tries before failing
func WithConnectAttempts(n int) Option {
	return func(l *BLELink) {
		if n > 0 {
			l.attempts = n
		}
	}
}

// WithResolveTimeout bounds the scan used to find the device
func WithResolveTimeout(d time.Duration) Option {
	return func(l *BLELink) {
		if d > 0 {
			l.resolveTimeout = d
		}
	}
}

// WithLogger sets the logger used for link events
func WithLogger(logger *zap.Logger) Option {
	return func(l *BLELink) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// BLELink connects to one shade through a host Bluetooth adapter
type BLELink struct {
	adapter        *Adapter
	address        string
	attempts       int
	resolveTimeout time.Duration
	logger         *zap.Logger
}

// Address returns the normalized device address
func (l *BLELink) Address() string {
	return l.address
}

// Connect establishes a GATT session, retrying with exponential backoff
func (l *BLELink) Connect(ctx context.Context) (Session, error) {
	if err := l.adapter.Enable(); err != nil {
		return nil, err
	}

	var session *bleSession
	attempt := 0
	operation := func() error {
		attempt++
		s, err := l.connectOnce(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrDeviceNotFound) {
				return backoff.Permanent(err)
			}
			l.logger.Warn("Connection attempt failed",
				zap.String("device", l.address),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		session = s
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), uint64(l.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("connect %s: %w", l.address, err)
	}
	return session, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func (l *BLELink) connectOnce(ctx context.Context) (*bleSession, error) {
	addr, err := l.adapter.Resolve(ctx, l.address, l.resolveTimeout)
	if err != nil {
		return nil, err
	}

	s := &bleSession{
		address: l.address,
		chars:   make(map[string]bluetooth.DeviceCharacteristic),
		done:    make(chan struct{}),
	}
	s.unregister = l.adapter.onConnectionChange(l.address, func(connected bool) {
		if !connected {
			s.end()
		}
	})

	device, err := l.adapter.connect(addr)
	if err != nil {
		s.unregister()
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	s.device = device

	if err := s.discover(); err != nil {
		_ = s.Disconnect()
		return nil, err
	}
	return s, nil
}

type bleSession struct {
	address    string
	device     bluetooth.Device
	command    bluetooth.DeviceCharacteristic
	chars      map[string]bluetooth.DeviceCharacteristic
	unregister func()

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (s *bleSession) discover() error {
	services, err := s.device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("service discovery failed: %w", err)
	}

	wanted := map[string]bool{
		UUID16(ShadeServiceUUID):      true,
		UUID16(DeviceInfoServiceUUID): true,
	}
	for _, svc := range services {
		if !wanted[svc.UUID().String()] {
			continue
		}
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("characteristic discovery failed: %w", err)
		}
		for _, c := range chars {
			s.chars[c.UUID().String()] = c
		}
	}

	cmd, ok := s.chars[CommandCharacteristicUUID]
	if !ok {
		return fmt.Errorf("command characteristic %s not found", CommandCharacteristicUUID)
	}
	s.command = cmd
	return nil
}

func (s *bleSession) Subscribe(handler func(data []byte)) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	err := s.command.EnableNotifications(func(buf []byte) {
		data := make([]byte, len(buf))
		copy(data, buf)
		handler(data)
	})
	if err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}
	return nil
}

func (s *bleSession) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Connected() {
		return ErrNotConnected
	}
	if _, err := s.command.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (s *bleSession) Read(ctx context.Context, uuid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Connected() {
		return nil, ErrNotConnected
	}
	c, ok := s.chars[strings.ToLower(uuid)]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found", uuid)
	}
	buf := make([]byte, maxReadSize)
	n, err := c.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uuid, err)
	}
	return buf[:n], nil
}

func (s *bleSession) Disconnect() error {
	if !s.end() {
		return nil
	}
	if err := s.device.Disconnect(); err != nil {
		return fmt.Errorf("disconnect failed: %w", err)
	}
	return nil
}

func (s *bleSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *bleSession) Done() <-chan struct{} {
	return s.done
}

// end marks the session closed and reports whether this call closed it
func (s *bleSession) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	if s.unregister != nil {
		s.unregister()
	}
	return true
}
