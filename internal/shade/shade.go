package shade

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
)

// DefaultIdentifyBeeps is the beep count callers use when none is requested
const DefaultIdentifyBeeps = 3

// Config describes a shade at registration time
type Config struct {
	// Name is used in logs and errors; defaults to the address
	Name string

	// Encrypted marks the shade as belonging to a PowerView home. Frames are
	// encrypted only when this is set and HomeKey is provisioned.
	Encrypted bool

	// HomeKey is the 16-byte home key, or empty
	HomeKey []byte

	// ResponseTimeout bounds the wait for each confirmation
	ResponseTimeout time.Duration

	// Logger receives device events; defaults to the global logger
	Logger *zap.Logger
}

// State is a snapshot of what is known about a shade
type State struct {
	Address   string              `json:"address"`
	Name      string              `json:"name"`
	TypeName  string              `json:"type_name,omitempty"`
	Encrypted bool                `json:"encrypted"`
	Connected bool                `json:"connected"`
	RSSI      int16               `json:"rssi,omitempty"`
	LastSeen  time.Time           `json:"last_seen,omitempty"`
	Telemetry *protocol.Telemetry `json:"telemetry,omitempty"`
	Info      *DeviceInfo         `json:"info,omitempty"`
	Controls  bool                `json:"controls_available"`
}

// Shade is the per-device facade: one protocol engine plus the latest
// advertised state.
type Shade struct {
	address   string
	name      string
	encrypted bool
	hasKey    bool
	logger    *zap.Logger

	conn       *Connection
	dispatcher *Dispatcher

	mu        sync.RWMutex
	telemetry *protocol.Telemetry
	rssi      int16
	lastSeen  time.Time
	info      *DeviceInfo
}

// New creates a shade bound to l. A non-empty HomeKey must be 16 bytes.
func New(l link.Link, cfg Config) (*Shade, error) {
	address := link.NormalizeAddress(l.Address())
	name := cfg.Name
	if name == "" {
		name = address
	}

	var cipher *protocol.Cipher
	if len(cfg.HomeKey) > 0 {
		c, err := protocol.NewCipher(cfg.HomeKey)
		if err != nil {
			return nil, fmt.Errorf("shade %s: %w", name, err)
		}
		if cfg.Encrypted {
			cipher = c
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForDevice(name)
	}

	waiter := newResponseWaiter()
	conn := newConnection(l, name, cipher, waiter, logger)

	return &Shade{
		address:    address,
		name:       name,
		encrypted:  cfg.Encrypted,
		hasKey:     len(cfg.HomeKey) == protocol.KeySize,
		logger:     logger,
		conn:       conn,
		dispatcher: newDispatcher(conn, waiter, cipher, name, cfg.ResponseTimeout, logger),
	}, nil
}

// Address returns the normalized BLE address
func (s *Shade) Address() string { return s.address }

// Name returns the display name
func (s *Shade) Name() string { return s.name }

// Encrypted reports whether the shade was registered as needing encryption
func (s *Shade) Encrypted() bool { return s.encrypted }

// Connected reports whether a session is currently open
func (s *Shade) Connected() bool { return s.conn.Connected() }

// Telemetry returns the latest advertised state
func (s *Shade) Telemetry() (protocol.Telemetry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.telemetry == nil {
		return protocol.Telemetry{}, false
	}
	return *s.telemetry, true
}

// UpdateTelemetry records a decoded advertisement
func (s *Shade) UpdateTelemetry(t *protocol.Telemetry, rssi int16, seen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.telemetry = &cp
	s.rssi = rssi
	s.lastSeen = seen
}

// HandleAdvertisement decodes the shade's manufacturer data from adv.
// It returns the decoded telemetry, or nil if adv carries no valid record.
func (s *Shade) HandleAdvertisement(adv link.Advertisement) *protocol.Telemetry {
	data, ok := adv.ManufacturerData[protocol.ManufacturerID]
	if !ok {
		return nil
	}
	logging.LogAdvertisement(adv.Address, adv.RSSI, data)
	t, err := protocol.ParseTelemetry(data)
	if err != nil {
		s.logger.Debug("Ignoring advertisement", zap.Error(err))
		return nil
	}
	s.UpdateTelemetry(t, adv.RSSI, time.Now())
	return t
}

// State returns a snapshot for display and APIs
func (s *Shade) State() State {
	s.mu.RLock()
	st := State{
		Address:   s.address,
		Name:      s.name,
		Encrypted: s.encrypted,
		RSSI:      s.rssi,
		LastSeen:  s.lastSeen,
		Info:      s.info,
	}
	if s.telemetry != nil {
		t := *s.telemetry
		st.Telemetry = &t
		st.TypeName = t.TypeName()
	}
	s.mu.RUnlock()

	st.Connected = s.Connected()
	st.Controls = s.ControlsAvailable()
	return st
}

// ControlsAvailable reports whether the shade can take commands: a shade
// that reports a home needs the home key, and a charging shade ignores
// commands.
func (s *Shade) ControlsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.telemetry == nil {
		return true
	}
	if s.telemetry.Paired() && !s.hasKey {
		return false
	}
	return !s.telemetry.BatteryCharging
}

// CurrentPosition returns the advertised position rounded to a whole percent
func (s *Shade) CurrentPosition() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.telemetry == nil {
		return 0, false
	}
	return int(math.Round(s.telemetry.Position)), true
}

func (s *Shade) moving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry != nil && s.telemetry.Moving()
}

func (s *Shade) submit(ctx context.Context, cmd protocol.Command, disconnectAfter bool) error {
	if !s.ControlsAvailable() {
		return ErrControlsUnavailable
	}
	return s.dispatcher.Submit(ctx, cmd, disconnectAfter)
}

// SetPosition moves the shade and closes the session afterwards
func (s *Shade) SetPosition(ctx context.Context, pct int, opts ...protocol.PositionOption) error {
	cmd, err := protocol.SetPosition(pct, opts...)
	if err != nil {
		return newError(ErrTypeFrame, s.name, "set_position", err)
	}
	s.logger.Info("Setting position", zap.Int("position", pct))
	return s.submit(ctx, cmd, true)
}

// MoveTo is SetPosition, skipped when the shade already rests at pct
func (s *Shade) MoveTo(ctx context.Context, pct int, opts ...protocol.PositionOption) error {
	if cur, ok := s.CurrentPosition(); ok && cur == pct && !s.moving() {
		s.logger.Debug("Already at target position", zap.Int("position", pct))
		return nil
	}
	return s.SetPosition(ctx, pct, opts...)
}

// Open fully opens the shade. The session stays open for a following Stop.
func (s *Shade) Open(ctx context.Context) error {
	return s.moveEnd(ctx, protocol.OpenPosition, "open")
}

// Close fully closes the shade. The session stays open for a following Stop.
func (s *Shade) Close(ctx context.Context) error {
	return s.moveEnd(ctx, protocol.ClosedPosition, "close")
}

func (s *Shade) moveEnd(ctx context.Context, pct int, op string) error {
	if cur, ok := s.CurrentPosition(); ok && cur == pct {
		s.logger.Debug("Already at end position", zap.String("op", op))
		return nil
	}
	cmd, err := protocol.SetPosition(pct)
	if err != nil {
		return newError(ErrTypeFrame, s.name, op, err)
	}
	s.logger.Info("Moving to end position", zap.String("op", op))
	return s.submit(ctx, cmd, false)
}

// Stop halts any movement
func (s *Shade) Stop(ctx context.Context) error {
	s.logger.Info("Stop")
	return s.submit(ctx, protocol.Stop(), true)
}

// ActivateScene runs a scene stored on the shade
func (s *Shade) ActivateScene(ctx context.Context, index int) error {
	cmd, err := protocol.ActivateScene(index)
	if err != nil {
		return newError(ErrTypeFrame, s.name, "activate_scene", err)
	}
	s.logger.Info("Activating scene", zap.Int("scene", index))
	return s.submit(ctx, cmd, true)
}

// Identify makes the shade beep. The count is clamped to 0-255 and sent as
// given; callers without a count pass DefaultIdentifyBeeps.
func (s *Shade) Identify(ctx context.Context, beeps int) error {
	s.logger.Info("Identify", zap.Int("beeps", beeps))
	return s.dispatcher.Submit(ctx, protocol.Identify(beeps), true)
}

// QueryInfo reads the device information and caches it
func (s *Shade) QueryInfo(ctx context.Context) (*DeviceInfo, error) {
	info, err := s.dispatcher.QueryInfo(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
	return info, nil
}

// Info returns the cached device information, if any
func (s *Shade) Info() (*DeviceInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.info != nil
}

// Shutdown waits for queued commands and closes the session
func (s *Shade) Shutdown() {
	s.dispatcher.Close()
	s.conn.Disconnect()
}
