package shade

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
)

// LinkFactory creates the link for a shade address
type LinkFactory func(address string) link.Link

// ManagerOptions configures a Manager
type ManagerOptions struct {
	// HomeKey is the 16-byte home key shared by every shade of the home
	HomeKey []byte

	// ResponseTimeout is passed to every shade
	ResponseTimeout time.Duration

	// AutoRegister registers unknown shades seen in advertisements
	AutoRegister bool
}

// Registration describes a shade being added to the Manager
type Registration struct {
	Name string

	// Encrypted forces encryption on
	Encrypted bool

	// Advertisement is the advertisement the shade was found with, if any.
	// A non-zero home id in it turns encryption on.
	Advertisement *link.Advertisement
}

// TelemetryHandler is called for every decoded advertisement of a registered shade
type TelemetryHandler func(s *Shade, t *protocol.Telemetry)

// Manager owns one Shade per address
type Manager struct {
	newLink LinkFactory
	opts    ManagerOptions

	mu       sync.RWMutex
	shades   map[string]*Shade
	handlers []TelemetryHandler
}

// NewManager creates a manager. A non-empty home key must be 16 bytes.
func NewManager(factory LinkFactory, opts ManagerOptions) (*Manager, error) {
	if len(opts.HomeKey) > 0 && len(opts.HomeKey) != protocol.KeySize {
		return nil, fmt.Errorf("home key must be %d bytes, got %d", protocol.KeySize, len(opts.HomeKey))
	}
	return &Manager{
		newLink: factory,
		opts:    opts,
		shades:  make(map[string]*Shade),
	}, nil
}

// HasHomeKey reports whether a home key is provisioned
func (m *Manager) HasHomeKey() bool {
	return len(m.opts.HomeKey) == protocol.KeySize
}

// Register adds a shade. Registering an address twice returns the existing
// shade; its encryption setting is fixed by the first registration.
func (m *Manager) Register(address string, reg Registration) (*Shade, error) {
	address = link.NormalizeAddress(address)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.shades[address]; ok {
		return s, nil
	}

	var seed *protocol.Telemetry
	encrypted := reg.Encrypted
	if reg.Advertisement != nil {
		if data, ok := reg.Advertisement.ManufacturerData[protocol.ManufacturerID]; ok {
			if t, err := protocol.ParseTelemetry(data); err == nil {
				seed = t
				encrypted = encrypted || t.Paired()
			}
		}
	}

	name := reg.Name
	if name == "" && reg.Advertisement != nil {
		name = reg.Advertisement.LocalName
	}
	if name == "" {
		name = address
	}

	s, err := New(m.newLink(address), Config{
		Name:            name,
		Encrypted:       encrypted,
		HomeKey:         m.opts.HomeKey,
		ResponseTimeout: m.opts.ResponseTimeout,
	})
	if err != nil {
		return nil, err
	}
	if seed != nil {
		s.UpdateTelemetry(seed, reg.Advertisement.RSSI, time.Now())
	}

	m.shades[address] = s
	logging.Info("Shade registered",
		zap.String("device", name),
		zap.String("address", address),
		zap.Bool("encrypted", encrypted),
	)
	return s, nil
}

// Get returns the shade registered for address
func (m *Manager) Get(address string) (*Shade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shades[link.NormalizeAddress(address)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownShade, address)
	}
	return s, nil
}

// Shades returns all registered shades ordered by address
func (m *Manager) Shades() []*Shade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Shade, 0, len(m.shades))
	for _, s := range m.shades {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out
}

// OnTelemetry adds a handler for decoded advertisements
func (m *Manager) OnTelemetry(h TelemetryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// HandleAdvertisement routes an advertisement to its shade. Unknown shades
// are registered when AutoRegister is set and ignored otherwise.
func (m *Manager) HandleAdvertisement(adv link.Advertisement) {
	if _, ok := adv.ManufacturerData[protocol.ManufacturerID]; !ok {
		return
	}

	s, err := m.Get(adv.Address)
	if err != nil {
		if !m.opts.AutoRegister {
			return
		}
		if s, err = m.Register(adv.Address, Registration{Advertisement: &adv}); err != nil {
			logging.Warn("Auto registration failed", zap.String("address", adv.Address), zap.Error(err))
			return
		}
	}

	t := s.HandleAdvertisement(adv)
	if t == nil {
		return
	}

	m.mu.RLock()
	handlers := append([]TelemetryHandler(nil), m.handlers...)
	m.mu.RUnlock()
	for _, h := range handlers {
		h(s, t)
	}
}

// Shutdown stops every shade
func (m *Manager) Shutdown() {
	for _, s := range m.Shades() {
		s.Shutdown()
	}
}
