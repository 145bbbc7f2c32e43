package config

import (
	"time"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/shade"
)

// Registry represents the entire user configuration file.
// It stores the home key, known shades and application preferences.
type Registry struct {
	Version     int               `yaml:"version"`
	HomeKey     string            `yaml:"home_key,omitempty"` // 32 hex characters
	Shades      map[string]*Shade `yaml:"shades,omitempty"`   // Keyed by upper-case BLE address
	Preferences *Preferences      `yaml:"preferences,omitempty"`
}

// Shade represents what is known about a single shade.
type Shade struct {
	Name      string            `yaml:"name,omitempty"`      // Advertised local name
	Nickname  string            `yaml:"nickname,omitempty"`  // User-friendly name
	Encrypted bool              `yaml:"encrypted"`           // Commands need the home key
	HomeID    uint16            `yaml:"home_id,omitempty"`   // From the last advertisement
	TypeID    uint8             `yaml:"type_id,omitempty"`   // From the last advertisement
	LastSeen  time.Time         `yaml:"last_seen,omitempty"` // Last advertisement time
	Info      *shade.DeviceInfo `yaml:"info,omitempty"`      // Device Information Service values
}

// DisplayName returns the nickname, falling back to the advertised name
func (s *Shade) DisplayName() string {
	if s.Nickname != "" {
		return s.Nickname
	}
	return s.Name
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	ScanTimeout     int    `yaml:"scan_timeout"`         // Advertisement scan duration in seconds
	ResponseTimeout int    `yaml:"response_timeout"`     // Command confirmation timeout in seconds
	ConnectAttempts int    `yaml:"connect_attempts"`     // BLE connect attempts before giving up
	AdapterID       string `yaml:"adapter_id,omitempty"` // e.g. "hci1"; empty for the default adapter
}

// Default preference values
const (
	DefaultScanTimeout     = 10
	DefaultResponseTimeout = 5
	DefaultConnectAttempts = link.DefaultConnectAttempts
)

func defaultPreferences() *Preferences {
	return &Preferences{
		ScanTimeout:     DefaultScanTimeout,
		ResponseTimeout: DefaultResponseTimeout,
		ConnectAttempts: DefaultConnectAttempts,
	}
}

// ScanDuration returns the scan timeout as a duration
func (p *Preferences) ScanDuration() time.Duration {
	if p == nil || p.ScanTimeout <= 0 {
		return DefaultScanTimeout * time.Second
	}
	return time.Duration(p.ScanTimeout) * time.Second
}

// ResponseDuration returns the response timeout as a duration
func (p *Preferences) ResponseDuration() time.Duration {
	if p == nil || p.ResponseTimeout <= 0 {
		return shade.DefaultResponseTimeout
	}
	return time.Duration(p.ResponseTimeout) * time.Second
}

// Attempts returns the connect attempts, at least 1
func (p *Preferences) Attempts() int {
	if p == nil || p.ConnectAttempts <= 0 {
		return DefaultConnectAttempts
	}
	return p.ConnectAttempts
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Shades:      make(map[string]*Shade),
		Preferences: defaultPreferences(),
	}
}

// GetShade retrieves shade metadata by address.
// Returns nil if the shade doesn't exist in the registry.
func (r *Registry) GetShade(address string) *Shade {
	return r.Shades[link.NormalizeAddress(address)]
}

// EnsureShade ensures a shade entry exists in the registry.
// Returns the shade entry (existing or newly created).
func (r *Registry) EnsureShade(address string) *Shade {
	if r.Shades == nil {
		r.Shades = make(map[string]*Shade)
	}

	address = link.NormalizeAddress(address)
	if s, exists := r.Shades[address]; exists {
		return s
	}

	s := &Shade{}
	r.Shades[address] = s
	return s
}

// RememberShade records a shade seen in an advertisement. A shade that was
// ever seen paired to a home stays marked as encrypted.
func (r *Registry) RememberShade(address, name string, t *protocol.Telemetry) {
	s := r.EnsureShade(address)
	if name != "" {
		s.Name = name
	}
	s.LastSeen = time.Now()
	if t != nil {
		s.HomeID = t.HomeID
		s.TypeID = t.TypeID
		s.Encrypted = s.Encrypted || t.Paired()
	}
}

// SetShadeNickname sets a user-friendly nickname for a shade.
func (r *Registry) SetShadeNickname(address, nickname string) {
	r.EnsureShade(address).Nickname = nickname
}

// SetShadeInfo stores the Device Information values read from a shade.
func (r *Registry) SetShadeInfo(address string, info *shade.DeviceInfo) {
	r.EnsureShade(address).Info = info
}

// Registration returns the shade.Registration for a known address.
// Unknown addresses get an empty registration.
func (r *Registry) Registration(address string) shade.Registration {
	s := r.GetShade(address)
	if s == nil {
		return shade.Registration{}
	}
	return shade.Registration{Name: s.DisplayName(), Encrypted: s.Encrypted}
}
