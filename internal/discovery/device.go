package discovery

import (
	"fmt"
	"time"

	"github.com/muurk/powerview-ble/internal/protocol"
)

// Shade represents a shade found from its BLE advertisements
type Shade struct {
	// Address is the normalized BLE address (e.g., "C4:7C:8D:6A:2B:10")
	Address string

	// Name is the advertised local name (e.g., "DUE:1A2B")
	Name string

	// RSSI of the most recent advertisement
	RSSI int16

	// Telemetry decoded from the most recent advertisement
	Telemetry *protocol.Telemetry

	// Raw is the manufacturer data record as received
	Raw []byte

	// DiscoveredAt is when the shade was first seen during the scan
	DiscoveredAt time.Time

	// LastSeen is when the most recent advertisement arrived
	LastSeen time.Time
}

// String returns a human-readable string representation of the shade
func (s *Shade) String() string {
	name := s.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s %s [%s] %.1f%% rssi %d", s.Address, name, s.Telemetry.TypeName(), s.Telemetry.Position, s.RSSI)
}

// Encrypted reports whether the shade is paired to a home and needs the home key
func (s *Shade) Encrypted() bool {
	return s.Telemetry != nil && s.Telemetry.Paired()
}

// Gateway represents a PowerView gateway discovered on the network
type Gateway struct {
	// Instance is the mDNS service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "powerview-g3.local.")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.4.16")
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the gateway was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the gateway
func (g *Gateway) String() string {
	return fmt.Sprintf("PowerView Gateway %s (%s) at %s:%d", g.Instance, g.Hostname, g.IP, g.Port)
}

// BaseURL returns the HTTP base URL for the gateway
func (g *Gateway) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", g.IP, g.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}
