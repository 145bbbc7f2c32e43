package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/logging"
)

const (
	// ServiceType is the mDNS service type of PowerView Gen 3 gateways
	ServiceType = "_powerview-g3._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for gateway discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port for PowerView gateways
	DefaultPort = 80
)

// GatewayScanner handles mDNS gateway discovery
type GatewayScanner struct {
	// Timeout is the maximum time to wait for gateway discovery
	Timeout time.Duration
}

// NewGatewayScanner creates a new mDNS scanner with default settings
func NewGatewayScanner() *GatewayScanner {
	return &GatewayScanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForGateways discovers all PowerView gateways on the local network
func (s *GatewayScanner) ScanForGateways(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	var mu sync.Mutex
	gateways := make([]*Gateway, 0)
	seen := make(map[string]bool)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			gw := parseServiceEntry(entry)
			if gw == nil {
				continue
			}
			mu.Lock()
			if !seen[gw.IP] {
				seen[gw.IP] = true
				gateways = append(gateways, gw)
				logging.Debug("Gateway discovered", zap.String("instance", gw.Instance), zap.String("ip", gw.IP))
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for context to complete (timeout or cancellation)
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Gateway(nil), gateways...), nil
}

// FindGateway returns the first gateway that answers within the timeout
func (s *GatewayScanner) FindGateway(ctx context.Context) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Gateway, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if gw := parseServiceEntry(entry); gw != nil {
				select {
				case found <- gw:
					cancel()
				default:
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case gw := <-found:
		return gw, nil
	case <-ctx.Done():
		select {
		case gw := <-found:
			return gw, nil
		default:
		}
		return nil, fmt.Errorf("no PowerView gateway found within %s", s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Gateway.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Gateway {
	if entry == nil {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = "[" + entry.AddrIPv6[0].String() + "]"
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Gateway{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
