package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
)

// DefaultShadeScanTimeout is the default duration of an advertisement scan
const DefaultShadeScanTimeout = 10 * time.Second

// ShadeScanner finds PowerView shades by their manufacturer data
type ShadeScanner struct {
	// Timeout bounds Scan
	Timeout time.Duration

	source link.Scanner
}

// NewShadeScanner creates a scanner reading advertisements from source
func NewShadeScanner(source link.Scanner) *ShadeScanner {
	return &ShadeScanner{
		Timeout: DefaultShadeScanTimeout,
		source:  source,
	}
}

// ParseAdvertisement returns the shade described by adv, or nil when adv
// carries no valid PowerView manufacturer data.
func ParseAdvertisement(adv link.Advertisement) *Shade {
	data, ok := adv.ManufacturerData[protocol.ManufacturerID]
	if !ok {
		return nil
	}
	t, err := protocol.ParseTelemetry(data)
	if err != nil {
		logging.Debug("Ignoring malformed shade advertisement",
			zap.String("address", adv.Address),
			zap.Error(err),
		)
		return nil
	}

	now := time.Now()
	return &Shade{
		Address:      link.NormalizeAddress(adv.Address),
		Name:         adv.LocalName,
		RSSI:         adv.RSSI,
		Telemetry:    t,
		Raw:          append([]byte(nil), data...),
		DiscoveredAt: now,
		LastSeen:     now,
	}
}

// Watch calls handler for every PowerView advertisement until ctx is done
func (s *ShadeScanner) Watch(ctx context.Context, handler func(*Shade)) error {
	return s.source.Scan(ctx, func(adv link.Advertisement) {
		if shade := ParseAdvertisement(adv); shade != nil {
			handler(shade)
		}
	})
}

// Scan collects shades for the scanner's timeout and returns them ordered by
// address. Repeated advertisements update the same entry.
func (s *ShadeScanner) Scan(ctx context.Context) ([]*Shade, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var mu sync.Mutex
	found := make(map[string]*Shade)

	err := s.Watch(ctx, func(shade *Shade) {
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := found[shade.Address]; ok {
			shade.DiscoveredAt = prev.DiscoveredAt
			if shade.Name == "" {
				shade.Name = prev.Name
			}
		} else {
			logging.Debug("Shade discovered",
				zap.String("address", shade.Address),
				zap.String("name", shade.Name),
				zap.Uint16("home_id", shade.Telemetry.HomeID),
			)
		}
		found[shade.Address] = shade
	})
	if err != nil && ctx.Err() == nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	shades := make([]*Shade, 0, len(found))
	for _, shade := range found {
		shades = append(shades, shade)
	}
	sort.Slice(shades, func(i, j int) bool { return shades[i].Address < shades[j].Address })
	return shades, nil
}

// WaitForShade scans until the shade with address advertises or the timeout expires
func (s *ShadeScanner) WaitForShade(ctx context.Context, address string) (*Shade, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	address = link.NormalizeAddress(address)
	found := make(chan *Shade, 1)

	go func() {
		_ = s.Watch(ctx, func(shade *Shade) {
			if shade.Address != address {
				return
			}
			select {
			case found <- shade:
				cancel()
			default:
			}
		})
	}()

	select {
	case shade := <-found:
		return shade, nil
	case <-ctx.Done():
		select {
		case shade := <-found:
			return shade, nil
		default:
		}
		return nil, fmt.Errorf("shade %s not found within timeout", address)
	}
}
