package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// DefaultResolveTimeout bounds the scan used to find a device address that
// has not been seen yet.
const DefaultResolveTimeout = 15 * time.Second

// ErrDeviceNotFound is returned when a device is not seen while resolving its address
var ErrDeviceNotFound = errors.New("device not found")

// Adapter wraps a host Bluetooth adapter shared by every shade link.
//
// The underlying stack allows one scan at a time and one process-wide
// connect handler, so both are multiplexed here.
type Adapter struct {
	bt     *bluetooth.Adapter
	logger *zap.Logger

	mu       sync.Mutex
	enabled  bool
	known    map[string]bluetooth.Address
	handlers map[string]func(connected bool)

	scanSlot chan struct{}
}

// NewAdapter creates an adapter wrapper. id selects a specific controller
// (e.g. "hci1") where the platform supports it; empty means the default one.
func NewAdapter(id string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		bt:       platformAdapter(id),
		logger:   logger,
		known:    make(map[string]bluetooth.Address),
		handlers: make(map[string]func(bool)),
		scanSlot: make(chan struct{}, 1),
	}
}

// Enable powers up the adapter. It is safe to call repeatedly.
func (a *Adapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.enabled {
		return nil
	}
	if err := a.bt.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %w", err)
	}
	a.bt.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		a.dispatchConnect(device.Address.String(), connected)
	})
	a.enabled = true
	return nil
}

// Scan delivers advertisements until ctx is cancelled. Only one scan runs at
// a time; a second caller waits for the first to finish or for its own ctx.
func (a *Adapter) Scan(ctx context.Context, handler func(Advertisement)) error {
	if err := a.Enable(); err != nil {
		return err
	}

	select {
	case a.scanSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-a.scanSlot }()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			if err := a.bt.StopScan(); err != nil {
				a.logger.Debug("Stop scan failed", zap.Error(err))
			}
		case <-stopped:
		}
	}()

	err := a.bt.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := toAdvertisement(result)
		a.remember(adv.Address, result.Address)
		handler(adv)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// Resolve returns the stack address for a device, scanning for it if it has
// not been seen yet.
func (a *Adapter) Resolve(ctx context.Context, address string, timeout time.Duration) (bluetooth.Address, error) {
	address = NormalizeAddress(address)
	if addr, ok := a.lookup(address); ok {
		return addr, nil
	}

	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.logger.Debug("Scanning for device", zap.String("device", address))
	err := a.Scan(scanCtx, func(adv Advertisement) {
		if adv.Address == address {
			cancel()
		}
	})
	// A scan already running elsewhere still records the address
	if err != nil && scanCtx.Err() == nil {
		return bluetooth.Address{}, err
	}
	if addr, ok := a.lookup(address); ok {
		return addr, nil
	}
	if ctx.Err() != nil {
		return bluetooth.Address{}, ctx.Err()
	}
	return bluetooth.Address{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, address)
}

// Link returns a link to the shade with the given address
func (a *Adapter) Link(address string, opts ...Option) *BLELink {
	l := &BLELink{
		adapter:        a,
		address:        NormalizeAddress(address),
		attempts:       DefaultConnectAttempts,
		resolveTimeout: DefaultResolveTimeout,
		logger:         a.logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (a *Adapter) connect(addr bluetooth.Address) (bluetooth.Device, error) {
	return a.bt.Connect(addr, bluetooth.ConnectionParams{})
}

func (a *Adapter) remember(address string, addr bluetooth.Address) {
	a.mu.Lock()
	a.known[address] = addr
	a.mu.Unlock()
}

func (a *Adapter) lookup(address string) (bluetooth.Address, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr, ok := a.known[address]
	return addr, ok
}

func (a *Adapter) onConnectionChange(address string, fn func(connected bool)) (unregister func()) {
	address = NormalizeAddress(address)
	a.mu.Lock()
	a.handlers[address] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.handlers, address)
		a.mu.Unlock()
	}
}

func (a *Adapter) dispatchConnect(address string, connected bool) {
	address = NormalizeAddress(address)
	a.mu.Lock()
	fn := a.handlers[address]
	a.mu.Unlock()
	if fn != nil {
		fn(connected)
	}
}

func toAdvertisement(result bluetooth.ScanResult) Advertisement {
	adv := Advertisement{
		Address:          NormalizeAddress(result.Address.String()),
		LocalName:        result.LocalName(),
		RSSI:             result.RSSI,
		ManufacturerData: make(map[uint16][]byte),
	}
	for _, el := range result.ManufacturerData() {
		data := make([]byte, len(el.Data))
		copy(data, el.Data)
		adv.ManufacturerData[el.CompanyID] = data
	}
	return adv
}
