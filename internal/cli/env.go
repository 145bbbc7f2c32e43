// Package cli holds the setup shared by the powerview-ble commands: logging,
// the config registry, the Bluetooth adapter and the shade manager.
package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/config"
	"github.com/muurk/powerview-ble/internal/discovery"
	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/shade"
)

// Options are the persistent flags common to every command. Zero values
// fall back to the registry preferences.
type Options struct {
	LogLevel        string
	ConfigPath      string
	AdapterID       string
	ScanTimeout     time.Duration
	ResponseTimeout time.Duration
	ConnectAttempts int
	AutoRegister    bool
}

// Env is an initialized command environment
type Env struct {
	Registry   *config.Registry
	ConfigPath string
	Adapter    *link.Adapter
	Manager    *shade.Manager
	Scanner    *discovery.ShadeScanner

	scanTimeout     time.Duration
	responseTimeout time.Duration
	attempts        int
}

// Settings are the effective values after applying flags over preferences
type Settings struct {
	AdapterID       string
	ScanTimeout     time.Duration
	ResponseTimeout time.Duration
	ConnectAttempts int
}

// Resolve merges opts over the registry preferences
func Resolve(opts Options, prefs *config.Preferences) Settings {
	s := Settings{
		AdapterID:       opts.AdapterID,
		ScanTimeout:     opts.ScanTimeout,
		ResponseTimeout: opts.ResponseTimeout,
		ConnectAttempts: opts.ConnectAttempts,
	}
	if s.AdapterID == "" && prefs != nil {
		s.AdapterID = prefs.AdapterID
	}
	if s.ScanTimeout <= 0 {
		s.ScanTimeout = prefs.ScanDuration()
	}
	if s.ResponseTimeout <= 0 {
		s.ResponseTimeout = prefs.ResponseDuration()
	}
	if s.ConnectAttempts <= 0 {
		s.ConnectAttempts = prefs.Attempts()
	}
	return s
}

// InitLogging sets up the global logger from the flag or the environment
func InitLogging(level string) error {
	return logging.Initialize(level)
}

// LoadRegistry reads the registry from path, or the default location
func LoadRegistry(path string) (*config.Registry, string, error) {
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	r, err := config.LoadRegistryFrom(path)
	if err != nil {
		return nil, "", err
	}
	return r, path, nil
}

// Open initializes logging, loads the registry and creates the adapter and
// shade manager. Shades already in the registry are registered up front.
func Open(opts Options) (*Env, error) {
	if err := InitLogging(opts.LogLevel); err != nil {
		return nil, err
	}

	registry, path, err := LoadRegistry(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	key, err := registry.HomeKeyBytes()
	if err != nil {
		return nil, err
	}

	settings := Resolve(opts, registry.Preferences)
	adapter := link.NewAdapter(settings.AdapterID, logging.GetLogger())

	manager, err := shade.NewManager(func(address string) link.Link {
		return adapter.Link(address,
			link.WithConnectAttempts(settings.ConnectAttempts),
			link.WithResolveTimeout(settings.ScanTimeout),
			link.WithLogger(logging.ForDevice(address)),
		)
	}, shade.ManagerOptions{
		HomeKey:         key,
		ResponseTimeout: settings.ResponseTimeout,
		AutoRegister:    opts.AutoRegister,
	})
	if err != nil {
		return nil, err
	}

	scanner := discovery.NewShadeScanner(adapter)
	scanner.Timeout = settings.ScanTimeout

	env := &Env{
		Registry:        registry,
		ConfigPath:      path,
		Adapter:         adapter,
		Manager:         manager,
		Scanner:         scanner,
		scanTimeout:     settings.ScanTimeout,
		responseTimeout: settings.ResponseTimeout,
		attempts:        settings.ConnectAttempts,
	}
	if err := env.registerKnown(); err != nil {
		return nil, err
	}

	logging.Debug("Environment ready",
		zap.String("config", path),
		zap.String("adapter", settings.AdapterID),
		zap.Bool("home_key", manager.HasHomeKey()),
		zap.Int("known_shades", len(registry.Shades)),
	)
	return env, nil
}

func (e *Env) registerKnown() error {
	for address := range e.Registry.Shades {
		if _, err := e.Manager.Register(address, e.Registry.Registration(address)); err != nil {
			return err
		}
	}
	return nil
}

// CommandTimeout bounds one shade command including connection setup
func (e *Env) CommandTimeout() time.Duration {
	return e.scanTimeout + time.Duration(e.attempts)*e.responseTimeout + e.responseTimeout
}

// Shade returns a ready shade for address. The shade's advertisement is
// awaited first so its encryption requirement and state are known; a shade
// not seen within the scan timeout is only usable if the registry knows it.
func (e *Env) Shade(ctx context.Context, address string) (*shade.Shade, error) {
	address = link.NormalizeAddress(address)

	found, err := e.Scanner.WaitForShade(ctx, address)
	if err != nil {
		if e.Registry.GetShade(address) == nil {
			return nil, fmt.Errorf("shade %s not seen and not in %s: %w", address, e.ConfigPath, err)
		}
		logging.Warn("Shade not advertising, using stored settings", zap.String("address", address))
		return e.Manager.Get(address)
	}

	adv := link.Advertisement{
		Address:          found.Address,
		LocalName:        found.Name,
		RSSI:             found.RSSI,
		ManufacturerData: map[uint16][]byte{protocol.ManufacturerID: found.Raw},
	}

	reg := e.Registry.Registration(address)
	reg.Advertisement = &adv
	s, err := e.Manager.Register(address, reg)
	if err != nil {
		return nil, err
	}
	s.HandleAdvertisement(adv)

	e.Remember(found)
	return s, nil
}

// Remember stores a discovered shade in the registry and saves it. Save
// failures are logged, not returned.
func (e *Env) Remember(found ...*discovery.Shade) {
	for _, s := range found {
		e.Registry.RememberShade(s.Address, s.Name, s.Telemetry)
	}
	e.Save()
}

// Save writes the registry, logging failures
func (e *Env) Save() {
	if err := e.Registry.SaveTo(e.ConfigPath); err != nil {
		logging.Warn("Failed to save config", zap.String("path", e.ConfigPath), zap.Error(err))
	}
}

// Close stops every shade and flushes the logger
func (e *Env) Close() {
	e.Manager.Shutdown()
	logging.Sync()
}
