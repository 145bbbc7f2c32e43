// Package config provides user configuration management for powerview-ble.
//
// This package manages a YAML-based configuration file that stores the
// PowerView home key, metadata for known shades (names, encryption
// requirement, last advertisement, device information) and application
// preferences. The configuration follows OS-specific conventions for storage
// location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/powerview-ble/config.yaml or $HOME/.config/powerview-ble/config.yaml
//   - macOS: $HOME/.config/powerview-ble/config.yaml
//   - Windows: %LOCALAPPDATA%\powerview-ble\config.yaml
//
// # Home Key
//
// The home key is stored as 32 hex characters. The POWERVIEW_HOME_KEY
// environment variable overrides the stored value. HomeKeyBytes rejects any
// key that is not exactly 16 bytes.
//
// # Usage Example
//
//	path, err := config.GetConfigPath()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry, err := config.LoadRegistryFrom(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	key, err := registry.HomeKeyBytes()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetShadeNickname("C4:7C:8D:6A:2B:10", "Kitchen")
//	if err := registry.SaveTo(path); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// A Registry is not safe for concurrent mutation; callers own their instance.
// Writes go through a package mutex and a temp file rename, so a crash never
// leaves a partial file.
package config
