package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/muurk/powerview-ble/internal/protocol"
)

// HomeKeyEnv overrides the home key stored in the configuration file
const HomeKeyEnv = "POWERVIEW_HOME_KEY"

// HomeKeyBytes returns the provisioned home key, or nil when none is set.
// The POWERVIEW_HOME_KEY environment variable takes precedence over the file.
// A key that is not exactly 16 bytes is an error.
func (r *Registry) HomeKeyBytes() ([]byte, error) {
	source := "config file"
	value := r.HomeKey
	if env := os.Getenv(HomeKeyEnv); env != "" {
		source = HomeKeyEnv
		value = env
	}

	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	key, err := protocol.ParseKey(value)
	if err != nil {
		return nil, fmt.Errorf("invalid home key in %s: %w", source, err)
	}
	return key, nil
}

// SetHomeKey stores key as hex. The key must be exactly 16 bytes.
func (r *Registry) SetHomeKey(key []byte) error {
	if len(key) != protocol.KeySize {
		return fmt.Errorf("home key must be %d bytes, got %d", protocol.KeySize, len(key))
	}
	r.HomeKey = hex.EncodeToString(key)
	return nil
}
