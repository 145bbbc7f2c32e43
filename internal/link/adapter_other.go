//go:build !linux

package link

import "tinygo.org/x/bluetooth"

// Controller selection is only supported by the BlueZ backend.
func platformAdapter(_ string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
