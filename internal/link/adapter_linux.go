//go:build linux

package link

import "tinygo.org/x/bluetooth"

func platformAdapter(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(id)
}
