package shade

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/link"
)

// DeviceInfo holds the Device Information Service strings of a shade
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	Model        string `json:"model" yaml:"model"`
	SerialNr     string `json:"serial_nr" yaml:"serial_nr"`
	HWRev        string `json:"hw_rev" yaml:"hw_rev"`
	FWRev        string `json:"fw_rev" yaml:"fw_rev"`
	SWRev        string `json:"sw_rev" yaml:"sw_rev"`
}

func (i *DeviceInfo) set(name, value string) {
	switch name {
	case "manufacturer":
		i.Manufacturer = value
	case "model":
		i.Model = value
	case "serial_nr":
		i.SerialNr = value
	case "hw_rev":
		i.HWRev = value
	case "fw_rev":
		i.FWRev = value
	case "sw_rev":
		i.SWRev = value
	}
}

// QueryInfo reads the six Device Information strings.
//
// It waits for the dispatch lock, so it never overlaps a command. Any read
// failure aborts the query. The session is closed afterwards either way.
func (d *Dispatcher) QueryInfo(ctx context.Context) (*DeviceInfo, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, newError(ErrTypeTransport, d.name, "query info", err)
	}
	defer d.release()
	defer d.conn.Disconnect()

	if err := d.conn.Connect(ctx); err != nil {
		return nil, err
	}

	info := &DeviceInfo{}
	for _, c := range link.DeviceInfoCharacteristics {
		d.logger.Debug("Reading device information", zap.String("field", c.Name), zap.String("uuid", c.UUID))
		data, err := d.conn.Read(ctx, c.UUID)
		if err != nil {
			return nil, newError(ErrTypeDescriptorRead, d.name, "read "+c.Name, err)
		}
		info.set(c.Name, strings.TrimRight(string(data), "\x00"))
	}

	d.logger.Debug("Device information", zap.Any("info", info))
	return info, nil
}
