//go:build linux

// Package usbcdc adapts github.com/daedaluz/gousb's bulk endpoint I/O to
// the pipeline's Transport contract, used for the Device2=USB role.
package usbcdc

import (
	"errors"
	"sync/atomic"

	gousb "github.com/daedaluz/gousb"
)

var errNoDevice = errors.New("usbcdc: no matching device found")

// bulkTimeoutMs bounds a single Bulk transfer so Read never blocks the
// orchestrator past its per-pass budget.
const bulkTimeoutMs = 2

// Device wraps a gousb.Device's CDC-ACM data interface bulk endpoints.
type Device struct {
	dev     *gousb.Device
	inEP    uint8
	outEP   uint8
	overrun atomic.Bool
}

// Open finds the first USB device whose vendor/product ID match and opens
// its CDC-ACM data interface, using inEP/outEP as the bulk IN/OUT endpoint
// addresses (board-specific; typically 0x81/0x01 or 0x82/0x02).
func Open(vendorID, productID uint16, inEP, outEP uint8) (*Device, error) {
	devices, err := gousb.FindDevices(func(d *gousb.Device) bool {
		desc := d.GetDeviceDescriptor()
		return desc != nil && desc.IDVendor == vendorID && desc.IDProduct == productID
	})
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, errNoDevice
	}
	dev := devices[0]
	if err := dev.Open(); err != nil {
		return nil, err
	}
	return &Device{dev: dev, inEP: inEP, outEP: outEP}, nil
}

func (d *Device) Read(buf []byte) (int, error) {
	n, err := d.dev.BulkTimeout(d.inEP, buf, bulkTimeoutMs)
	if err != nil {
		return n, nil // any transfer error, timeout or not, is reported as "no data yet"
	}
	return n, nil
}

func (d *Device) Write(buf []byte) (int, error) {
	return d.dev.Bulk(d.outEP, buf)
}

// AvailableForWrite is approximated as always-ready; USB bulk OUT transfers
// queue at the host-controller driver level, not exposed by this API.
func (d *Device) AvailableForWrite() int {
	return 1 << 16
}

// HasPacketTimeout never fires: USB bulk transfers are already
// packet-delimited by the endpoint, unlike a UART byte stream.
func (d *Device) HasPacketTimeout() bool { return false }

func (d *Device) HasOverrun() bool {
	return d.overrun.Swap(false)
}

func (d *Device) Connected() bool {
	return d.dev.IsOpen()
}

func (d *Device) Close() error {
	return d.dev.Close()
}
