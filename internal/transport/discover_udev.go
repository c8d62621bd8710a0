//go:build linux

package transport

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// vendorID/productID identify this instrument's USB interface. A real
// deployment would carry the board's actual VID:PID; kept as package
// vars so a bench rig can override them without recompiling discovery.
var (
	VendorID  = "0403" // FTDI-class vendor, matching the FIFO-style bulk transport
	ProductID = "6014"
)

// DiscoverUSB enumerates attached board devices via udev (spec §6: "host
// OS USB service"), limited to maxDevices entries, and extracts each
// device's ID_SERIAL_SHORT for the ordering suffix described in §4.1.
func DiscoverUSB(maxDevices int) ([]Endpoint, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("usb"); err != nil {
		return nil, fmt.Errorf("udev enumerate: %w", err)
	}
	if err := enum.AddMatchProperty("ID_VENDOR_ID", VendorID); err != nil {
		return nil, fmt.Errorf("udev enumerate: %w", err)
	}
	if err := enum.AddMatchProperty("ID_MODEL_ID", ProductID); err != nil {
		return nil, fmt.Errorf("udev enumerate: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("udev device list: %w", err)
	}

	var out []Endpoint
	for _, d := range devices {
		if len(out) >= maxDevices {
			break
		}
		node := d.Devnode()
		if node == "" {
			continue
		}
		serial := d.PropertyValue("ID_SERIAL_SHORT")
		if serial == "" {
			serial = d.PropertyValue("ID_SERIAL")
		}
		out = append(out, Endpoint{Description: serial, DevPath: node})
	}
	return out, nil
}
