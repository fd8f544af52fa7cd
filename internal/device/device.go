package device

import (
	"fmt"
	"strings"
)

const (
	TTYSubsystem = "tty"
	USBSubsystem = "usb"

	USBDeviceType    = "usb_device"
	USBInterfaceType = "usb_interface"

	SysAttrVendorID     = "idVendor"
	SysAttrProductID    = "idProduct"
	SysAttrSerial       = "serial"
	SysAttrManufacturer = "manufacturer"
	SysAttrProduct      = "product"
	SysAttrBusNum       = "busnum"
	SysAttrDevNum       = "devnum"
	SysAttrInterfaceNum = "bInterfaceNumber"

	PropertyVendorFromDB = "ID_VENDOR_FROM_DATABASE"

	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Device is a point-in-time snapshot of a USB serial adapter as seen
// through udev: the tty node plus identity attributes collected from
// its usb_device and usb_interface ancestors.
type Device struct {
	DevPath   string
	DevNode   string
	SysPath   string
	Subsystem string

	VendorID  string
	ProductID string
	Serial    string

	Manufacturer string
	Product      string
	Vendor       string
	Driver       string

	BusNum   string
	DevNum   string
	PortPath string
	IfaceNum string
}

// Valid reports whether the snapshot carries enough identity to match
// a rule against: a device node and a vendor id.
func (d Device) Valid() bool {
	return d.DevPath != "" && d.VendorID != ""
}

// Identity keys the device for rule matching. Serial-bearing hardware
// gets a key that survives replugging; without a serial the key falls
// back to bus/device numbers, which change on every replug.
func (d Device) Identity() string {
	if d.Serial != "" {
		return fmt.Sprintf("%s:%s:%s", d.VendorID, d.ProductID, d.Serial)
	}
	return fmt.Sprintf("%s:%s:bus%sdev%s", d.VendorID, d.ProductID, d.BusNum, d.DevNum)
}

// DisplayName is the human-facing label used in listings and rule
// comments.
func (d Device) DisplayName() string {
	if d.Product != "" {
		return fmt.Sprintf("%s (%s)", d.Product, d.DevPath)
	}
	return d.DevPath
}

// FormatHexID normalizes a USB id attribute to four lowercase hex
// digits. Empty input stays empty so that a missing attribute does not
// masquerade as id 0000.
func FormatHexID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "0x")
	id = strings.TrimPrefix(id, "0X")
	if id == "" {
		return ""
	}
	id = strings.ToLower(id)
	for len(id) < 4 {
		id = "0" + id
	}
	return id
}
