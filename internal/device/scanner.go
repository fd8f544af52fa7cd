package device

import (
	"fmt"
	"path"
	"sort"
	"strings"

	libudev "github.com/jochenvg/go-udev"

	"k8s.io/klog/v2"
)

// DefaultMarkers are the tty node name fragments that identify USB
// serial adapters.
var DefaultMarkers = []string{"ttyUSB", "ttyACM", "ttyAMA", "ttySC"}

// Scanner enumerates USB serial devices through udev.
type Scanner struct {
	udev    libudev.Udev
	markers []string
}

// NewScanner probes udev enumeration once so that an unusable udev
// runtime fails construction instead of every later scan.
func NewScanner(markers ...string) (*Scanner, error) {
	s := &Scanner{markers: markers}
	if len(s.markers) == 0 {
		s.markers = DefaultMarkers
	}

	enum := s.udev.NewEnumerate()
	if err := enum.AddMatchSubsystem(TTYSubsystem); err != nil {
		return nil, fmt.Errorf("udev match on %s subsystem: %w", TTYSubsystem, err)
	}
	if _, err := enum.Devices(); err != nil {
		return nil, fmt.Errorf("udev enumeration: %w", err)
	}

	return s, nil
}

// Scan returns every connected USB serial device, sorted by device
// node path. Nodes that do not look like serial adapters or lack a
// usb_device ancestor are dropped.
func (s *Scanner) Scan() ([]Device, error) {
	enum := s.udev.NewEnumerate()
	if err := enum.AddMatchSubsystem(TTYSubsystem); err != nil {
		return nil, fmt.Errorf("udev match on %s subsystem: %w", TTYSubsystem, err)
	}
	devs, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("udev enumeration: %w", err)
	}

	found := make([]Device, 0, len(devs))
	for _, dev := range devs {
		if dev == nil {
			klog.Error("udev device is nil!")
			continue
		}
		node := dev.Devnode()
		if node == "" || !s.isSerialNode(node) {
			continue
		}
		d := s.extract(dev)
		if !d.Valid() {
			klog.V(4).Infof("Skipping %s: no usable usb_device ancestor", node)
			continue
		}
		found = append(found, d)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].DevPath < found[j].DevPath })
	return found, nil
}

// ScanFilter scans and keeps only devices accepted by filter.
func (s *Scanner) ScanFilter(filter FilterFunc) ([]Device, error) {
	devs, err := s.Scan()
	if err != nil {
		return nil, err
	}
	kept := make([]Device, 0, len(devs))
	for _, d := range devs {
		if filter(d) {
			kept = append(kept, d)
		}
	}
	return kept, nil
}

// ScanPattern scans and keeps devices whose node path contains pattern.
func (s *Scanner) ScanPattern(pattern string) ([]Device, error) {
	return s.ScanFilter(ByPathSubstring(pattern))
}

// Lookup resolves a single device node, trying a direct sysname lookup
// before falling back to a full scan. The second return reports whether
// the device was found.
func (s *Scanner) Lookup(devPath string) (Device, bool, error) {
	sysname := path.Base(devPath)
	if dev := s.udev.NewDeviceFromSubsystemSysname(TTYSubsystem, sysname); dev != nil {
		if d := s.extract(dev); d.Valid() {
			return d, true, nil
		}
	}

	devs, err := s.Scan()
	if err != nil {
		return Device{}, false, err
	}
	for _, d := range devs {
		if d.DevPath == devPath {
			return d, true, nil
		}
	}
	return Device{}, false, nil
}

func (s *Scanner) isSerialNode(node string) bool {
	for _, marker := range s.markers {
		if strings.Contains(node, marker) {
			return true
		}
	}
	return false
}

func (s *Scanner) extract(dev *libudev.Device) Device {
	d := Device{
		DevPath:   dev.Devnode(),
		SysPath:   dev.Syspath(),
		Subsystem: dev.Subsystem(),
		Driver:    dev.Driver(),
	}
	if d.DevPath != "" {
		d.DevNode = path.Base(d.DevPath)
	}

	if usb := dev.ParentWithSubsystemDevtype(USBSubsystem, USBDeviceType); usb != nil {
		d.VendorID = FormatHexID(sysattr(usb, SysAttrVendorID))
		d.ProductID = FormatHexID(sysattr(usb, SysAttrProductID))
		d.Serial = sysattr(usb, SysAttrSerial)
		d.Manufacturer = sysattr(usb, SysAttrManufacturer)
		d.Product = sysattr(usb, SysAttrProduct)
		d.BusNum = sysattr(usb, SysAttrBusNum)
		d.DevNum = sysattr(usb, SysAttrDevNum)
		d.PortPath = usb.Sysname()
		d.Vendor = strings.TrimSpace(usb.PropertyValue(PropertyVendorFromDB))
	}

	// The serial driver (ftdi_sio, cp210x, ...) binds to the interface,
	// not the device.
	if iface := dev.ParentWithSubsystemDevtype(USBSubsystem, USBInterfaceType); iface != nil {
		if driver := iface.Driver(); driver != "" {
			d.Driver = driver
		}
		d.IfaceNum = sysattr(iface, SysAttrInterfaceNum)
	}

	return d
}

func sysattr(dev *libudev.Device, key string) string {
	return strings.TrimSpace(dev.SysattrValue(key))
}
