package app

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/easytty/easytty/internal/device"
	"github.com/easytty/easytty/internal/rules"
)

// RenderDevices writes the device listing shown by --list.
func RenderDevices(w io.Writer, devs []device.Device) {
	if len(devs) == 0 {
		fmt.Fprintln(w, "No USB serial devices found.")
		return
	}

	fmt.Fprintf(w, "Found %d USB serial device(s):\n", len(devs))
	for _, d := range devs {
		fmt.Fprintf(w, "\n%s\n", d.DevPath)
		if d.Product != "" {
			fmt.Fprintf(w, "  Product:      %s\n", d.Product)
		}
		if d.Manufacturer != "" {
			fmt.Fprintf(w, "  Manufacturer: %s\n", d.Manufacturer)
		}
		fmt.Fprintf(w, "  ID:           %s:%s\n", d.VendorID, d.ProductID)
		fmt.Fprintf(w, "  Serial:       %s\n", orNone(d.Serial))
		if d.Driver != "" {
			fmt.Fprintf(w, "  Driver:       %s\n", d.Driver)
		}
		if d.PortPath != "" {
			fmt.Fprintf(w, "  Port:         %s\n", d.PortPath)
		}
	}
}

// RenderRules writes the rule listing shown by --rules. The active
// check runs live against the dev directory.
func RenderRules(w io.Writer, list []rules.Rule, devDir string, active func(string) bool) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No easytty rules found.")
		return
	}

	fmt.Fprintf(w, "Found %d rule(s):\n", len(list))
	for _, r := range list {
		fmt.Fprintf(w, "\n%s\n", filepath.Join(devDir, r.Symlink))
		fmt.Fprintf(w, "  Device:   %s\n", r.Name)
		match := fmt.Sprintf("%s:%s", r.VendorID, r.ProductID)
		if r.Serial != "" {
			match += " serial " + r.Serial
		} else {
			match += " (any unit of this model)"
		}
		fmt.Fprintf(w, "  Match:    %s\n", match)
		fmt.Fprintf(w, "  File:     %s\n", r.FilePath)
		fmt.Fprintf(w, "  Active:   %s\n", yesNo(active(r.Symlink)))
	}
}

// RenderEvent writes one line per hotplug event in --monitor mode.
func RenderEvent(w io.Writer, ev device.Event) {
	switch ev.Action {
	case device.ActionAdd:
		line := "[+] " + ev.DevPath
		d := ev.Device
		if d.Product != "" {
			line += "  " + d.Product
		}
		if d.VendorID != "" {
			line += fmt.Sprintf("  [%s:%s]", d.VendorID, d.ProductID)
		}
		if d.Serial != "" {
			line += "  serial " + d.Serial
		}
		fmt.Fprintln(w, line)
	case device.ActionRemove:
		fmt.Fprintf(w, "[-] %s\n", ev.DevPath)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
