package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/easytty/easytty/internal/device"
)

const (
	DefaultPriority = 99
	FileSuffix      = ".rules"

	headerLine    = "# EasyTTY auto-generated rule"
	deviceComment = "# Device:"
)

var (
	vendorRe  = regexp.MustCompile(`ATTRS\{idVendor\}=="([0-9a-fA-F]+)"`)
	productRe = regexp.MustCompile(`ATTRS\{idProduct\}=="([0-9a-fA-F]+)"`)
	serialRe  = regexp.MustCompile(`ATTRS\{serial\}=="([^"]+)"`)
	symlinkRe = regexp.MustCompile(`SYMLINK\+="([^"]+)"`)
)

// FileName builds the rule file name claiming symlink.
func FileName(priority int, tag, symlink string) string {
	return fmt.Sprintf("%02d-%s-%s%s", priority, tag, symlink, FileSuffix)
}

// Render produces the rule file content pinning symlink to d's
// identity. Values that cannot sit inside a double-quoted udev token
// are rejected rather than escaped; udev has no portable escape for
// them.
func Render(d device.Device, symlink string, now time.Time) (string, error) {
	for _, v := range []string{d.VendorID, d.ProductID, d.Serial, symlink} {
		if !safeQuoted(v) {
			return "", fmt.Errorf("%w: %q", ErrUnsafeValue, v)
		}
	}

	var b strings.Builder
	b.WriteString(headerLine + "\n")
	fmt.Fprintf(&b, "%s %s\n", deviceComment, commentSafe(d.DisplayName()))
	fmt.Fprintf(&b, "# Vendor: %s (%s)\n", commentSafe(d.Manufacturer), d.VendorID)
	fmt.Fprintf(&b, "# Product: %s (%s)\n", commentSafe(d.Product), d.ProductID)
	if d.Serial != "" {
		fmt.Fprintf(&b, "# Serial: %s\n", d.Serial)
	}
	fmt.Fprintf(&b, "# Original: %s\n", commentSafe(d.DevPath))
	fmt.Fprintf(&b, "# Created: %s\n", now.Format(time.UnixDate))
	b.WriteString("\n")

	fmt.Fprintf(&b, `SUBSYSTEM=="%s", ATTRS{idVendor}=="%s", ATTRS{idProduct}=="%s"`,
		device.TTYSubsystem, d.VendorID, d.ProductID)
	if d.Serial != "" {
		fmt.Fprintf(&b, `, ATTRS{serial}=="%s"`, d.Serial)
	}
	fmt.Fprintf(&b, `, SYMLINK+="%s", MODE="0666"`, symlink)
	b.WriteString("\n")

	return b.String(), nil
}

// ParseFile reads and parses one rule file from disk.
func ParseFile(path string) (Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return Rule{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads one rule file. The Device comment supplies the display
// name; other comment and blank lines carry no clauses, so a
// commented-out line cannot override an active one. Clause lines are
// matched independently and the last occurrence wins, so hand-edited
// files with repeated clauses still parse. A file that yields no
// vendor id or no symlink is rejected.
func Parse(r io.Reader, path string) (Rule, error) {
	rule := Rule{
		FilePath: path,
		Priority: priorityFromName(filepath.Base(path)),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, deviceComment) {
			if _, after, found := strings.Cut(line, ":"); found {
				rule.Name = strings.TrimSpace(after)
			}
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if m := vendorRe.FindStringSubmatch(line); m != nil {
			rule.VendorID = device.FormatHexID(m[1])
		}
		if m := productRe.FindStringSubmatch(line); m != nil {
			rule.ProductID = device.FormatHexID(m[1])
		}
		if m := serialRe.FindStringSubmatch(line); m != nil {
			rule.Serial = m[1]
		}
		if m := symlinkRe.FindStringSubmatch(line); m != nil {
			rule.Symlink = m[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return Rule{}, fmt.Errorf("read %s: %w", path, err)
	}

	if !rule.WellFormed() {
		return Rule{}, fmt.Errorf("%s: no vendor id or symlink clause", filepath.Base(path))
	}
	if rule.Name == "" {
		rule.Name = rule.Symlink
	}
	return rule, nil
}

func priorityFromName(base string) int {
	if len(base) < 2 {
		return DefaultPriority
	}
	if n, err := strconv.Atoi(base[:2]); err == nil && n >= 0 {
		return n
	}
	return DefaultPriority
}

func safeQuoted(v string) bool {
	for _, r := range v {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

func commentSafe(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.ReplaceAll(v, "\n", " ")
}
