package rules_test

import (
	"strings"
	"time"

	"github.com/easytty/easytty/internal/rules"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var renderedAt = time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

var _ = Describe("Render", func() {
	It("should produce the full rule file for a serial-bearing device", func() {
		content, err := rules.Render(serialAdapter(), "RS485_1", renderedAt)
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(Equal(`# EasyTTY auto-generated rule
# Device: FT232R USB UART (/dev/ttyUSB0)
# Vendor: FTDI (0403)
# Product: FT232R USB UART (6001)
# Serial: A5002Tkc
# Original: /dev/ttyUSB0
# Created: Fri Mar 14 09:26:53 UTC 2025

SUBSYSTEM=="tty", ATTRS{idVendor}=="0403", ATTRS{idProduct}=="6001", ATTRS{serial}=="A5002Tkc", SYMLINK+="RS485_1", MODE="0666"
`))
	})

	It("should omit the serial clause and comment for serial-less devices", func() {
		content, err := rules.Render(serialLessAdapter(), "CONV", renderedAt)
		Expect(err).NotTo(HaveOccurred())
		Expect(content).NotTo(ContainSubstring("ATTRS{serial}"))
		Expect(content).NotTo(ContainSubstring("# Serial:"))
		Expect(content).To(ContainSubstring(`SUBSYSTEM=="tty", ATTRS{idVendor}=="1a86", ATTRS{idProduct}=="7523", SYMLINK+="CONV", MODE="0666"`))
	})

	It("should reject serials that cannot sit inside a quoted token", func() {
		d := serialAdapter()
		d.Serial = `A"B`
		_, err := rules.Render(d, "RS485_1", renderedAt)
		Expect(err).To(MatchError(rules.ErrUnsafeValue))

		d.Serial = "A\\B"
		_, err = rules.Render(d, "RS485_1", renderedAt)
		Expect(err).To(MatchError(rules.ErrUnsafeValue))

		d.Serial = "A\nB"
		_, err = rules.Render(d, "RS485_1", renderedAt)
		Expect(err).To(MatchError(rules.ErrUnsafeValue))
	})

	It("should flatten line breaks smuggled into comment fields", func() {
		d := serialLessAdapter()
		d.Product = "USB\nSerial"
		content, err := rules.Render(d, "CONV", renderedAt)
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(ContainSubstring("# Product: USB Serial (7523)"))
		for _, line := range strings.Split(content, "\n") {
			if line == "" {
				continue
			}
			Expect(line).To(Or(HavePrefix("#"), HavePrefix("SUBSYSTEM==")))
		}
	})
})

var _ = Describe("FileName", func() {
	It("should compose priority, tag and symlink", func() {
		Expect(rules.FileName(99, "easytty", "RS485_1")).To(Equal("99-easytty-RS485_1.rules"))
	})

	It("should zero-pad single-digit priorities", func() {
		Expect(rules.FileName(5, "easytty", "gps")).To(Equal("05-easytty-gps.rules"))
	})
})

var _ = Describe("Parse", func() {
	It("should round-trip rendered content", func() {
		content, err := rules.Render(serialAdapter(), "RS485_1", renderedAt)
		Expect(err).NotTo(HaveOccurred())

		rule, err := rules.Parse(strings.NewReader(content), "/etc/udev/rules.d/99-easytty-RS485_1.rules")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Name).To(Equal("FT232R USB UART (/dev/ttyUSB0)"))
		Expect(rule.VendorID).To(Equal("0403"))
		Expect(rule.ProductID).To(Equal("6001"))
		Expect(rule.Serial).To(Equal("A5002Tkc"))
		Expect(rule.Symlink).To(Equal("RS485_1"))
		Expect(rule.Priority).To(Equal(99))
		Expect(rule.FilePath).To(Equal("/etc/udev/rules.d/99-easytty-RS485_1.rules"))
	})

	It("should let the last occurrence of a clause win", func() {
		content := `SUBSYSTEM=="tty", ATTRS{idVendor}=="0403", ATTRS{idProduct}=="6001", SYMLINK+="first"
SYMLINK+="second"
ATTRS{idProduct}=="6015"
`
		rule, err := rules.Parse(strings.NewReader(content), "/x/99-easytty-a.rules")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Symlink).To(Equal("second"))
		Expect(rule.ProductID).To(Equal("6015"))
	})

	It("should ignore clauses on comment lines", func() {
		content := `# Device: Bench Scale (/dev/ttyUSB0)
SUBSYSTEM=="tty", ATTRS{idVendor}=="0403", ATTRS{idProduct}=="6001", SYMLINK+="active"
# previous name: SYMLINK+="retired"
  # ATTRS{serial}=="OLDSER"
`
		rule, err := rules.Parse(strings.NewReader(content), "/x/99-easytty-active.rules")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Symlink).To(Equal("active"))
		Expect(rule.Serial).To(BeEmpty())
		Expect(rule.Kind()).To(Equal(rules.MatchShared))
	})

	It("should normalize uppercase hex ids", func() {
		content := `ATTRS{idVendor}=="04A3", ATTRS{idProduct}=="B001", SYMLINK+="x"
`
		rule, err := rules.Parse(strings.NewReader(content), "/x/99-easytty-x.rules")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.VendorID).To(Equal("04a3"))
		Expect(rule.ProductID).To(Equal("b001"))
	})

	It("should take the display name from the Device comment", func() {
		content := `# Device: Bench Meter (/dev/ttyUSB2)
ATTRS{idVendor}=="0403", SYMLINK+="meter"
`
		rule, err := rules.Parse(strings.NewReader(content), "/x/99-easytty-meter.rules")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Name).To(Equal("Bench Meter (/dev/ttyUSB2)"))
	})

	It("should fall back to the symlink as display name", func() {
		content := `ATTRS{idVendor}=="0403", SYMLINK+="meter"
`
		rule, err := rules.Parse(strings.NewReader(content), "/x/99-easytty-meter.rules")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Name).To(Equal("meter"))
	})

	It("should derive the priority from the filename", func() {
		content := `ATTRS{idVendor}=="0403", SYMLINK+="gps"
`
		rule, err := rules.Parse(strings.NewReader(content), "/x/10-easytty-gps.rules")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Priority).To(Equal(10))
	})

	It("should default the priority for non-numeric prefixes", func() {
		content := `ATTRS{idVendor}=="0403", SYMLINK+="gps"
`
		for _, name := range []string{"/x/zz-easytty-gps.rules", "/x/9-easytty-gps.rules", "/x/r.rules"} {
			rule, err := rules.Parse(strings.NewReader(content), name)
			Expect(err).NotTo(HaveOccurred())
			Expect(rule.Priority).To(Equal(99))
		}
	})

	It("should reject content without a vendor id", func() {
		content := `SUBSYSTEM=="tty", SYMLINK+="orphan"
`
		_, err := rules.Parse(strings.NewReader(content), "/x/99-easytty-orphan.rules")
		Expect(err).To(HaveOccurred())
	})

	It("should reject content without a symlink", func() {
		content := `SUBSYSTEM=="tty", ATTRS{idVendor}=="0403"
`
		_, err := rules.Parse(strings.NewReader(content), "/x/99-easytty-orphan.rules")
		Expect(err).To(HaveOccurred())
	})

	It("should reject arbitrary text", func() {
		_, err := rules.Parse(strings.NewReader("not a rule at all\n"), "/x/99-easytty-junk.rules")
		Expect(err).To(HaveOccurred())
	})
})
