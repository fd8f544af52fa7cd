package app_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/easytty/easytty/internal/app"
	"github.com/easytty/easytty/internal/device"
	"github.com/easytty/easytty/internal/rules"
	"github.com/easytty/easytty/internal/system"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// scaleRule is a rule file as a previous session would have written it.
const scaleRule = `# EasyTTY auto-generated rule
# Device: Bench Scale (/dev/ttyUSB0)
SUBSYSTEM=="tty", ATTRS{idVendor}=="0403", ATTRS{idProduct}=="6001", ATTRS{serial}=="X1", SYMLINK+="SCALE", MODE="0666"
`

var _ = Describe("Session", func() {
	var (
		rulesDir string
		store    *rules.Store
		runner   *countingRunner
	)

	BeforeEach(func() {
		rulesDir = GinkgoT().TempDir()
		path := filepath.Join(rulesDir, "10-easytty-SCALE.rules")
		Expect(os.WriteFile(path, []byte(scaleRule), 0o644)).To(Succeed())

		store = rules.NewStore(rules.Options{Dir: rulesDir, DevDir: GinkgoT().TempDir()}, directOps{})
		runner = &countingRunner{}
	})

	// runWith scripts one session over the given scanner and the seeded
	// rule file.
	runWith := func(scanner app.DeviceScanner, input string) (string, error) {
		admin, err := system.NewAdmin(runner, "udevadm control --reload-rules", "udevadm trigger", false)
		Expect(err).NotTo(HaveOccurred())

		var out bytes.Buffer
		term := app.NewTerminal(strings.NewReader(input), &out)
		sess := app.NewSession(app.New(scanner, store, admin), term, nil, false)
		err = sess.Run()
		return out.String(), err
	}

	// runSession scripts one session over an empty device list.
	runSession := func(input string) (string, error) {
		return runWith(&fakeScanner{}, input)
	}

	It("should greet, show the summary line and quit on q", func() {
		out, err := runSession("q\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("easytty: stable names for USB serial devices"))
		Expect(out).To(ContainSubstring("1 rule(s) installed"))
	})

	It("should treat end of input as a clean quit", func() {
		out, err := runSession("")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("=== easytty ==="))
	})

	It("should report when no devices are connected", func() {
		out, err := runSession("1\nq\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No USB serial devices found."))
	})

	It("should show devices that appear while the menu is open", func() {
		meter := device.Device{
			DevPath:   "/dev/ttyACM0",
			DevNode:   "ttyACM0",
			Subsystem: "tty",
			VendorID:  "2341",
			ProductID: "0043",
			Serial:    "M100",
			Product:   "USB Meter",
		}
		scanner := &fakeScanner{scans: [][]device.Device{
			{ftdiDevice()},
			{ftdiDevice()},
			{ftdiDevice(), meter},
		}}

		out, err := runWith(scanner, "1\n1\nq\nq\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("/dev/ttyACM0"))
		Expect(out).To(ContainSubstring("2341:0043"))
	})

	It("should show the rule file from the rule menu", func() {
		out, err := runSession("2\n1\n1\nq\nq\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Device:  Bench Scale (/dev/ttyUSB0)"))
		Expect(out).To(ContainSubstring("Active:  No"))
		Expect(out).To(ContainSubstring("# EasyTTY auto-generated rule"))
		Expect(out).To(ContainSubstring(`SYMLINK+="SCALE"`))
	})

	It("should delete a rule after confirmation without touching udev", func() {
		out, err := runSession("2\n1\n2\ny\nq\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Delete the rule for Bench Scale (/dev/ttyUSB0)? [y/N]:"))
		Expect(out).To(ContainSubstring("Rule removed."))
		Expect(out).To(ContainSubstring("0 rule(s) installed"))
		Expect(store.Rules()).To(BeEmpty())
		Expect(runner.calls).To(BeZero())
	})

	It("should keep the rule when the deletion is not confirmed", func() {
		out, err := runSession("2\n1\n2\nn\nq\nq\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("Rule removed."))
		Expect(store.Rules()).To(HaveLen(1))
		Expect(runner.calls).To(BeZero())
	})

	It("should apply deletions through udev once auto-apply is on", func() {
		out, err := runSession("6\n2\n1\n2\ny\nq\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Auto-apply after changes is now on"))
		Expect(out).To(ContainSubstring("Rule removed."))
		Expect(store.Rules()).To(BeEmpty())
		Expect(runner.calls).To(Equal(2))
	})

	It("should reload and trigger udev on demand", func() {
		out, err := runSession("3\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("udev rules reloaded and triggered."))
		Expect(runner.calls).To(Equal(2))
	})

	It("should answer an inspect on an unknown path", func() {
		out, err := runSession("5\n/dev/ttyUSB9\nq\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Device path:"))
		Expect(out).To(ContainSubstring("No device found at /dev/ttyUSB9."))
	})
})
