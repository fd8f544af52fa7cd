package rules_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/easytty/easytty/internal/rules"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Watcher", func() {
	It("should flag external changes to the rules directory", func() {
		dir := GinkgoT().TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var wg sync.WaitGroup

		w, err := rules.NewWatcher(ctx, &wg, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Stale()).To(BeFalse())

		content := `ATTRS{idVendor}=="0403", SYMLINK+="late"` + "\n"
		Expect(os.WriteFile(filepath.Join(dir, "99-easytty-late.rules"),
			[]byte(content), 0o644)).To(Succeed())

		Eventually(w.Stale).Should(BeTrue())

		cancel()
		wg.Wait()
	})

	It("should clear the flag once read", func() {
		dir := GinkgoT().TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var wg sync.WaitGroup

		w, err := rules.NewWatcher(ctx, &wg, dir)
		Expect(err).NotTo(HaveOccurred())

		Expect(os.WriteFile(filepath.Join(dir, "99-easytty-x.rules"), []byte("x\n"), 0o644)).To(Succeed())
		Eventually(w.Stale).Should(BeTrue())
		Eventually(w.Stale).Should(BeFalse())

		cancel()
		wg.Wait()
	})

	It("should fail on a directory that does not exist", func() {
		var wg sync.WaitGroup
		_, err := rules.NewWatcher(context.Background(), &wg, filepath.Join(GinkgoT().TempDir(), "missing"))
		Expect(err).To(HaveOccurred())
	})
})
