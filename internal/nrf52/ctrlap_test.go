package nrf52_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/nrf52"
)

var _ = Describe("EraseAll", func() {
	It("clears DP errors, pulses reset, and restores MEM-AP selection on success", func() {
		ap := newFakeCtrlAP()
		ap.statusReadsUntilZero = 2

		err := nrf52.EraseAll(context.Background(), ap)

		Expect(err).NotTo(HaveOccurred())
		Expect(ap.clearCalls).To(BeNumerically(">=", 2))
		Expect(ap.selectCalls).To(Equal(1))
	})

	It("continues (with a warning, not a failure) when CTRL-AP IDR mismatches", func() {
		ap := newFakeCtrlAP()
		ap.regs[0xFC] = 0x1234_0000

		err := nrf52.EraseAll(context.Background(), ap)

		Expect(err).NotTo(HaveOccurred())
	})

	It("surfaces a transport error immediately instead of exhausting the erase budget", func() {
		ap := newFakeCtrlAP()
		ap.failStatusWith = coreerr.New(coreerr.Timeout, "no target present")

		err := nrf52.EraseAll(context.Background(), ap)

		Expect(coreerr.Is(err, coreerr.Timeout)).To(BeTrue())
	})
})
