package nrf52_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/reverse-bike/sdcfw/internal/nrf52"
)

var _ = Describe("ReadDeviceInfo", func() {
	It("decodes a factory nRF52832's identity fields", func() {
		m := newFakeMem()
		m.words[nrf52.FICRBase+0x100] = 0x52832
		m.words[nrf52.FICRBase+0x104] = 0x41414330 // "AAC0"
		m.words[nrf52.FICRBase+0x108] = 0x2000      // QFAA package
		m.words[nrf52.FICRBase+0x10C] = 64
		m.words[nrf52.FICRBase+0x110] = 512

		info, err := nrf52.ReadDeviceInfo(context.Background(), m)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Part).To(Equal(uint32(0x52832)))
		Expect(info.VariantString()).To(Equal("AAC0"))
		Expect(info.PackageName()).To(Equal("QF"))
		Expect(info.RAMKB).To(Equal(uint32(64)))
		Expect(info.FlashKB).To(Equal(uint32(512)))
		Expect(info.FlashBytes()).To(Equal(uint32(524288)))
	})

	It("reports an unknown package code as Unknown", func() {
		info := nrf52.DeviceInfo{Package: 0x9999}
		Expect(info.PackageName()).To(Equal("Unknown"))
	})
})

var _ = Describe("UicrRegisters", func() {
	It("reports approtect enabled when the low byte is zero", func() {
		u := nrf52.UicrRegisters{Approtect: 0xFFFFFF00}
		Expect(u.ApprotectString()).To(Equal("Enabled"))
	})

	It("reports approtect disabled otherwise", func() {
		u := nrf52.UicrRegisters{Approtect: 0xFFFFFFFF}
		Expect(u.ApprotectString()).To(Equal("Disabled"))
	})

	It("renders a disconnected reset pin", func() {
		u := nrf52.UicrRegisters{PSELReset0: 1 << 31}
		Expect(u.PSELReset0String()).To(Equal("Disconnected"))
	})

	It("renders a connected reset pin number", func() {
		u := nrf52.UicrRegisters{PSELReset1: 21}
		Expect(u.PSELReset1String()).To(Equal("Pin 21"))
	})

	It("selects GPIO vs NFC antenna from bit 0", func() {
		Expect(nrf52.UicrRegisters{NFCPins: 0}.NFCPinsString()).To(Equal("GPIO"))
		Expect(nrf52.UicrRegisters{NFCPins: 1}.NFCPinsString()).To(Equal("NFC Antenna"))
	})

	It("reports NRFFW0 not set when 0xFFFFFFFF", func() {
		Expect(nrf52.UicrRegisters{NRFFW0: 0xFFFFFFFF}.NRFFW0String()).To(Equal("Not Set"))
	})
})
