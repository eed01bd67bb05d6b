package nrf52_test

import (
	"context"
	"encoding/binary"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/reverse-bike/sdcfw/internal/nrf52"
)

func sampleSettings() nrf52.BootloaderSettings {
	s := nrf52.BootloaderSettings{
		SettingsVersion:   1,
		AppVersion:        3,
		BootloaderVersion: 2,
		BankLayout:        0,
		BankCurrent:       0,
		Bank0:             nrf52.Bank{ImageSize: 0x1000, ImageCRC: 0xAABBCCDD, BankCode: nrf52.NRFDFUBankValidApp},
		Bank1:             nrf52.Bank{},
		WriteOffset:       0x1000,
		SDSize:            0x1F000,
	}
	s.CRC = nrf52.CRC32(headerBytesFor(s))
	return s
}

func headerBytesFor(s nrf52.BootloaderSettings) []byte {
	words := s.Encode()[1:]
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}

var _ = Describe("BootloaderSettings", func() {
	It("round-trips through Encode/Decode", func() {
		s := sampleSettings()
		decoded, err := nrf52.DecodeBootloaderSettings(s.Encode())
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(s))
	})

	It("validates its own header CRC once correctly computed", func() {
		s := sampleSettings()
		Expect(s.HeaderValid()).To(BeTrue())
	})

	It("reports an invalid header CRC when tampered", func() {
		s := sampleSettings()
		s.AppVersion++
		Expect(s.HeaderValid()).To(BeFalse())
	})

	It("prefers the bank marked valid-app over a larger unmarked bank", func() {
		s := sampleSettings()
		s.Bank1 = nrf52.Bank{ImageSize: 0x9000, ImageCRC: 1, BankCode: 0}
		Expect(s.PreferredAppBank()).To(Equal(s.Bank0))
	})

	It("falls back to any nonzero-size bank when none is marked valid", func() {
		s := sampleSettings()
		s.Bank0.BankCode = 0
		s.Bank1 = nrf52.Bank{ImageSize: 0x500, ImageCRC: 1, BankCode: 0}
		Expect(s.PreferredAppBank()).To(Equal(s.Bank0))
	})

	It("computes AppEnd from bank0's image size", func() {
		s := sampleSettings()
		Expect(s.AppEnd()).To(Equal(nrf52.AppImageBase + s.Bank0.ImageSize))
	})

	It("treats an all-0xFF page as absent, not an error", func() {
		words := make([]uint32, nrf52.BLSettingsWords)
		for i := range words {
			words[i] = 0xFFFFFFFF
		}
		Expect(nrf52.Present(words)).To(BeFalse())
	})
})

var _ = Describe("ReadBootloaderSettings", func() {
	It("reports absent when the page has never been written", func() {
		m := newFakeMem()
		for i := 0; i < nrf52.BLSettingsWords; i++ {
			m.words[nrf52.BLSettingsAddr+uint32(i*4)] = 0xFFFFFFFF
		}
		_, ok, err := nrf52.ReadBootloaderSettings(context.Background(), m)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("decodes a present settings page", func() {
		m := newFakeMem()
		s := sampleSettings()
		for i, w := range s.Encode() {
			m.words[nrf52.BLSettingsAddr+uint32(i*4)] = w
		}
		got, ok, err := nrf52.ReadBootloaderSettings(context.Background(), m)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(s))
	})
})

var _ = Describe("BootloaderSettingsFromBytes", func() {
	It("decodes the same value ReadBootloaderSettings would from device memory", func() {
		s := sampleSettings()
		buf := make([]byte, nrf52.BLSettingsBytes)
		for i, w := range s.Encode() {
			binary.LittleEndian.PutUint32(buf[i*4:], w)
		}
		got, err := nrf52.BootloaderSettingsFromBytes(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(s))
	})

	It("rejects a buffer shorter than the settings page", func() {
		_, err := nrf52.BootloaderSettingsFromBytes(make([]byte, 10))
		Expect(err).To(HaveOccurred())
	})
})
