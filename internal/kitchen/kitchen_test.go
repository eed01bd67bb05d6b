package kitchen_test

import (
	"bytes"
	"encoding/binary"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/kitchen"
	"github.com/reverse-bike/sdcfw/internal/nrf52"
)

// buildImage constructs a minimal synthetic flash image with a
// bootloader settings page whose bank0 covers an application region
// filled with recognizable bytes, and whose header/app CRCs are
// correct at construction time.
func buildImage(size int, appSize uint32) []byte {
	image := make([]byte, size)
	for i := range image {
		image[i] = 0xFF
	}
	for i := uint32(0); i < appSize; i++ {
		image[nrf52.AppImageBase+i] = byte(i)
	}

	settings := nrf52.BootloaderSettings{
		SettingsVersion: 1,
		Bank0:           nrf52.Bank{ImageSize: appSize, BankCode: nrf52.NRFDFUBankValidApp},
	}
	settings.Bank0.ImageCRC = nrf52.CRC32(image[nrf52.AppImageBase : nrf52.AppImageBase+appSize])
	words := settings.Encode()
	buf := make([]byte, nrf52.BLSettingsBytes)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	settings.CRC = nrf52.CRC32(buf[4:])
	binary.LittleEndian.PutUint32(buf, settings.CRC)
	copy(image[nrf52.BLSettingsAddr:], buf)

	return image
}

func hexOf(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, v := range b {
		out = append(out, digits[v>>4], digits[v&0xF])
	}
	return string(out)
}

var _ = Describe("Verify and Apply", func() {
	It("verifies a string patch, applies it, then rejects re-verifying the patched output", func() {
		image := buildImage(0x80000, 0x1000)
		copy(image[0x100:], []byte("versions"))

		p := kitchen.Patch{
			Type:        kitchen.KindString,
			Description: "rename versions field",
			Address:     0x100,
			Original:    "versions",
			Data:        "versionz",
		}

		plan, err := kitchen.Verify(image, []kitchen.Patch{p})
		Expect(err).NotTo(HaveOccurred())
		out := kitchen.Apply(image, plan)
		Expect(string(out[0x100:0x108])).To(Equal("versionz"))

		_, err = kitchen.Verify(out, []kitchen.Patch{p})
		Expect(coreerr.Is(err, coreerr.InvalidData)).To(BeTrue())
	})

	It("treats u16/u32 patch literals as big-endian on disk", func() {
		image := buildImage(0x80000, 0x1000)
		// "bytes 23 01" on disk represents the value 0x2301 in the
		// hex-viewer convention, not 0x0123.
		image[0x200] = 0x23
		image[0x201] = 0x01

		p := kitchen.Patch{
			Type:     kitchen.KindU16,
			Address:  0x200,
			Original: "0x2301",
			Data:     "0x2303",
		}

		plan, err := kitchen.Verify(image, []kitchen.Patch{p})
		Expect(err).NotTo(HaveOccurred())
		out := kitchen.Apply(image, plan)
		Expect(out[0x200:0x202]).To(Equal([]byte{0x23, 0x03}))
	})

	It("requires a find_replace pattern to occur exactly once", func() {
		image := buildImage(0x80000, 0x1000)
		key := bytes.Repeat([]byte{0xAB}, 64)
		copy(image[0x400:], key)

		p := kitchen.Patch{
			Type:    kitchen.KindFindReplace,
			Find:    hexOf(key),
			Replace: hexOf(bytes.Repeat([]byte{0xCD}, 64)),
		}

		plan, err := kitchen.Verify(image, []kitchen.Patch{p})
		Expect(err).NotTo(HaveOccurred())
		out := kitchen.Apply(image, plan)
		Expect(out[0x400:0x440]).To(Equal(bytes.Repeat([]byte{0xCD}, 64)))

		// Inject a second copy: the same patch must now fail.
		dup := make([]byte, len(image))
		copy(dup, image)
		copy(dup[0x600:], key)
		_, err = kitchen.Verify(dup, []kitchen.Patch{p})
		Expect(coreerr.Is(err, coreerr.InvalidData)).To(BeTrue())

		// Zero matches also fails.
		zero := buildImage(0x80000, 0x1000)
		_, err = kitchen.Verify(zero, []kitchen.Patch{p})
		Expect(coreerr.Is(err, coreerr.InvalidData)).To(BeTrue())
	})

	It("aborts before any write when one of several patches fails", func() {
		image := buildImage(0x80000, 0x1000)
		copy(image[0x100:], []byte("versions"))

		good := kitchen.Patch{Type: kitchen.KindString, Address: 0x100, Original: "versions", Data: "versionz"}
		bad := kitchen.Patch{Type: kitchen.KindString, Address: 0x300, Original: "nomatch!", Data: "whatever"}

		_, err := kitchen.Verify(image, []kitchen.Patch{good, bad})
		Expect(coreerr.Is(err, coreerr.InvalidData)).To(BeTrue())
	})
})

var _ = Describe("Run", func() {
	It("recomputes the app and settings CRC", func() {
		image := buildImage(0x80000, 0x1000)
		copy(image[0x100:], []byte("versions"))

		pf := &kitchen.PatchFile{
			Patches: []kitchen.Patch{
				{Type: kitchen.KindString, Address: 0x100, Original: "versions", Data: "versionz"},
			},
		}

		out, err := kitchen.Run(image, pf)
		Expect(err).NotTo(HaveOccurred())

		settings, err := nrf52.BootloaderSettingsFromBytes(out[nrf52.BLSettingsAddr:])
		Expect(err).NotTo(HaveOccurred())

		wantAppCRC := nrf52.CRC32(out[nrf52.AppImageBase : nrf52.AppImageBase+settings.Bank0.ImageSize])
		Expect(settings.Bank0.ImageCRC).To(Equal(wantAppCRC))
		Expect(settings.HeaderValid()).To(BeTrue())
	})

	It("is idempotent only when original equals data", func() {
		image := buildImage(0x80000, 0x1000)
		image[0x50] = 0x00

		degenerate := &kitchen.PatchFile{
			Patches: []kitchen.Patch{
				{Type: kitchen.KindU8, Address: 0x50, Original: "0", Data: "0"},
			},
		}
		out1, err := kitchen.Run(image, degenerate)
		Expect(err).NotTo(HaveOccurred())
		_, err = kitchen.Run(out1, degenerate)
		Expect(err).NotTo(HaveOccurred(), "degenerate patch should re-apply cleanly")

		real := &kitchen.PatchFile{
			Patches: []kitchen.Patch{
				{Type: kitchen.KindU8, Address: 0x50, Original: "0", Data: "1"},
			},
		}
		out3, err := kitchen.Run(image, real)
		Expect(err).NotTo(HaveOccurred())
		_, err = kitchen.Run(out3, real)
		Expect(coreerr.Is(err, coreerr.InvalidData)).To(BeTrue(), "re-running a non-degenerate patch set should fail verification")
	})

	It("preserves the SoftDevice and application regions when cleaning", func() {
		image := buildImage(0x80000, 0x1000)
		image[0x50000] = 0x42 // inside neither preserved region

		pf := &kitchen.PatchFile{CleanRegions: kitchen.DefaultCleanRegions()}
		out, err := kitchen.Run(image, pf)
		Expect(err).NotTo(HaveOccurred())

		Expect(out[0x50000]).To(Equal(byte(0xFF)), "region outside the clean list should be blanked")
		Expect(out[nrf52.AppImageBase : nrf52.AppImageBase+0x1000]).
			To(Equal(image[nrf52.AppImageBase : nrf52.AppImageBase+0x1000]),
				"application region should survive cleaning unchanged")
	})
})

var _ = Describe("OutputPath", func() {
	It("joins the project root, firmware directory, and postfix", func() {
		got := kitchen.OutputPath("/proj", "firmware/app.bin", "-patched")
		Expect(got).To(Equal("/proj/firmware/app-patched.bin"))
	})
})
