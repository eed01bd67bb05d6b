package nrf52

import (
	"context"
	"encoding/binary"
	"hash/crc32"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
)

// BLSettingsWords is the length in 32-bit words of the bootloader
// settings page's populated header, read starting at BL_SETTINGS_ADDR.
const BLSettingsWords = 23
const BLSettingsBytes = BLSettingsWords * 4

// NRFDFUBankValidApp is the bank_code bit marking a bank as holding a
// valid, bootable application image.
const NRFDFUBankValidApp uint32 = 0x00000001

// Bank describes one of the two DFU image banks.
type Bank struct {
	ImageSize uint32
	ImageCRC  uint32
	BankCode  uint32
}

// BootloaderSettings decodes the nrf_dfu_settings_t page at
// BLSettingsAddr.
type BootloaderSettings struct {
	CRC                uint32
	SettingsVersion    uint32
	AppVersion         uint32
	BootloaderVersion  uint32
	BankLayout         uint32
	BankCurrent        uint32
	Bank0              Bank
	Bank1              Bank
	WriteOffset        uint32
	SDSize             uint32
	DFUProgress        [8]uint32
	EnterButtonlessDFU uint32
}

// Present reports whether a settings page has actually been written:
// if the first word is 0xFFFFFFFF the page is absent, not an error.
func Present(words []uint32) bool {
	return len(words) > 0 && words[0] != 0xFFFFFFFF
}

// DecodeBootloaderSettings decodes 23 raw words into a BootloaderSettings.
func DecodeBootloaderSettings(words []uint32) (BootloaderSettings, error) {
	if len(words) < BLSettingsWords {
		return BootloaderSettings{}, coreerr.New(coreerr.InvalidData, "bootloader settings buffer too short")
	}
	var s BootloaderSettings
	s.CRC = words[0]
	s.SettingsVersion = words[1]
	s.AppVersion = words[2]
	s.BootloaderVersion = words[3]
	s.BankLayout = words[4]
	s.BankCurrent = words[5]
	s.Bank0 = Bank{ImageSize: words[6], ImageCRC: words[7], BankCode: words[8]}
	s.Bank1 = Bank{ImageSize: words[9], ImageCRC: words[10], BankCode: words[11]}
	s.WriteOffset = words[12]
	s.SDSize = words[13]
	copy(s.DFUProgress[:], words[14:22])
	s.EnterButtonlessDFU = words[22]
	return s, nil
}

// Encode serializes a BootloaderSettings back into 23 little-endian
// words, the inverse of DecodeBootloaderSettings.
func (s BootloaderSettings) Encode() []uint32 {
	words := make([]uint32, BLSettingsWords)
	words[0] = s.CRC
	words[1] = s.SettingsVersion
	words[2] = s.AppVersion
	words[3] = s.BootloaderVersion
	words[4] = s.BankLayout
	words[5] = s.BankCurrent
	words[6], words[7], words[8] = s.Bank0.ImageSize, s.Bank0.ImageCRC, s.Bank0.BankCode
	words[9], words[10], words[11] = s.Bank1.ImageSize, s.Bank1.ImageCRC, s.Bank1.BankCode
	words[12] = s.WriteOffset
	words[13] = s.SDSize
	copy(words[14:22], s.DFUProgress[:])
	words[22] = s.EnterButtonlessDFU
	return words
}

// AppEnd returns APP_END = 0x23000 + bank0.image_size.
func (s BootloaderSettings) AppEnd() uint32 {
	return AppImageBase + s.Bank0.ImageSize
}

// HeaderValid reports whether s.CRC equals the CRC-32 of the settings
// page bytes [4..92).
func (s BootloaderSettings) HeaderValid() bool {
	return s.CRC == CRC32(headerBytes(s))
}

func headerBytes(s BootloaderSettings) []byte {
	words := s.Encode()[1:]
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// PreferredAppBank selects which bank holds the image the bootloader
// will actually boot: the first bank flagged NRFDFUBankValidApp with a
// nonzero size, falling back to the first bank with any nonzero size at
// all. Grounded on the reference dump-cleaning tool's detect_app_size,
// which applies exactly this preference order.
func (s BootloaderSettings) PreferredAppBank() Bank {
	for _, b := range []Bank{s.Bank0, s.Bank1} {
		if b.ImageSize != 0 && b.BankCode&NRFDFUBankValidApp != 0 {
			return b
		}
	}
	for _, b := range []Bank{s.Bank0, s.Bank1} {
		if b.ImageSize != 0 {
			return b
		}
	}
	return Bank{}
}

// CRC32 is the CRC-32 variant this system standardizes on everywhere:
// IEEE 802.3 polynomial, reflected, init/final XOR 0xFFFFFFFF.
// The stdlib IEEE table implements exactly this; no third-party CRC
// implementation in the reference corpus offers a different or more
// convenient variant.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// BootloaderSettingsFromBytes decodes a settings page from a raw byte
// buffer (little-endian words), the form the firmware kitchen works
// with rather than live device memory.
func BootloaderSettingsFromBytes(data []byte) (BootloaderSettings, error) {
	if len(data) < BLSettingsBytes {
		return BootloaderSettings{}, coreerr.New(coreerr.InvalidData, "bootloader settings buffer too short")
	}
	words := make([]uint32, BLSettingsWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return DecodeBootloaderSettings(words)
}

// ReadBootloaderSettings reads and decodes the settings page, returning
// ok=false (not an error) if the page has never been written.
func ReadBootloaderSettings(ctx context.Context, m Mem) (settings BootloaderSettings, ok bool, err error) {
	words, err := m.ReadBlock(ctx, BLSettingsAddr, BLSettingsWords)
	if err != nil {
		return BootloaderSettings{}, false, err
	}
	if !Present(words) {
		return BootloaderSettings{}, false, nil
	}
	settings, err = DecodeBootloaderSettings(words)
	if err != nil {
		return BootloaderSettings{}, false, err
	}
	return settings, true, nil
}
