package nrf52

import (
	"context"
	"fmt"
)

// UicrRegisters holds the raw UICR fields the operations layer cares
// about.
type UicrRegisters struct {
	PSELReset0 uint32
	PSELReset1 uint32
	Approtect  uint32
	NFCPins    uint32
	NRFFW0     uint32
	NRFFW1     uint32
}

// ReadUICR issues the six UICR field reads a device-info dump needs.
func ReadUICR(ctx context.Context, m Mem) (UicrRegisters, error) {
	var u UicrRegisters
	fields := []ficrField{
		{uicrPSELReset0, &u.PSELReset0},
		{uicrPSELReset1, &u.PSELReset1},
		{uicrApprotect, &u.Approtect},
		{uicrNFCPins, &u.NFCPins},
		{uicrNRFFW0, &u.NRFFW0},
		{uicrNRFFW1, &u.NRFFW1},
	}
	for _, f := range fields {
		v, err := m.ReadU32(ctx, UICRBase+f.off)
		if err != nil {
			return UicrRegisters{}, err
		}
		*f.dst = v
	}
	return u, nil
}

// ReadUICRBinary reads the full 1-KiB UICR page as a block.
func ReadUICRBinary(ctx context.Context, m Mem) ([]uint32, error) {
	return m.ReadBlock(ctx, UICRBase, int(UICRSize/4))
}

// ApprotectString reports whether readback protection is enabled:
// "Enabled" iff the low byte equals 0x00.
func (u UicrRegisters) ApprotectString() string {
	if u.Approtect&0xFF == 0x00 {
		return "Enabled"
	}
	return "Disabled"
}

// pselResetString renders one PSELRESET register: bit 31 set
// means the reset pin function is disconnected; otherwise the low byte is
// the GPIO pin number.
func pselResetString(v uint32) string {
	if v&(1<<31) != 0 {
		return "Disconnected"
	}
	return fmt.Sprintf("Pin %d", v&0xFF)
}

// PSELReset0String renders PSELRESET0.
func (u UicrRegisters) PSELReset0String() string { return pselResetString(u.PSELReset0) }

// PSELReset1String renders PSELRESET1.
func (u UicrRegisters) PSELReset1String() string { return pselResetString(u.PSELReset1) }

// NFCPinsString reports the NFC pin function selection: bit 0
// selects GPIO vs. NFC antenna.
func (u UicrRegisters) NFCPinsString() string {
	if u.NFCPins&1 != 0 {
		return "NFC Antenna"
	}
	return "GPIO"
}

// NRFFW0String reports whether the NRFFW0 slot has been programmed:
// 0xFFFFFFFF means "Not Set".
func (u UicrRegisters) NRFFW0String() string {
	if u.NRFFW0 == 0xFFFFFFFF {
		return "Not Set"
	}
	return fmt.Sprintf("0x%08x", u.NRFFW0)
}
