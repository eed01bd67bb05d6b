package nrf52

import (
	"context"
	"fmt"
	"strings"
)

// DeviceInfo is a read-only snapshot of the FICR device-identity page.
type DeviceInfo struct {
	Part           uint32
	Variant        uint32
	Package        uint32
	RAMKB          uint32
	FlashKB        uint32
	DeviceID       [2]uint32
	DeviceAddr     [2]uint32
	DeviceAddrType uint32
	CodePageSize   uint32
	CodeSize       uint32
}

// packageNames maps the FICR INFO.PACKAGE code to its marking.
var packageNames = map[uint32]string{
	0x2000: "QF",
	0x2001: "CH",
	0x2002: "CI",
	0x2005: "QK",
}

// PackageName returns the package marking for this device, or "Unknown"
// for a code absent from the fixed table.
func (d DeviceInfo) PackageName() string {
	if name, ok := packageNames[d.Package]; ok {
		return name
	}
	return "Unknown"
}

// VariantString renders Variant as four ASCII bytes, MSB first, trailing
// NULs stripped.
func (d DeviceInfo) VariantString() string {
	b := []byte{
		byte(d.Variant >> 24),
		byte(d.Variant >> 16),
		byte(d.Variant >> 8),
		byte(d.Variant),
	}
	return strings.TrimRight(string(b), "\x00")
}

// FlashBytes is the target's total flash size in bytes.
func (d DeviceInfo) FlashBytes() uint32 { return d.FlashKB * 1024 }

// ficrField pairs a FICR offset with where its value lands in DeviceInfo.
type ficrField struct {
	off uint32
	dst *uint32
}

// ReadDeviceInfo issues the FICR reads that make up a DeviceInfo snapshot.
func ReadDeviceInfo(ctx context.Context, m Mem) (DeviceInfo, error) {
	var info DeviceInfo
	fields := []ficrField{
		{ficrInfoPart, &info.Part},
		{ficrInfoVariant, &info.Variant},
		{ficrInfoPackage, &info.Package},
		{ficrInfoRAM, &info.RAMKB},
		{ficrInfoFlash, &info.FlashKB},
		{ficrDeviceID0, &info.DeviceID[0]},
		{ficrDeviceID1, &info.DeviceID[1]},
		{ficrDeviceAddrType, &info.DeviceAddrType},
		{ficrDeviceAddr0, &info.DeviceAddr[0]},
		{ficrDeviceAddr1, &info.DeviceAddr[1]},
		{ficrCodePageSize, &info.CodePageSize},
		{ficrCodeSize, &info.CodeSize},
	}

	for _, f := range fields {
		v, err := m.ReadU32(ctx, FICRBase+f.off)
		if err != nil {
			return DeviceInfo{}, err
		}
		*f.dst = v
	}

	return info, nil
}

// String renders a DeviceInfo the way read_info prints it.
func (d DeviceInfo) String() string {
	return fmt.Sprintf(
		"part=0x%05x variant=%s package=%s ram=%dKB flash=%dKB deviceID=%08x%08x",
		d.Part, d.VariantString(), d.PackageName(), d.RAMKB, d.FlashKB, d.DeviceID[1], d.DeviceID[0],
	)
}
