// Package nrf52 is the nRF52 NVM controller: the
// address map, the NVMC write discipline, the FICR/UICR/bootloader-
// settings decoders, and the CTRL-AP ERASEALL recovery procedure. It
// drives an internal/memio.Engine; only the CTRL-AP erase drives the
// DP/AP driver's AP accesses directly, and nothing here touches the probe
// transport.
package nrf52

// Fixed nRF52832 memory map.
const (
	FICRBase        uint32 = 0x1000_0000
	UICRBase        uint32 = 0x1000_1000
	UICRSize        uint32 = 0x400
	NVMCReady       uint32 = 0x4001_E400
	NVMCConfig      uint32 = 0x4001_E504
	NVMCEraseAll    uint32 = 0x4001_E50C
	NVMCErasePage   uint32 = 0x4001_E508
	FlashBase       uint32 = 0x0000_0000
	BLSettingsAddr  uint32 = 0x0007_F000
	FlashPageBytes  uint32 = 4096
	AppImageBase    uint32 = 0x0002_3000
)

// FICR field offsets from FICRBase, per the vendor register map.
// read_device_info issues twelve FICR word reads at these fixed offsets
// (ten fields, DEVICEID and DEVICEADDR being two words each).
const (
	ficrCodePageSize   uint32 = 0x010
	ficrCodeSize       uint32 = 0x014
	ficrDeviceID0      uint32 = 0x060
	ficrDeviceID1      uint32 = 0x064
	ficrDeviceAddrType uint32 = 0x0A0
	ficrDeviceAddr0    uint32 = 0x0A4
	ficrDeviceAddr1    uint32 = 0x0A8
	ficrInfoPart       uint32 = 0x100
	ficrInfoVariant    uint32 = 0x104
	ficrInfoPackage    uint32 = 0x108
	ficrInfoRAM        uint32 = 0x10C
	ficrInfoFlash      uint32 = 0x110
)

// UICR field offsets from UICRBase.
const (
	uicrPSELReset0 uint32 = 0x200
	uicrPSELReset1 uint32 = 0x204
	uicrApprotect  uint32 = 0x208
	uicrNFCPins    uint32 = 0x20C
	uicrNRFFW0     uint32 = 0x014
	uicrNRFFW1     uint32 = 0x018
)

// NVMC CONFIG register values.
const (
	nvmcConfigReadOnly uint32 = 0x00
	nvmcConfigWEN      uint32 = 0x01
	nvmcConfigEEN      uint32 = 0x02
)

// CTRL-AP register offsets. Addressed
// through internal/dap.Session.{Read,Write}AP with apsel = CtrlAPSel.
const (
	ctrlAPReset             uint8 = 0x00
	ctrlAPEraseAll          uint8 = 0x04
	ctrlAPEraseAllStatus    uint8 = 0x08
	ctrlAPIDR               uint8 = 0xFC
	ctrlAPExpectedIDR       uint32 = 0x0288_0000
)
