package probe

import "time"

// Reference VID/PID for the debug probe this toolkit targets.
// A caller may override with any other VID/PID pair via Open.
const (
	DefaultVID = 0x303A
	DefaultPID = 0x1002
)

// CMSIS-DAP HID report size used by this probe family. Bulk endpoints on
// WinUSB-mode probes use the same fixed packet size.
const packetSize = 64

const (
	writeTimeout = 1 * time.Second
	readTimeout  = 1 * time.Second
)
