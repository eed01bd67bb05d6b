package dap

import "time"

// DP register addresses. The same 2-bit address means a
// different register depending on read/write direction, per ADIv5.
const (
	dpAddrIDCODEOrABORT uint8 = 0x0 // read: DPIDR, write: ABORT
	dpAddrCTRLSTAT      uint8 = 0x4 // read/write: CTRL/STAT (SELECT.CTRLSEL=0)
	dpAddrSELECTOrRESEND uint8 = 0x8 // read: RESEND, write: SELECT
	dpAddrRDBUFF        uint8 = 0xC // read-only: last AP read result
)

// CTRL/STAT bits used during power-up negotiation and sticky-error clear.
const (
	ctrlStatCSYSPWRUPREQ uint32 = 1 << 30
	ctrlStatCSYSPWRUPACK uint32 = 1 << 31
	ctrlStatCDBGPWRUPREQ uint32 = 1 << 28
	ctrlStatCDBGPWRUPACK uint32 = 1 << 29

	// Sticky-error clear mask issued after a WAIT/FAULT response.
	ctrlStatClearErrors uint32 = 0x0000001E
)

// MEM-AP #0 is the target's main memory access port; CTRL-AP #1 is the
// nRF-specific recovery port.
const (
	MemAPSel  uint8 = 0
	CtrlAPSel uint8 = 1
)

const (
	registerAccessTimeout = 1 * time.Second
	blockAccessTimeout    = 2 * time.Second
	powerUpPollInterval   = 5 * time.Millisecond
	powerUpPollBudget     = 200 * time.Millisecond
)

// jtagToSWDSwitch is the standard 16-bit JTAG-to-SWD switch sequence
// (0xE79E, LSB first); Connect sends it between two lineResetOnes line
// resets (>=50 SWCLK cycles with SWDIO high), the sequence every ADIv5
// SWD connect uses.
var lineResetOnes = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF} // 56 bits high
var jtagToSWDSwitch = []byte{0x9E, 0xE7}                            // 0xE79E, little-endian bit order
var idleBits = []byte{0x00}
