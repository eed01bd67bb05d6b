package probe

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP command bytes this toolkit issues. Subset of
// https://arm-software.github.io/CMSIS_5/DAP/html/group__DAP__Commands__gr.html
// — only what the ADIv5/SWD connect sequence and register access need.
type command uint8

const (
	cmdConnect           command = 0x02
	cmdDisconnect        command = 0x03
	cmdTransferConfigure command = 0x04
	cmdTransfer          command = 0x05
	cmdTransferBlock     command = 0x06
	cmdResetTarget       command = 0x0A
	cmdSWJClock          command = 0x11
	cmdSWJSequence       command = 0x12
	cmdSWDConfigure      command = 0x13
)

// ConnectMode selects the wire protocol DAP_Connect brings up. This
// toolkit only ever uses SWD.
type ConnectMode uint8

const ConnectModeSWD ConnectMode = 1

// Op is a single ADIv5 register access kind, encoded into a DAP_Transfer
// request byte.
type Op uint8

const (
	OpRead  Op = iota // bit 1
	OpWrite           // no data bits
)

// Reg addresses either a DP or an AP register through a request byte;
// which is selected by TransferRequest.AP.
type TransferRequest struct {
	AP   bool
	Reg  uint8 // register offset within the DP/AP register bank, 0/4/8/0xC
	Op   Op
	Data uint32 // meaningful only for OpWrite
}

// TransferStatus is the 3-bit ACK field CMSIS-DAP returns after a
// DAP_Transfer or DAP_TransferBlock.
type TransferStatus uint8

const (
	ackOK    TransferStatus = 0x01
	ackWait  TransferStatus = 0x02
	ackFault TransferStatus = 0x04
)

func (s TransferStatus) ack() TransferStatus { return s & 0x07 }

func (s TransferStatus) Ok() bool    { return s.ack() == ackOK }
func (s TransferStatus) Wait() bool  { return s.ack() == ackWait }
func (s TransferStatus) Fault() bool { return s.ack() == ackFault }

func (s TransferStatus) String() string {
	switch s.ack() {
	case ackOK:
		return "OK"
	case ackWait:
		return "WAIT"
	case ackFault:
		return "FAULT"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(s))
	}
}

func newCmd(c command) *bytes.Buffer {
	buf := &bytes.Buffer{}
	buf.WriteByte(uint8(c))
	return buf
}

func (h *Handle) exec(ctx context.Context, args *bytes.Buffer) ([]byte, error) {
	sent := args.Bytes()
	resp, err := h.RawTransfer(ctx, sent)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != sent[0] {
		return nil, fmt.Errorf("probe: response to wrong command (want 0x%02x)", sent[0])
	}
	return resp[1:], nil
}

func (h *Handle) execCheckStatus(ctx context.Context, args *bytes.Buffer) error {
	resp, err := h.exec(ctx, args)
	if err != nil {
		return err
	}
	if len(resp) == 0 || resp[0] != 0 {
		return fmt.Errorf("probe: command 0x%02x failed (status 0x%02x)", args.Bytes()[0], resp[0])
	}
	return nil
}

// Connect brings the probe's wire interface up in the given mode.
func (h *Handle) Connect(ctx context.Context, mode ConnectMode) error {
	args := newCmd(cmdConnect)
	args.WriteByte(uint8(mode))
	resp, err := h.exec(ctx, args)
	if err != nil {
		return err
	}
	if len(resp) == 0 || resp[0] == 0 {
		return fmt.Errorf("probe: connect rejected by device")
	}
	return nil
}

// Disconnect tears down the wire interface.
func (h *Handle) Disconnect(ctx context.Context) error {
	return h.execCheckStatus(ctx, newCmd(cmdDisconnect))
}

// TransferConfigure sets the probe firmware's own idle-cycle and retry
// counts. internal/dap configures the probe for no built-in retry, so a
// WAIT response surfaces to it as an error instead of being retried in
// firmware.
func (h *Handle) TransferConfigure(ctx context.Context, idleCycles uint8, waitRetry, matchRetry uint16) error {
	args := newCmd(cmdTransferConfigure)
	args.WriteByte(idleCycles)
	binary.Write(args, binary.LittleEndian, waitRetry)
	binary.Write(args, binary.LittleEndian, matchRetry)
	return h.execCheckStatus(ctx, args)
}

// SWDConfigure sets turnaround-cycle and data-phase parity behavior.
func (h *Handle) SWDConfigure(ctx context.Context, cfg uint8) error {
	args := newCmd(cmdSWDConfigure)
	args.WriteByte(cfg)
	return h.execCheckStatus(ctx, args)
}

// SWJClock sets the SWCLK frequency in Hz.
func (h *Handle) SWJClock(ctx context.Context, hz uint32) error {
	args := newCmd(cmdSWJClock)
	binary.Write(args, binary.LittleEndian, hz)
	return h.execCheckStatus(ctx, args)
}

// SWJSequence clocks numBits raw SWCLK/SWDIO bits, LSB-first within each
// byte of data, bytes in order — used for the line reset and
// JTAG-to-SWD switch sequences.
func (h *Handle) SWJSequence(ctx context.Context, numBits int, data []byte) error {
	if numBits < 1 || numBits > 256 {
		return fmt.Errorf("probe: SWJSequence length must be 1..256 bits, got %d", numBits)
	}
	args := newCmd(cmdSWJSequence)
	args.WriteByte(uint8(numBits))
	args.Write(data)
	return h.execCheckStatus(ctx, args)
}

// RegTransfer issues one or more DP/AP register accesses as a single
// DAP_Transfer command and returns the ACK status plus any read data, in
// request order. It makes exactly one attempt — WAIT/FAULT handling and
// sticky-error clearing are internal/dap's responsibility.
func (h *Handle) RegTransfer(ctx context.Context, dapIndex uint8, reqs []TransferRequest) (TransferStatus, []uint32, error) {
	args := newCmd(cmdTransfer)
	args.WriteByte(dapIndex)
	args.WriteByte(uint8(len(reqs)))

	for i, req := range reqs {
		if req.Reg&3 != 0 {
			return 0, nil, fmt.Errorf("probe: transfer request %d has misaligned register 0x%x", i, req.Reg)
		}
		treq := req.Reg & 0xC
		if req.AP {
			treq |= 1 << 0
		}
		haveData := req.Op == OpWrite
		if req.Op == OpRead {
			treq |= 1 << 1
		}
		args.WriteByte(treq)
		if haveData {
			binary.Write(args, binary.LittleEndian, req.Data)
		}
	}

	resp, err := h.exec(ctx, args)
	if err != nil {
		return 0, nil, err
	}
	if len(resp) < 2 {
		return 0, nil, fmt.Errorf("probe: transfer response too short")
	}

	transferCount := resp[0]
	status := TransferStatus(resp[1])
	body := resp[2:]

	if !status.Ok() {
		return status, nil, fmt.Errorf("probe: transfer ack %s (%d/%d completed)", status, transferCount, len(reqs))
	}
	if int(transferCount) != len(reqs) {
		return status, nil, fmt.Errorf("probe: transfer incomplete (%d/%d)", transferCount, len(reqs))
	}

	var data []uint32
	for _, req := range reqs {
		if req.Op != OpRead {
			continue
		}
		if len(body) < 4 {
			return status, nil, fmt.Errorf("probe: transfer response missing read data")
		}
		data = append(data, binary.LittleEndian.Uint32(body[:4]))
		body = body[4:]
	}

	return status, data, nil
}

// blockTransferHeader is fixed regardless of AP/DP or read/write: command,
// dapIndex, transferCount(2), request(1).
const blockTransferHeaderLen = 5

// TransferBlockMaxWords returns how many 32-bit words fit in a single
// DAP_TransferBlock given this handle's packet size.
func (h *Handle) TransferBlockMaxWords() int {
	return (packetSize - blockTransferHeaderLen) / 4
}

// TransferBlockRead issues a DAP_TransferBlock read of length words from
// the given DP/AP register (typically DRW, auto-incrementing TAR on the
// target side — see internal/memio).
func (h *Handle) TransferBlockRead(ctx context.Context, dapIndex uint8, ap bool, reg uint8, length int) ([]uint32, error) {
	if reg&3 != 0 {
		return nil, fmt.Errorf("probe: misaligned register 0x%x", reg)
	}
	if length > h.TransferBlockMaxWords() {
		return nil, fmt.Errorf("probe: block read of %d words exceeds packet capacity %d", length, h.TransferBlockMaxWords())
	}

	args := newCmd(cmdTransferBlock)
	args.WriteByte(dapIndex)
	binary.Write(args, binary.LittleEndian, uint16(length))
	treq := (reg & 0xC) | (1 << 1)
	if ap {
		treq |= 1 << 0
	}
	args.WriteByte(treq)

	resp, err := h.exec(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 {
		return nil, fmt.Errorf("probe: block transfer response too short")
	}

	transferCount := binary.LittleEndian.Uint16(resp[:2])
	status := TransferStatus(resp[2])
	body := resp[3:]

	if !status.Ok() {
		return nil, fmt.Errorf("probe: block transfer ack %s", status)
	}
	if int(transferCount) != length {
		return nil, fmt.Errorf("probe: block transfer incomplete (%d/%d)", transferCount, length)
	}
	if len(body) < length*4 {
		return nil, fmt.Errorf("probe: block transfer response missing data")
	}

	out := make([]uint32, length)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(body[i*4 : i*4+4])
	}
	return out, nil
}

// TransferBlockWrite issues a DAP_TransferBlock write of data to the given
// DP/AP register.
func (h *Handle) TransferBlockWrite(ctx context.Context, dapIndex uint8, ap bool, reg uint8, data []uint32) error {
	if reg&3 != 0 {
		return fmt.Errorf("probe: misaligned register 0x%x", reg)
	}
	if len(data) > h.TransferBlockMaxWords() {
		return fmt.Errorf("probe: block write of %d words exceeds packet capacity %d", len(data), h.TransferBlockMaxWords())
	}

	args := newCmd(cmdTransferBlock)
	args.WriteByte(dapIndex)
	binary.Write(args, binary.LittleEndian, uint16(len(data)))
	treq := reg & 0xC
	if ap {
		treq |= 1 << 0
	}
	args.WriteByte(treq)
	for _, w := range data {
		binary.Write(args, binary.LittleEndian, w)
	}

	resp, err := h.exec(ctx, args)
	if err != nil {
		return err
	}
	if len(resp) < 3 {
		return fmt.Errorf("probe: block transfer response too short")
	}

	transferCount := binary.LittleEndian.Uint16(resp[:2])
	status := TransferStatus(resp[2])

	if !status.Ok() {
		return fmt.Errorf("probe: block transfer ack %s", status)
	}
	if int(transferCount) != len(data) {
		return fmt.Errorf("probe: block transfer incomplete (%d/%d)", transferCount, len(data))
	}
	return nil
}

// ResetTarget pulses the probe's own target-reset line, independent of the
// CTRL-AP RESET register used for the nRF52 recovery erase.
func (h *Handle) ResetTarget(ctx context.Context) error {
	return h.execCheckStatus(ctx, newCmd(cmdResetTarget))
}
