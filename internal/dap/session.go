// Package dap implements the ADIv5/SWD Debug-Port and Access-Port driver:
// SWJ line reset and connect, DP register read/write, AP
// select and read/write, and sticky-error clearing. It knows the register
// map; it knows nothing about the nRF52's memory map — that is
// internal/memio and internal/nrf52's job.
package dap

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/probe"
)

var logger = log.WithField("component", "dap")

// State is the lifecycle of the SWD link.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Session holds all mutable SWD-link state: the last-selected AP+bank (for
// DP.SELECT caching), the IDCODE read at connect, and connection state. A
// Session must not be shared across concurrent callers without external
// mutual exclusion — the state below would otherwise race.
type Session struct {
	t       Transport
	clockHz uint32

	state State
	idr   uint32

	haveSelect  bool
	selectValue uint32
}

// New wraps an already-opened transport in a fresh, disconnected Session.
func New(t Transport, clockHz uint32) *Session {
	return &Session{
		t:       t,
		clockHz: clockHz,
		state:   StateDisconnected,
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// IDCode returns the DPIDR value read during the last successful Connect.
func (s *Session) IDCode() uint32 { return s.idr }

// Connect performs the ADIv5 sequence: SWJ switch, line reset, IDCODE
// read, and CTRL/STAT power-up handshake. On success the
// session transitions Disconnected/Faulted → Connected; on failure it
// transitions to Faulted.
func (s *Session) Connect(ctx context.Context) error {
	s.state = StateConnecting

	if err := s.t.SWJSequence(ctx, 56, lineResetOnes); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "line reset failed", err))
	}
	if err := s.t.SWJSequence(ctx, 16, jtagToSWDSwitch); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "JTAG-to-SWD switch failed", err))
	}
	if err := s.t.SWJSequence(ctx, 56, lineResetOnes); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "line reset failed", err))
	}
	if err := s.t.SWJSequence(ctx, 8, idleBits); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "idle clock failed", err))
	}

	if err := s.t.Connect(ctx, probe.ConnectModeSWD); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "probe refused SWD connect", err))
	}
	if err := s.t.SWJClock(ctx, s.clockHz); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "failed to set SWCLK frequency", err))
	}
	if err := s.t.TransferConfigure(ctx, 8, 0, 0); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "transfer configure failed", err))
	}
	if err := s.t.SWDConfigure(ctx, 0); err != nil {
		return s.fault(coreerr.Wrap(coreerr.ConnectionFailed, "SWD configure failed", err))
	}

	idr, err := s.readDPRaw(ctx, dpAddrIDCODEOrABORT)
	if err != nil {
		return s.fault(err)
	}
	if idr == 0 || idr == 0xFFFFFFFF {
		return s.fault(coreerr.New(coreerr.TargetNotConnected, "IDCODE read returned no target present"))
	}
	s.idr = idr

	if err := s.powerUp(ctx); err != nil {
		return s.fault(err)
	}

	s.haveSelect = false
	s.state = StateConnected

	logger.WithField("idcode", fmt.Sprintf("0x%08x", s.idr)).Info("SWD link connected")
	return nil
}

func (s *Session) powerUp(ctx context.Context) error {
	req := ctrlStatCSYSPWRUPREQ | ctrlStatCDBGPWRUPREQ
	ack := ctrlStatCSYSPWRUPACK | ctrlStatCDBGPWRUPACK

	if err := s.writeDPRaw(ctx, dpAddrCTRLSTAT, req); err != nil {
		return err
	}

	deadline := time.Now().Add(powerUpPollBudget)
	for {
		v, err := s.readDPRaw(ctx, dpAddrCTRLSTAT)
		if err != nil {
			return err
		}
		if v&ack == ack {
			return nil
		}
		if time.Now().After(deadline) {
			return coreerr.New(coreerr.TargetNotConnected, "target did not acknowledge power-up request")
		}
		time.Sleep(powerUpPollInterval)
	}
}

// Disconnect tears down the wire interface. It always succeeds locally
// (state transitions to Disconnected) even if the underlying probe command
// fails, since the caller's next move is either to retry Connect or to
// close the transport entirely.
func (s *Session) Disconnect(ctx context.Context) error {
	err := s.t.Disconnect(ctx)
	s.state = StateDisconnected
	s.haveSelect = false
	if err != nil {
		logger.WithError(err).Warn("probe disconnect command failed; session state reset anyway")
	}
	return nil
}

func (s *Session) fault(err error) error {
	s.state = StateFaulted
	return err
}

// ReadDP reads a Debug Port register.
func (s *Session) ReadDP(ctx context.Context, addr uint8) (uint32, error) {
	return s.readDPRaw(ctx, addr)
}

// WriteDP writes a Debug Port register.
func (s *Session) WriteDP(ctx context.Context, addr uint8, v uint32) error {
	return s.writeDPRaw(ctx, addr, v)
}

func (s *Session) readDPRaw(ctx context.Context, addr uint8) (uint32, error) {
	tctx, cancel := context.WithTimeout(ctx, registerAccessTimeout)
	defer cancel()

	status, data, err := s.t.RegTransfer(tctx, 0, []probe.TransferRequest{
		{AP: false, Reg: addr, Op: probe.OpRead},
	})
	if err != nil {
		s.handleStatus(ctx, status)
		return 0, classifyTransferErr(status, err)
	}
	if len(data) != 1 {
		return 0, coreerr.New(coreerr.TransferFailed, "DP read returned no data")
	}
	return data[0], nil
}

func (s *Session) writeDPRaw(ctx context.Context, addr uint8, v uint32) error {
	tctx, cancel := context.WithTimeout(ctx, registerAccessTimeout)
	defer cancel()

	status, _, err := s.t.RegTransfer(tctx, 0, []probe.TransferRequest{
		{AP: false, Reg: addr, Op: probe.OpWrite, Data: v},
	})
	if err != nil {
		s.handleStatus(ctx, status)
		return classifyTransferErr(status, err)
	}
	return nil
}

// selectAP writes DP.SELECT only when the requested APSEL/APBANKSEL
// differs from the cached value, the way a fresh Session and a
// fresh SELECT cache are always paired (never shared across sessions).
func (s *Session) selectAP(ctx context.Context, apsel uint8, apReg uint8) error {
	apBank := (apReg >> 4) & 0xF
	sv := uint32(apsel)<<24 | uint32(apBank)<<4

	if s.haveSelect && s.selectValue == sv {
		return nil
	}
	if err := s.writeDPRaw(ctx, dpAddrSELECTOrRESEND, sv); err != nil {
		return err
	}
	s.selectValue = sv
	s.haveSelect = true
	return nil
}

// ReadAP reads an Access Port register. Per the pipelined ADIv5 contract,
// the AP read itself returns the *previous* transaction's
// data; this issues a trailing DP.RDBUFF read in the same DAP_Transfer
// batch to realize the final value.
func (s *Session) ReadAP(ctx context.Context, apsel uint8, addr uint8) (uint32, error) {
	if err := s.selectAP(ctx, apsel, addr); err != nil {
		return 0, err
	}

	tctx, cancel := context.WithTimeout(ctx, registerAccessTimeout)
	defer cancel()

	status, data, err := s.t.RegTransfer(tctx, 0, []probe.TransferRequest{
		{AP: true, Reg: addr & 0xC, Op: probe.OpRead},
		{AP: false, Reg: dpAddrRDBUFF, Op: probe.OpRead},
	})
	if err != nil {
		s.handleStatus(ctx, status)
		return 0, classifyTransferErr(status, err)
	}
	if len(data) != 2 {
		return 0, coreerr.New(coreerr.TransferFailed, "AP read returned no data")
	}
	return data[1], nil
}

// WriteAP writes an Access Port register.
func (s *Session) WriteAP(ctx context.Context, apsel uint8, addr uint8, v uint32) error {
	if err := s.selectAP(ctx, apsel, addr); err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(ctx, registerAccessTimeout)
	defer cancel()

	status, _, err := s.t.RegTransfer(tctx, 0, []probe.TransferRequest{
		{AP: true, Reg: addr & 0xC, Op: probe.OpWrite, Data: v},
	})
	if err != nil {
		s.handleStatus(ctx, status)
		return classifyTransferErr(status, err)
	}
	return nil
}

// ReadAPBlock reads count consecutive words from an AP register using
// DAP_TransferBlock — the fast path internal/memio drives for DRW streams.
func (s *Session) ReadAPBlock(ctx context.Context, apsel uint8, addr uint8, count int) ([]uint32, error) {
	if err := s.selectAP(ctx, apsel, addr); err != nil {
		return nil, err
	}
	tctx, cancel := context.WithTimeout(ctx, blockAccessTimeout)
	defer cancel()
	data, err := s.t.TransferBlockRead(tctx, 0, true, addr&0xC, count)
	if err != nil {
		return nil, classifyPlainErr(err)
	}
	return data, nil
}

// WriteAPBlock writes consecutive words to an AP register using
// DAP_TransferBlock.
func (s *Session) WriteAPBlock(ctx context.Context, apsel uint8, addr uint8, data []uint32) error {
	if err := s.selectAP(ctx, apsel, addr); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(ctx, blockAccessTimeout)
	defer cancel()
	if err := s.t.TransferBlockWrite(tctx, 0, true, addr&0xC, data); err != nil {
		return classifyPlainErr(err)
	}
	return nil
}

// BlockMaxWords reports how many 32-bit words fit in a single
// DAP_TransferBlock, for internal/memio's chunking.
func (s *Session) BlockMaxWords() int {
	return s.t.TransferBlockMaxWords()
}

// ClearErrors writes CTRL/STAT with the sticky-error clear mask,
// the response to any WAIT/FAULT ACK.
func (s *Session) ClearErrors(ctx context.Context) error {
	return s.writeDPRaw(ctx, dpAddrCTRLSTAT, ctrlStatClearErrors)
}

// handleStatus clears sticky errors automatically whenever a transaction
// came back WAIT or FAULT, so the next access on this session starts
// clean.
func (s *Session) handleStatus(ctx context.Context, status probe.TransferStatus) {
	if status.Wait() || status.Fault() {
		if err := s.ClearErrors(ctx); err != nil {
			logger.WithError(err).Debug("failed to clear sticky DP errors after WAIT/FAULT")
		}
	}
}

// ResetTarget issues a soft reset through the probe's target-reset line.
func (s *Session) ResetTarget(ctx context.Context) error {
	return s.t.ResetTarget(ctx)
}

// SelectMemAP writes DP.SELECT back to MEM-AP bank 0 unconditionally,
// bypassing the cache. Used by the CTRL-AP ERASEALL recovery procedure
// to leave the link pointed at MEM-AP #0 before returning.
func (s *Session) SelectMemAP(ctx context.Context) error {
	if err := s.writeDPRaw(ctx, dpAddrSELECTOrRESEND, uint32(MemAPSel)<<24); err != nil {
		return err
	}
	s.selectValue = uint32(MemAPSel) << 24
	s.haveSelect = true
	return nil
}

func classifyTransferErr(status probe.TransferStatus, err error) *coreerr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return coreerr.Wrap(coreerr.Timeout, "DP/AP access deadline exceeded", err)
	}
	if status.Wait() {
		return coreerr.Wrap(coreerr.TargetNotConnected, "DP/AP WAIT response", err)
	}
	return coreerr.Wrap(coreerr.TransferFailed, "DP/AP transfer failed", err)
}

func classifyPlainErr(err error) *coreerr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return coreerr.Wrap(coreerr.Timeout, "block transfer deadline exceeded", err)
	}
	return coreerr.Wrap(coreerr.TransferFailed, "block transfer failed", err)
}
