// Package memio is the memory engine: 32-bit and block
// read/write over MEM-AP #0, re-arming TAR at each 1-KiB auto-increment
// wrap boundary. It knows the CSW/TAR/DRW register triad; it knows
// nothing about the nRF52's address map — that's internal/nrf52.
package memio

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/dap"
)

var logger = log.WithField("component", "memio")

// MEM-AP #0 register bank offsets.
const (
	regCSW uint8 = 0x00
	regTAR uint8 = 0x04
	regDRW uint8 = 0x0C
)

// cswWordAutoIncrement selects 32-bit transfer size with single
// auto-increment addressing — the "basic mode" every ADIv5 MEM-AP driver
// programs before streaming through DRW.
const cswWordAutoIncrement uint32 = 0x23000052

// autoIncrementWrapBytes is the size of the address range over which
// MEM-AP auto-increment is guaranteed to behave; TAR must be rewritten at
// each boundary crossing.
const autoIncrementWrapBytes = 0x400

// Session is the subset of *dap.Session the memory engine drives.
type Session interface {
	ReadAP(ctx context.Context, apsel uint8, addr uint8) (uint32, error)
	WriteAP(ctx context.Context, apsel uint8, addr uint8, v uint32) error
	ReadAPBlock(ctx context.Context, apsel uint8, addr uint8, count int) ([]uint32, error)
	WriteAPBlock(ctx context.Context, apsel uint8, addr uint8, data []uint32) error
	BlockMaxWords() int
	ClearErrors(ctx context.Context) error
}

var _ Session = (*dap.Session)(nil)

// Engine streams reads and writes through MEM-AP #0.
type Engine struct {
	s     Session
	apsel uint8

	cswProgrammed bool
}

// New wraps an ADIv5 session for memory access via the given MEM-AP.
// apsel is normally dap.MemAPSel (0).
func New(s Session, apsel uint8) *Engine {
	return &Engine{s: s, apsel: apsel}
}

func (e *Engine) ensureCSW(ctx context.Context) error {
	if e.cswProgrammed {
		return nil
	}
	if err := e.s.WriteAP(ctx, e.apsel, regCSW, cswWordAutoIncrement); err != nil {
		return e.onTransferFailed(ctx, err)
	}
	e.cswProgrammed = true
	return nil
}

// onTransferFailed clears DP errors on any TRANSFER_FAILED and surfaces
// the error to the caller; it never silently retries.
func (e *Engine) onTransferFailed(ctx context.Context, err error) error {
	if coreerr.Is(err, coreerr.TransferFailed) || coreerr.Is(err, coreerr.TargetNotConnected) {
		if clearErr := e.s.ClearErrors(ctx); clearErr != nil {
			logger.WithError(clearErr).Debug("failed to clear DP errors after memory transfer failure")
		}
		e.cswProgrammed = false
	}
	return err
}

// ReadU32 reads one 32-bit word at addr, which must be word-aligned.
func (e *Engine) ReadU32(ctx context.Context, addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, coreerr.New(coreerr.InvalidData, "address must be word-aligned")
	}
	if err := e.ensureCSW(ctx); err != nil {
		return 0, err
	}
	if err := e.s.WriteAP(ctx, e.apsel, regTAR, addr); err != nil {
		return 0, e.onTransferFailed(ctx, err)
	}
	v, err := e.s.ReadAP(ctx, e.apsel, regDRW)
	if err != nil {
		return 0, e.onTransferFailed(ctx, err)
	}
	return v, nil
}

// WriteU32 writes one 32-bit word at addr, which must be word-aligned.
func (e *Engine) WriteU32(ctx context.Context, addr uint32, v uint32) error {
	if addr%4 != 0 {
		return coreerr.New(coreerr.InvalidData, "address must be word-aligned")
	}
	if err := e.ensureCSW(ctx); err != nil {
		return err
	}
	if err := e.s.WriteAP(ctx, e.apsel, regTAR, addr); err != nil {
		return e.onTransferFailed(ctx, err)
	}
	if err := e.s.WriteAP(ctx, e.apsel, regDRW, v); err != nil {
		return e.onTransferFailed(ctx, err)
	}
	return nil
}

// ReadBlock reads count consecutive words starting at addr, re-arming TAR
// at each 1-KiB auto-increment wrap boundary and each DAP_TransferBlock
// packet-size boundary.
func (e *Engine) ReadBlock(ctx context.Context, addr uint32, count int) ([]uint32, error) {
	if addr%4 != 0 {
		return nil, coreerr.New(coreerr.InvalidData, "address must be word-aligned")
	}
	if count <= 0 {
		return nil, nil
	}
	if err := e.ensureCSW(ctx); err != nil {
		return nil, err
	}

	out := make([]uint32, 0, count)
	blockMax := e.s.BlockMaxWords()

	for len(out) < count {
		if err := e.s.WriteAP(ctx, e.apsel, regTAR, addr); err != nil {
			return nil, e.onTransferFailed(ctx, err)
		}

		remaining := count - len(out)
		chunk := wrapChunkWords(addr)
		if chunk > remaining {
			chunk = remaining
		}
		if chunk > blockMax {
			chunk = blockMax
		}

		words, err := e.s.ReadAPBlock(ctx, e.apsel, regDRW, chunk)
		if err != nil {
			return nil, e.onTransferFailed(ctx, err)
		}
		out = append(out, words...)
		addr += uint32(chunk * 4)
	}

	return out, nil
}

// WriteBlock writes data starting at addr, re-arming TAR at each 1-KiB
// wrap boundary and each DAP_TransferBlock packet-size boundary.
func (e *Engine) WriteBlock(ctx context.Context, addr uint32, data []uint32) error {
	if addr%4 != 0 {
		return coreerr.New(coreerr.InvalidData, "address must be word-aligned")
	}
	if len(data) == 0 {
		return nil
	}
	if err := e.ensureCSW(ctx); err != nil {
		return err
	}

	blockMax := e.s.BlockMaxWords()
	i := 0
	for i < len(data) {
		if err := e.s.WriteAP(ctx, e.apsel, regTAR, addr); err != nil {
			return e.onTransferFailed(ctx, err)
		}

		remaining := len(data) - i
		chunk := wrapChunkWords(addr)
		if chunk > remaining {
			chunk = remaining
		}
		if chunk > blockMax {
			chunk = blockMax
		}

		if err := e.s.WriteAPBlock(ctx, e.apsel, regDRW, data[i:i+chunk]); err != nil {
			return e.onTransferFailed(ctx, err)
		}
		addr += uint32(chunk * 4)
		i += chunk
	}

	return nil
}

// wrapChunkWords is how many words remain before addr crosses the next
// 1-KiB auto-increment wrap boundary.
func wrapChunkWords(addr uint32) int {
	return int((autoIncrementWrapBytes - addr&(autoIncrementWrapBytes-1)) / 4)
}

// InvalidateCSW forces the next access to reprogram CSW, used after an
// operation (such as CTRL-AP ERASEALL) that may have reset MEM-AP state
// out from under this engine.
func (e *Engine) InvalidateCSW() {
	e.cswProgrammed = false
}
