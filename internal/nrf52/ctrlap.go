package nrf52

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/dap"
)

var logger = log.WithField("component", "nrf52")

const (
	eraseAllPollInterval = 100 * time.Millisecond
	eraseAllPollBudget   = 15 * time.Second
)

// CtrlAP is the subset of *dap.Session the chip-erase recovery procedure
// drives directly (it bypasses internal/memio entirely — CTRL-AP has no
// CSW/TAR/DRW register triad).
type CtrlAP interface {
	ReadAP(ctx context.Context, apsel uint8, addr uint8) (uint32, error)
	WriteAP(ctx context.Context, apsel uint8, addr uint8, v uint32) error
	ClearErrors(ctx context.Context) error
	SelectMemAP(ctx context.Context) error
}

var _ CtrlAP = (*dap.Session)(nil)

// EraseAll runs the CTRL-AP recovery erase: it wipes flash,
// UICR, and clears APPROTECT regardless of prior readback protection.
// On success the caller must invalidate any cached MEM-AP CSW state
// (internal/memio.Engine.InvalidateCSW) before resuming memory access.
func EraseAll(ctx context.Context, s CtrlAP) error {
	if err := s.ClearErrors(ctx); err != nil {
		return err
	}

	idr, err := s.ReadAP(ctx, dap.CtrlAPSel, ctrlAPIDR)
	if err != nil {
		return err
	}
	if idr != ctrlAPExpectedIDR {
		logger.WithField("idr", idr).Warn("CTRL-AP IDR does not match expected nRF52 value; continuing")
	}

	if err := s.WriteAP(ctx, dap.CtrlAPSel, ctrlAPEraseAll, 0); err != nil {
		return err
	}
	if err := s.WriteAP(ctx, dap.CtrlAPSel, ctrlAPEraseAll, 1); err != nil {
		return err
	}

	deadline := time.Now().Add(eraseAllPollBudget)
	attempts := 0
	erased := false
	for time.Now().Before(deadline) {
		attempts++
		status, err := s.ReadAP(ctx, dap.CtrlAPSel, ctrlAPEraseAllStatus)
		if err != nil {
			return err
		}
		if status == 0 {
			erased = true
			break
		}
		time.Sleep(eraseAllPollInterval)
	}

	if !erased {
		return coreerr.New(coreerr.EraseFailed, "ERASEALLSTATUS did not clear within 15s")
	}

	pulseReset(ctx, s)

	if err := s.WriteAP(ctx, dap.CtrlAPSel, ctrlAPEraseAll, 0); err != nil {
		logger.WithError(err).Warn("failed to clear ERASEALL after successful erase")
	}
	if err := s.ClearErrors(ctx); err != nil {
		logger.WithError(err).Warn("failed to clear DP errors after chip erase")
	}
	if err := s.SelectMemAP(ctx); err != nil {
		logger.WithError(err).Warn("failed to restore SELECT to MEM-AP after chip erase")
	}

	time.Sleep(1 * time.Second)
	return nil
}

// pulseReset asserts and deasserts CTRL-AP RESET. Best-effort:
// failure here is logged, not fatal.
func pulseReset(ctx context.Context, s CtrlAP) {
	if err := s.WriteAP(ctx, dap.CtrlAPSel, ctrlAPReset, 1); err != nil {
		logger.WithError(err).Warn("CTRL-AP reset assert failed")
		return
	}
	if err := s.WriteAP(ctx, dap.CtrlAPSel, ctrlAPReset, 0); err != nil {
		logger.WithError(err).Warn("CTRL-AP reset deassert failed")
	}
}
