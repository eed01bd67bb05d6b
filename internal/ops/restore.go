package ops

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/nrf52"
	"github.com/reverse-bike/sdcfw/internal/progress"
)

// RestoreOptions tunes the restore operation.
type RestoreOptions struct {
	// Verify reads the flash back and compares it, defaulting to true.
	Verify bool
}

// DefaultRestoreOptions is what CLI callers get absent an explicit
// --no-verify flag.
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{Verify: true}
}

const maxLoggedMismatches = 5

// Restore writes flash and UICR back to the target, verifying flash by
// default, then issues a soft reset.
func Restore(ctx context.Context, t *Target, flash []byte, uicr []byte, opts RestoreOptions, sink progress.Sink) error {
	if sink == nil {
		sink = progress.NopSink{}
	}

	sink.Report(0, "reading device info")
	info, err := nrf52.ReadDeviceInfo(ctx, t.Mem)
	if err != nil {
		return err
	}
	if uint32(len(flash)) != info.FlashBytes() {
		return coreerr.New(coreerr.InvalidData, fmt.Sprintf("flash image is %d bytes, target expects %d", len(flash), info.FlashBytes()))
	}
	if uint32(len(uicr)) != nrf52.UICRSize {
		return coreerr.New(coreerr.InvalidData, fmt.Sprintf("UICR image is %d bytes, expected %d", len(uicr), nrf52.UICRSize))
	}

	if err := writeFlash(ctx, t, flash, sink); err != nil {
		return err
	}

	if opts.Verify {
		sink.Report(70, "verifying flash")
		if err := verifyFlash(ctx, t, flash); err != nil {
			return err
		}
	}

	sink.Report(90, "writing UICR")
	if err := writeUICR(ctx, t, uicr); err != nil {
		return err
	}

	sink.Report(95, "resetting target")
	if err := t.Session.ResetTarget(ctx); err != nil {
		return err
	}

	sink.Report(100, "restore complete")
	return nil
}

func writeFlash(ctx context.Context, t *Target, flash []byte, sink progress.Sink) error {
	if err := nrf52.BeginWrite(ctx, t.Mem); err != nil {
		return err
	}
	defer func() {
		if err := nrf52.EndWrite(ctx, t.Mem); err != nil {
			logger.WithError(err).Warn("failed to return NVMC to read-only after flash write")
		}
	}()

	total := len(flash)
	chunkBytes := int(nrf52.FlashPageBytes)
	lastPct := -1
	for off := 0; off < total; off += chunkBytes {
		end := off + chunkBytes
		if end > total {
			end = total
		}
		words := nrf52.BytesToWords(flash[off:end])
		if err := nrf52.WriteWords(ctx, t.Mem, nrf52.FlashBase+uint32(off), words); err != nil {
			return err
		}

		pct := 10 + int(60*end/total)
		pct -= pct % 5
		if pct != lastPct {
			sink.Report(uint8(pct), fmt.Sprintf("writing flash (%d/%d bytes)", end, total))
			lastPct = pct
		}
	}
	return nil
}

func verifyFlash(ctx context.Context, t *Target, want []byte) error {
	wantWords := nrf52.BytesToWords(want)
	mismatches := 0

	for off := 0; off < len(wantWords); off += flashReadChunkWords {
		n := flashReadChunkWords
		if off+n > len(wantWords) {
			n = len(wantWords) - off
		}
		got, err := t.Mem.ReadBlock(ctx, nrf52.FlashBase+uint32(off*4), n)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if got[i] != wantWords[off+i] {
				mismatches++
				if mismatches <= maxLoggedMismatches {
					logger.WithFields(log.Fields{
						"address": fmt.Sprintf("0x%08x", uint32((off+i)*4)),
						"want":    fmt.Sprintf("0x%08x", wantWords[off+i]),
						"got":     fmt.Sprintf("0x%08x", got[i]),
					}).Warn("flash verify mismatch")
				}
			}
		}
	}

	if mismatches > 0 {
		return coreerr.New(coreerr.VerifyFailed, fmt.Sprintf("%d word mismatches after flash write", mismatches))
	}
	return nil
}

func writeUICR(ctx context.Context, t *Target, uicr []byte) error {
	if err := nrf52.BeginWrite(ctx, t.Mem); err != nil {
		return err
	}
	defer func() {
		if err := nrf52.EndWrite(ctx, t.Mem); err != nil {
			logger.WithError(err).Warn("failed to return NVMC to read-only after UICR write")
		}
	}()

	words := nrf52.BytesToWords(uicr)
	return nrf52.WriteWords(ctx, t.Mem, nrf52.UICRBase, words)
}
