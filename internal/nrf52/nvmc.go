package nrf52

import (
	"context"
	"time"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
)

const (
	nvmcReadyPollInterval = 1 * time.Millisecond
	nvmcReadyPollBudget   = 5 * time.Second

	// flashWriteTimeout bounds a single WriteWords call, sized for one
	// 4-KiB flash page transferred over DAP_TransferBlock.
	flashWriteTimeout = 5 * time.Second
)

func waitReady(ctx context.Context, m Mem) error {
	deadline := time.Now().Add(nvmcReadyPollBudget)
	for {
		v, err := m.ReadU32(ctx, NVMCReady)
		if err != nil {
			return err
		}
		if v == 1 {
			return nil
		}
		if time.Now().After(deadline) {
			return coreerr.New(coreerr.WriteFailed, "NVMC did not become ready in time")
		}
		select {
		case <-ctx.Done():
			return coreerr.Wrap(coreerr.Timeout, "NVMC ready wait cancelled", ctx.Err())
		case <-time.After(nvmcReadyPollInterval):
		}
	}
}

// BeginWrite sets NVMC.CONFIG to WEN and waits for NVMC.READY, the
// precondition for any flash/UICR write. Callers must pair it
// with EndWrite even on error, to leave the controller read-only.
func BeginWrite(ctx context.Context, m Mem) error {
	if err := m.WriteU32(ctx, NVMCConfig, nvmcConfigWEN); err != nil {
		return err
	}
	return waitReady(ctx, m)
}

// EndWrite returns NVMC.CONFIG to read-only.
func EndWrite(ctx context.Context, m Mem) error {
	if err := m.WriteU32(ctx, NVMCConfig, nvmcConfigReadOnly); err != nil {
		return err
	}
	return waitReady(ctx, m)
}

// WriteWords writes a block of already word-aligned data. Caller must
// have called BeginWrite first. The write itself is bounded by
// flashWriteTimeout regardless of how much of ctx's deadline remains,
// since a hung write to one page shouldn't be allowed to eat the budget
// of every page after it.
func WriteWords(ctx context.Context, m Mem, addr uint32, words []uint32) error {
	if addr%4 != 0 {
		return coreerr.New(coreerr.InvalidData, "flash/UICR write address must be word-aligned")
	}
	wctx, cancel := context.WithTimeout(ctx, flashWriteTimeout)
	defer cancel()
	if err := m.WriteBlock(wctx, addr, words); err != nil {
		return err
	}
	return waitReady(ctx, m)
}

// ErasePage erases one 4-KiB flash page. Not used by the restore path
// (which relies on a preceding CTRL-AP ERASEALL), but part of
// the NVM controller's exposed surface for direct single-page recovery.
func ErasePage(ctx context.Context, m Mem, pageAddr uint32) error {
	if pageAddr%FlashPageBytes != 0 {
		return coreerr.New(coreerr.InvalidData, "erase address must be page-aligned")
	}
	if err := m.WriteU32(ctx, NVMCConfig, nvmcConfigEEN); err != nil {
		return err
	}
	if err := waitReady(ctx, m); err != nil {
		return err
	}
	if err := m.WriteU32(ctx, NVMCErasePage, pageAddr); err != nil {
		return err
	}
	if err := waitReady(ctx, m); err != nil {
		return err
	}
	return EndWrite(ctx, m)
}

// BytesToWords packs a byte slice into little-endian words, padding a
// trailing partial word with 0xFF — the erased-flash value.
func BytesToWords(data []byte) []uint32 {
	n := (len(data) + 3) / 4
	words := make([]uint32, n)
	for i := 0; i < n; i++ {
		var b [4]byte
		b[0], b[1], b[2], b[3] = 0xFF, 0xFF, 0xFF, 0xFF
		copy(b[:], data[i*4:min(i*4+4, len(data))])
		words[i] = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	return words
}

// WordsToBytes is the inverse of BytesToWords, truncated to length n.
func WordsToBytes(words []uint32, n int) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		out[i*4] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	if n < len(out) {
		out = out[:n]
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
