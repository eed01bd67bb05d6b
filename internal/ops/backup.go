package ops

import (
	"context"
	"fmt"

	"github.com/reverse-bike/sdcfw/internal/nrf52"
	"github.com/reverse-bike/sdcfw/internal/progress"
)

// Snapshot is the result of a backup: a byte-exact copy of flash and
// UICR, plus the device identity that produced it.
type Snapshot struct {
	Info  nrf52.DeviceInfo
	Flash []byte
	UICR  []byte
}

const flashReadChunkWords = 256 // 1 KiB per DAP_TransferBlock-backed read

// Backup reads the entire target flash and UICR, reporting progress
// every 10%.
func Backup(ctx context.Context, t *Target, sink progress.Sink) (Snapshot, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}

	sink.Report(0, "reading device info")
	info, err := nrf52.ReadDeviceInfo(ctx, t.Mem)
	if err != nil {
		return Snapshot{}, err
	}

	flashBytes := info.FlashBytes()
	flashWords := int(flashBytes / 4)

	flash := make([]byte, 0, flashBytes)
	lastPct := -1
	for off := 0; off < flashWords; off += flashReadChunkWords {
		n := flashReadChunkWords
		if off+n > flashWords {
			n = flashWords - off
		}
		words, err := t.Mem.ReadBlock(ctx, nrf52.FlashBase+uint32(off*4), n)
		if err != nil {
			return Snapshot{}, err
		}
		flash = append(flash, nrf52.WordsToBytes(words, n*4)...)

		pct := int(100 * (off + n) / flashWords)
		pct -= pct % 10
		if pct != lastPct {
			sink.Report(uint8(pct), fmt.Sprintf("reading flash (%d/%d bytes)", len(flash), flashBytes))
			lastPct = pct
		}
	}

	sink.Report(90, "reading UICR")
	uicrWords, err := nrf52.ReadUICRBinary(ctx, t.Mem)
	if err != nil {
		return Snapshot{}, err
	}
	uicr := nrf52.WordsToBytes(uicrWords, int(nrf52.UICRSize))

	sink.Report(100, "backup complete")
	return Snapshot{Info: info, Flash: flash, UICR: uicr}, nil
}
