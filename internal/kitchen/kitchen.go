package kitchen

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/nrf52"
)

var logger = log.WithField("component", "kitchen")

// planEntry is the resolved effect of one verified patch: the exact
// offset and bytes to write. Computed entirely during Verify, before
// any write occurs, so a failing patch never leaves a partial write behind.
type planEntry struct {
	patch  Patch
	offset uint32
	write  []byte
}

// Verify checks every patch against image without mutating it,
// returning the write plan on success. It fails closed: any patch that
// doesn't match its recorded original, or a find_replace pattern that
// doesn't occur exactly once, aborts the whole set.
func Verify(image []byte, patches []Patch) ([]planEntry, error) {
	plan := make([]planEntry, 0, len(patches))
	for _, p := range patches {
		entry, err := verifyOne(image, p)
		if err != nil {
			return nil, err
		}
		plan = append(plan, entry)
	}
	return plan, nil
}

func verifyOne(image []byte, p Patch) (planEntry, error) {
	if p.Type == KindFindReplace {
		return verifyFindReplace(image, p)
	}

	original, err := p.OriginalBytes()
	if err != nil {
		return planEntry{}, err
	}
	data, err := p.DataBytes()
	if err != nil {
		return planEntry{}, err
	}
	if len(original) != len(data) {
		return planEntry{}, coreerr.New(coreerr.InvalidData,
			fmt.Sprintf("patch %q: original and data lengths differ", p.Description))
	}
	end := int(p.Address) + len(original)
	if end > len(image) {
		return planEntry{}, coreerr.New(coreerr.InvalidData,
			fmt.Sprintf("patch %q: address 0x%x runs past end of image", p.Description, p.Address))
	}
	if !bytes.Equal(image[p.Address:end], original) {
		return planEntry{}, coreerr.New(coreerr.InvalidData,
			fmt.Sprintf("patch %q: value at 0x%x does not match original", p.Description, p.Address))
	}
	return planEntry{patch: p, offset: p.Address, write: data}, nil
}

func verifyFindReplace(image []byte, p Patch) (planEntry, error) {
	find, err := p.FindBytes()
	if err != nil {
		return planEntry{}, err
	}
	replace, err := p.ReplaceBytes()
	if err != nil {
		return planEntry{}, err
	}
	if len(find) != len(replace) {
		return planEntry{}, coreerr.New(coreerr.InvalidData,
			fmt.Sprintf("find_replace %q: find/replace lengths differ", p.Description))
	}
	if len(find) == 0 {
		return planEntry{}, coreerr.New(coreerr.InvalidData,
			fmt.Sprintf("find_replace %q: empty find pattern", p.Description))
	}

	count := 0
	offset := -1
	for start := 0; ; {
		idx := bytes.Index(image[start:], find)
		if idx < 0 {
			break
		}
		found := start + idx
		if count == 0 {
			offset = found
		}
		count++
		start = found + 1
		if count > 1 {
			break
		}
	}
	if count != 1 {
		return planEntry{}, coreerr.New(coreerr.InvalidData,
			fmt.Sprintf("find_replace %q: pattern occurs %d times, want exactly 1", p.Description, count))
	}
	return planEntry{patch: p, offset: uint32(offset), write: replace}, nil
}

// Apply performs the writes computed by Verify against a copy of image
// and returns the result. image is never mutated.
func Apply(image []byte, plan []planEntry) []byte {
	out := make([]byte, len(image))
	copy(out, image)
	for _, e := range plan {
		copy(out[e.offset:], e.write)
	}
	return out
}

// Run executes the full firmware-kitchen algorithm — load settings,
// optionally clean unpatched regions, verify every patch, apply them,
// and recompute the app and settings CRCs — over a raw flash image and
// returns the patched result.
func Run(image []byte, pf *PatchFile) ([]byte, error) {
	settings, err := nrf52.BootloaderSettingsFromBytes(image[nrf52.BLSettingsAddr:])
	if err != nil {
		return nil, err
	}
	appEnd := settings.AppEnd()

	working := image
	if len(pf.CleanRegions) > 0 {
		working, err = cleanImage(image, pf.CleanRegions, appEnd)
		if err != nil {
			return nil, err
		}
	}

	checkAppCRC(working, settings)

	plan, err := Verify(working, pf.Patches)
	if err != nil {
		return nil, err
	}
	out := Apply(working, plan)

	newAppCRC := appCRC(out, settings.Bank0.ImageSize)
	binary.LittleEndian.PutUint32(out[nrf52.BLSettingsAddr+0x1C:], newAppCRC)

	newSettingsCRC := nrf52.CRC32(out[nrf52.BLSettingsAddr+4 : nrf52.BLSettingsAddr+nrf52.BLSettingsBytes])
	binary.LittleEndian.PutUint32(out[nrf52.BLSettingsAddr:], newSettingsCRC)

	return out, nil
}

func appCRC(image []byte, appImageSize uint32) uint32 {
	return nrf52.CRC32(image[nrf52.AppImageBase : nrf52.AppImageBase+appImageSize])
}

func checkAppCRC(image []byte, settings nrf52.BootloaderSettings) {
	got := appCRC(image, settings.Bank0.ImageSize)
	if got != settings.Bank0.ImageCRC {
		logger.WithFields(log.Fields{
			"want": fmt.Sprintf("0x%08x", settings.Bank0.ImageCRC),
			"got":  fmt.Sprintf("0x%08x", got),
		}).Warn("application CRC does not match bootloader settings before patching")
	}
}

// OutputPath computes <dir>/<basename><postfix>.bin for firmwarePath
// relative to root.
func OutputPath(root, firmwarePath, postfix string) string {
	full := filepath.Join(root, firmwarePath)
	dir := filepath.Dir(full)
	base := filepath.Base(full)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+postfix+".bin")
}
