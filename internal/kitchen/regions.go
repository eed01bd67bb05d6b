package kitchen

import (
	"strconv"
	"strings"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
)

// appEndSentinel is the CleanRegion.End literal meaning "the end of the
// current application image", resolved at run time against the image's
// own bootloader settings.
const appEndSentinel = "APP_END"

// CleanRegion describes a byte range to preserve when filling a working
// image with 0xFF before patching. End is either a decimal/hex integer
// literal or the literal string "APP_END".
type CleanRegion struct {
	Start       uint32 `yaml:"start"`
	End         string `yaml:"end"`
	Description string `yaml:"description,omitempty"`
}

// resolve turns End into a concrete address given the image's APP_END.
func (r CleanRegion) resolve(appEnd uint32) (uint32, error) {
	if strings.EqualFold(strings.TrimSpace(r.End), appEndSentinel) {
		return appEnd, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(r.End), 0, 32)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.InvalidData, "clean region end is neither APP_END nor an integer: "+r.End, err)
	}
	return uint32(v), nil
}

// DefaultCleanRegions mirrors the ranges the reference dump-cleaning
// tool preserves by default: the SoftDevice, the application image up
// to APP_END, and the bootloader itself, leaving everything else
// (unused flash, DFU settings scratch space) blanked to 0xFF.
func DefaultCleanRegions() []CleanRegion {
	return []CleanRegion{
		{Start: 0x0, End: "0x23000", Description: "softdevice"},
		{Start: 0x23000, End: appEndSentinel, Description: "application"},
		{Start: 0x73000, End: "0x80000", Description: "bootloader"},
	}
}

// cleanImage fills a new buffer of image's length with 0xFF, then copies each
// region's bytes across in listed order. Later
// regions win where ranges overlap because they are applied last.
func cleanImage(image []byte, regions []CleanRegion, appEnd uint32) ([]byte, error) {
	out := make([]byte, len(image))
	for i := range out {
		out[i] = 0xFF
	}
	for _, r := range regions {
		end, err := r.resolve(appEnd)
		if err != nil {
			return nil, err
		}
		if end < r.Start || int(end) > len(image) {
			return nil, coreerr.New(coreerr.InvalidData, "clean region out of range: "+r.Description)
		}
		copy(out[r.Start:end], image[r.Start:end])
	}
	return out, nil
}
