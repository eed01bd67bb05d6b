// Package kitchen applies deterministic patches to a flash image:
// typed patch records with pre-write verification, optional
// region cleaning, and CRC repair of the app image and bootloader
// settings page. It never touches a target; it is a pure transformation
// over byte vectors.
package kitchen

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
)

// Kind is the discriminator of the Patch tagged record.
type Kind string

const (
	KindString      Kind = "string"
	KindU8          Kind = "u8"
	KindU16         Kind = "u16"
	KindU32         Kind = "u32"
	KindBytes       Kind = "bytes"
	KindFindReplace Kind = "find_replace"
)

// Patch is one entry in a patch file. Original/Data carry the
// type-specific textual encoding of the pre- and post-patch value:
// literal ASCII for "string", a decimal-or-0x-hex integer literal for
// "u8"/"u16"/"u32", and whitespace-tolerant hex pairs for "bytes",
// "find", and "replace". Find and Replace are only meaningful for
// Kind == KindFindReplace; Address/Original/Data are only meaningful
// otherwise.
type Patch struct {
	Type        Kind   `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Address     uint32 `yaml:"address,omitempty"`
	Original    string `yaml:"original,omitempty"`
	Data        string `yaml:"data,omitempty"`
	Find        string `yaml:"find,omitempty"`
	Replace     string `yaml:"replace,omitempty"`
}

// encodeValue renders a textual field as on-disk bytes per this patch's
// Type. u16/u32 are encoded big-endian — the deliberate hex-viewer-
// transcription convention these patch files were authored under, not
// the target's native little-endian byte order.
func (p Patch) encodeValue(text string) ([]byte, error) {
	switch p.Type {
	case KindString:
		return []byte(text), nil
	case KindU8:
		v, err := parseUint(text, 8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(v)}, nil
	case KindU16:
		v, err := parseUint(text, 16)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return b, nil
	case KindU32:
		v, err := parseUint(text, 32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v))
		return b, nil
	case KindBytes:
		return parseHexBytes(text)
	default:
		return nil, coreerr.New(coreerr.InvalidData, "patch has no scalar value: "+string(p.Type))
	}
}

// OriginalBytes decodes the pre-patch value this patch expects to find.
func (p Patch) OriginalBytes() ([]byte, error) { return p.encodeValue(p.Original) }

// DataBytes decodes the value this patch writes.
func (p Patch) DataBytes() ([]byte, error) { return p.encodeValue(p.Data) }

// FindBytes decodes the find_replace needle.
func (p Patch) FindBytes() ([]byte, error) { return parseHexBytes(p.Find) }

// ReplaceBytes decodes the find_replace replacement.
func (p Patch) ReplaceBytes() ([]byte, error) { return parseHexBytes(p.Replace) }

func parseUint(text string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(text), 0, bits)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.InvalidData, "invalid integer literal: "+text, err)
	}
	return v, nil
}

func parseHexBytes(text string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ':' {
			return -1
		}
		return r
	}, text)
	b, err := hex.DecodeString(compact)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidData, "invalid hex byte string: "+text, err)
	}
	return b, nil
}
