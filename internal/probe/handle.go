// Package probe wraps the CMSIS-DAP HID/WinUSB endpoint pair: opening and
// closing the USB device and serializing one outstanding packet transfer at
// a time. It knows nothing about SWD, ADIv5, or the nRF52 —
// that starts one layer up, in internal/dap.
package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "probe")

// Handle is an opened USB endpoint pair to a CMSIS-DAP device. It is
// exclusively owned by one caller (a dap.Session) for its whole lifetime;
// Close is safe to call more than once and on every exit path, including
// after a failed Open.
type Handle struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	iface  *gousb.Interface

	out *gousb.OutEndpoint
	in  *gousb.InEndpoint

	vid, pid gousb.ID
}

// Open finds the first USB device matching vid/pid, claims its first
// interface, and resolves the bulk in/out endpoint pair used for CMSIS-DAP
// command packets. On any failure, all partially acquired USB resources
// are released before returning.
func Open(vid, pid uint16) (*Handle, error) {
	ctx := gousb.NewContext()

	h := &Handle{ctx: ctx, vid: gousb.ID(vid), pid: gousb.ID(pid)}

	device, err := ctx.OpenDeviceWithVIDPID(h.vid, h.pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("probe: scan for [%04x:%04x]: %w", vid, pid, err)
	}
	if device == nil {
		ctx.Close()
		return nil, fmt.Errorf("probe: no device matching [%04x:%04x] on the bus", vid, pid)
	}
	h.device = device

	if err := h.claimInterface(); err != nil {
		h.Close()
		return nil, err
	}

	logger.WithFields(log.Fields{"vid": fmt.Sprintf("%04x", vid), "pid": fmt.Sprintf("%04x", pid)}).
		Info("opened CMSIS-DAP probe")

	return h, nil
}

func (h *Handle) claimInterface() error {
	cfg, err := h.device.Config(1)
	if err != nil {
		return fmt.Errorf("probe: select config 1: %w", err)
	}
	h.config = cfg

	iface, err := cfg.Interface(0, 0)
	if err != nil {
		return fmt.Errorf("probe: claim interface 0,0: %w", err)
	}
	h.iface = iface

	out, err := iface.OutEndpoint(1)
	if err != nil {
		return fmt.Errorf("probe: resolve out endpoint: %w", err)
	}
	h.out = out

	in, err := iface.InEndpoint(1 | 0x80)
	if err != nil {
		return fmt.Errorf("probe: resolve in endpoint: %w", err)
	}
	h.in = in

	return nil
}

// Close releases every USB resource this handle acquired, in reverse
// acquisition order. cmd/sdcfw calls it on every exit path, through its
// session's deferred Close or when connect fails.
func (h *Handle) Close() {
	if h.iface != nil {
		h.iface.Close()
		h.iface = nil
	}
	if h.config != nil {
		h.config.Close()
		h.config = nil
	}
	if h.device != nil {
		h.device.Close()
		h.device = nil
	}
	if h.ctx != nil {
		h.ctx.Close()
		h.ctx = nil
	}
}

// RawTransfer writes one command packet and reads back one response
// packet. Only one transfer may be outstanding on a Handle at a time; the
// caller (a single dap.Session) guarantees serialization.
//
// RawTransfer is cancellable: gousb's endpoint Write/Read block with no
// context awareness of their own, so each phase runs on its own goroutine
// racing against ctx (bounded by writeTimeout/readTimeout on top of
// whatever deadline the caller already set). Whichever expires first wins
// and RawTransfer returns immediately without waiting for the USB stack —
// the caller must treat a cancelled Handle as needing a fresh Open, since
// the losing goroutine may still be sitting in the kernel driver.
func (h *Handle) RawTransfer(ctx context.Context, out []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	padded := make([]byte, packetSize)
	copy(padded, out)

	if err := h.write(ctx, padded); err != nil {
		return nil, err
	}

	resp, err := h.read(ctx)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (h *Handle) write(ctx context.Context, padded []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := h.out.Write(padded)
		done <- result{n, err}
	}()

	select {
	case <-wctx.Done():
		return wctx.Err()
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("probe: write: %w", r.err)
		}
		if r.n != len(padded) {
			return fmt.Errorf("probe: short write (%d of %d bytes)", r.n, len(padded))
		}
		return nil
	}
}

func (h *Handle) read(ctx context.Context) ([]byte, error) {
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	resp := make([]byte, packetSize)
	go func() {
		n, err := h.in.Read(resp)
		done <- result{n, err}
	}()

	select {
	case <-rctx.Done():
		return nil, rctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("probe: read: %w", r.err)
		}
		if r.n == 0 {
			return nil, fmt.Errorf("probe: short read (0 bytes)")
		}
		return resp[:r.n], nil
	}
}

// VIDPID returns the identity this handle was opened with, for logging.
func (h *Handle) VIDPID() (uint16, uint16) {
	return uint16(h.vid), uint16(h.pid)
}
