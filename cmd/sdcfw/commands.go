package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/dap"
	"github.com/reverse-bike/sdcfw/internal/nrf52"
	"github.com/reverse-bike/sdcfw/internal/ops"
	"github.com/reverse-bike/sdcfw/internal/probe"
	"github.com/reverse-bike/sdcfw/internal/progress"
)

var logger = log.WithField("component", "cli")

// session bundles the open probe, DP driver, and target for the
// lifetime of a single command invocation.
type session struct {
	handle *probe.Handle
	dap    *dap.Session
	target *ops.Target
}

// connect opens the configured probe, brings up SWD, and negotiates the
// target. Close must be called on every exit path, including error
// paths raised by the caller after connect returns.
func connect(ctx context.Context) (*session, error) {
	h, err := probe.Open(probeVID, probePID)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DeviceNotFound, fmt.Sprintf("no probe at %04x:%04x", probeVID, probePID), err)
	}

	d := dap.New(h, clockHz)
	if err := d.Connect(ctx); err != nil {
		h.Close()
		return nil, err
	}

	return &session{handle: h, dap: d, target: ops.NewTarget(d)}, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.dap.Disconnect(ctx); err != nil {
		logger.WithError(err).Warn("disconnect reported an error")
	}
	s.handle.Close()
}

var readInfoCmd = &cobra.Command{
	Use:   "read_info",
	Short: "Connect and print device identity, UICR, and bootloader settings",
	RunE:  runReadInfo,
}

func runReadInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	info, err := nrf52.ReadDeviceInfo(ctx, s.target.Mem)
	if err != nil {
		return err
	}
	fmt.Println(info.String())

	uicr, err := nrf52.ReadUICR(ctx, s.target.Mem)
	if err != nil {
		return err
	}
	fmt.Printf("approtect=%s pselreset0=%s pselreset1=%s nfcpins=%s nrffw0=%s\n",
		uicr.ApprotectString(), uicr.PSELReset0String(), uicr.PSELReset1String(),
		uicr.NFCPinsString(), uicr.NRFFW0String())

	settings, ok, err := nrf52.ReadBootloaderSettings(ctx, s.target.Mem)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("bootloader settings: absent")
		return nil
	}
	fmt.Printf("bootloader settings: version=%d app_version=%d bank_current=%d bank0={size=%d crc=%08x code=%08x} bank1={size=%d crc=%08x code=%08x}\n",
		settings.SettingsVersion, settings.AppVersion, settings.BankCurrent,
		settings.Bank0.ImageSize, settings.Bank0.ImageCRC, settings.Bank0.BankCode,
		settings.Bank1.ImageSize, settings.Bank1.ImageCRC, settings.Bank1.BankCode)

	return nil
}

var backupCmd = &cobra.Command{
	Use:   "backup <dir>",
	Short: "Read flash and UICR into <dir>/flash.bin and <dir>/uicr.bin",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return coreerr.Wrap(coreerr.WriteFailed, "creating output directory", err)
	}

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	sink := progress.NewTermSink(os.Stdout, int(os.Stdout.Fd()))
	snap, err := ops.Backup(ctx, s.target, sink)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, "flash.bin"), snap.Flash, 0o644); err != nil {
		return coreerr.Wrap(coreerr.WriteFailed, "writing flash.bin", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "uicr.bin"), snap.UICR, 0o644); err != nil {
		return coreerr.Wrap(coreerr.WriteFailed, "writing uicr.bin", err)
	}

	fmt.Printf("wrote %s (%d bytes) and %s (%d bytes)\n",
		filepath.Join(dir, "flash.bin"), len(snap.Flash),
		filepath.Join(dir, "uicr.bin"), len(snap.UICR))
	return nil
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Chip-erase the target via CTRL-AP",
	RunE:  runErase,
}

func runErase(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	sink := progress.NewTermSink(os.Stdout, int(os.Stdout.Fd()))
	return ops.Erase(ctx, s.target, sink)
}

var restoreNoVerify bool

var restoreCmd = &cobra.Command{
	Use:   "restore <flash.bin> <uicr.bin>",
	Short: "Write flash and UICR back to the target",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreNoVerify, "no-verify", false, "skip read-back verification after flash write")
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flash, err := os.ReadFile(args[0])
	if err != nil {
		return coreerr.Wrap(coreerr.InvalidData, "reading flash image", err)
	}
	uicr, err := os.ReadFile(args[1])
	if err != nil {
		return coreerr.Wrap(coreerr.InvalidData, "reading uicr image", err)
	}

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	opts := ops.DefaultRestoreOptions()
	opts.Verify = !restoreNoVerify

	sink := progress.NewTermSink(os.Stdout, int(os.Stdout.Fd()))
	if err := ops.Restore(ctx, s.target, flash, uicr, opts, sink); err != nil {
		return err
	}
	fmt.Println("restore complete")
	return nil
}

var devCmd = &cobra.Command{
	Use:    "dev",
	Short:  "Reserved for ad hoc experiments against a connected target",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)
		fmt.Printf("connected, IDCODE=%08x, state=%s\n", s.dap.IDCode(), s.dap.State())
		return nil
	},
}
