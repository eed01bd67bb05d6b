// Sdcfw is a backup/erase/restore utility for nRF52832 targets behind a
// CMSIS-DAP debug probe, driven entirely over SWD.
//
// Usage:
//
//	sdcfw [command] [flags]
//
// See 'sdcfw --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-colorable"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
)

var (
	verboseCount int
	probeVID     uint16
	probePID     uint16
	clockHz      uint32
)

func main() {
	initLogger()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "sdcfw",
	Short: "Backup, erase, and restore nRF52832 targets over SWD",
	Long: `sdcfw drives a CMSIS-DAP debug probe over ADIv5/SWD to back up, chip-erase,
and restore the flash and UICR of an nRF52832 target.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		switch {
		case verboseCount >= 2:
			log.SetLevel(log.TraceLevel)
		case verboseCount == 1:
			log.SetLevel(log.DebugLevel)
		default:
			log.SetLevel(log.InfoLevel)
		}
	}

	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&verboseCount, "verbose", "v", "increase log verbosity (-v, -vv)")
	pf.Uint16Var(&probeVID, "vid", 0x303A, "probe USB vendor ID")
	pf.Uint16Var(&probePID, "pid", 0x1002, "probe USB product ID")
	pf.Uint32Var(&clockHz, "clock", 4_000_000, "SWCLK frequency in Hz")

	rootCmd.AddCommand(readInfoCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(devCmd)
}

func initLogger() {
	formatter := &prefixed.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	}
	log.SetFormatter(formatter)
	log.SetOutput(colorable.NewColorableStdout())
}

// exitCodeFor maps a CoreError's recoverability onto the process exit
// code: 0 on success, nonzero on any non-recoverable failure.
// Recoverable errors still exit nonzero from a single CLI
// invocation — there is no in-process retry loop here — but with a
// distinct code so a wrapping script can tell the two apart.
func exitCodeFor(err error) int {
	if coreerr.Recoverable(err) {
		return 2
	}
	return 1
}
