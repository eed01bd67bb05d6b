// Kitchen applies a patch-file record to a raw nRF52 flash image,
// producing a new image with the app CRC and settings CRC repaired.
// It never touches a target.
//
// Usage:
//
//	kitchen patch <patch-file>
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

func main() {
	initLogger()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if coreerr.Recoverable(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kitchen",
	Short: "Apply typed patches to an nRF52 flash image",
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(keygenCmd)
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

// keygenCmd documents that key generation is an external collaborator,
// not part of this core: use nrfutil or a dedicated DFU key generator.
var keygenCmd = &cobra.Command{
	Use:   "keygen <out-dir>",
	Short: "Not implemented here; DFU key generation is an external tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("keygen is not part of this tool; use nrfutil or a dedicated DFU key generator")
	},
}
