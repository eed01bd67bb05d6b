package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
	"github.com/reverse-bike/sdcfw/internal/kitchen"
)

var patchCmd = &cobra.Command{
	Use:   "patch <patch-file>",
	Short: "Apply a patch file's patches to its referenced firmware image",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatch,
}

func runPatch(cmd *cobra.Command, args []string) error {
	patchFilePath := args[0]
	pf, err := kitchen.LoadPatchFile(patchFilePath)
	if err != nil {
		return err
	}

	root := filepath.Dir(patchFilePath)
	firmwarePath := filepath.Join(root, pf.FirmwarePath)

	image, err := os.ReadFile(firmwarePath)
	if err != nil {
		return coreerr.Wrap(coreerr.InvalidData, "reading firmware image", err)
	}

	out, err := kitchen.Run(image, pf)
	if err != nil {
		return err
	}

	outPath := kitchen.OutputPath(root, pf.FirmwarePath, pf.OutputPostfix)
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return coreerr.Wrap(coreerr.WriteFailed, "writing patched image", err)
	}

	fmt.Printf("wrote %s (%d bytes)\n", outPath, len(out))
	return nil
}
