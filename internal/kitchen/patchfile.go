package kitchen

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reverse-bike/sdcfw/internal/coreerr"
)

// PatchFile is the on-disk YAML record driving one kitchen invocation.
type PatchFile struct {
	Name          string        `yaml:"name"`
	FirmwarePath  string        `yaml:"firmware_path"`
	OutputPostfix string        `yaml:"output_postfix"`
	CleanRegions  []CleanRegion `yaml:"clean_regions,omitempty"`
	Patches       []Patch       `yaml:"patches"`
}

// LoadPatchFile reads and parses a patch-file record from path.
func LoadPatchFile(path string) (*PatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidData, "reading patch file", err)
	}
	var pf PatchFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidData, "parsing patch file", err)
	}
	return &pf, nil
}
