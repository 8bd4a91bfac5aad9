package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/tesys/internal/config"
	"github.com/specialistvlad/tesys/internal/hcl"
	"github.com/specialistvlad/tesys/internal/yamlconfig"
)

// LoaderFor picks the configuration loader for path by its extension.
func LoaderFor(path string) (config.Loader, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".hcl":
		return hcl.NewLoader(), nil
	case ".yaml", ".yml", ".json":
		return yamlconfig.NewLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %q (want .hcl, .yaml, .yml or .json)", config.ErrUnsupportedFormat, ext)
	}
}
