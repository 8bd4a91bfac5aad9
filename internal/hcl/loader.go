package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/tesys/internal/config"
	"github.com/specialistvlad/tesys/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is the schema of a whole configuration file.
type fileRoot struct {
	Peer    *peerBlock     `hcl:"peer,block"`
	Plugins []*pluginBlock `hcl:"plugin,block"`
}

type peerBlock struct {
	TickRate   *float64 `hcl:"tick_rate,optional"`
	SearchDirs []string `hcl:"search_dirs,optional"`
}

type pluginBlock struct {
	Name     string         `hcl:"name,label"`
	Settings hcl.Expression `hcl:"settings,optional"`
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return l.decode(ctx, path, file.Body)
}

// LoadBytes parses src as if it were read from filename.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return l.decode(ctx, filename, file.Body)
}

func (l *Loader) decode(ctx context.Context, path string, body hcl.Body) (*config.Model, error) {
	ctx = ctxlog.With(ctx, "path", path)
	logger := ctxlog.FromContext(ctx)

	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	model := &config.Model{}
	if root.Peer != nil {
		if root.Peer.TickRate != nil {
			model.TickRate = *root.Peer.TickRate
			if model.TickRate == 0 {
				return nil, fmt.Errorf("%s: %w: tick_rate cannot be zero", path, config.ErrInvalidConfig)
			}
		}
		model.SearchDirs = root.Peer.SearchDirs
	}

	for _, pb := range root.Plugins {
		settings, err := decodeSettings(ctxlog.With(ctx, "plugin", pb.Name), pb.Settings)
		if err != nil {
			return nil, fmt.Errorf("plugin %q in %s: %w", pb.Name, path, err)
		}
		model.Plugins = append(model.Plugins, config.Plugin{Name: pb.Name, Settings: settings})
	}

	model.ApplyDefaults()
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("HCL loading complete.", "plugins", len(model.Plugins), "search_dirs", len(model.SearchDirs), "tick_rate", model.TickRate)
	return model, nil
}
