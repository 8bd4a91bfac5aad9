// Package yamlconfig loads host configuration written in YAML. JSON files are
// accepted too, being valid YAML.
//
//	tick_rate: 60
//	search_dirs: [./plugins]
//	plugins:
//	  - name: demo
//	    settings:
//	      greeting: hello
package yamlconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/tesys/internal/config"
	"github.com/specialistvlad/tesys/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

type fileRoot struct {
	TickRate   *float64     `yaml:"tick_rate"`
	SearchDirs []string     `yaml:"search_dirs"`
	Plugins    []pluginSpec `yaml:"plugins"`
}

type pluginSpec struct {
	Name     string               `yaml:"name"`
	Settings map[string]yaml.Node `yaml:"settings"`
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	ctxlog.FromContext(ctx).Debug("YAML loader started.", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.LoadBytes(ctx, data, path)
}

// LoadBytes parses data as if it were read from filename.
func (l *Loader) LoadBytes(ctx context.Context, data []byte, filename string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctxlog.With(ctx, "path", filename))

	var root fileRoot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML file %s: %w", filename, err)
	}

	model := &config.Model{SearchDirs: root.SearchDirs}
	if root.TickRate != nil {
		if *root.TickRate == 0 {
			return nil, fmt.Errorf("%s: %w: tick_rate cannot be zero", filename, config.ErrInvalidConfig)
		}
		model.TickRate = *root.TickRate
	}

	for _, p := range root.Plugins {
		settings, err := decodeSettings(p.Settings)
		if err != nil {
			return nil, fmt.Errorf("plugin %q in %s: %w", p.Name, filename, err)
		}
		model.Plugins = append(model.Plugins, config.Plugin{Name: p.Name, Settings: settings})
	}

	model.ApplyDefaults()
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	logger.Debug("YAML loading complete.", "plugins", len(model.Plugins), "search_dirs", len(model.SearchDirs), "tick_rate", model.TickRate)
	return model, nil
}

// decodeSettings flattens scalar setting nodes to their literal text.
func decodeSettings(nodes map[string]yaml.Node) (map[string]string, error) {
	if nodes == nil {
		return nil, nil
	}
	out := make(map[string]string, len(nodes))
	for key, n := range nodes {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("setting %q must be a scalar (line %d)", key, n.Line)
		}
		if n.Tag == "!!null" {
			return nil, fmt.Errorf("setting %q cannot be null (line %d)", key, n.Line)
		}
		out[key] = n.Value
	}
	return out, nil
}
