package config

import (
	"fmt"
	"maps"
)

const (
	// DefaultTickRate is the loop frequency used when none is configured.
	DefaultTickRate = 60.0
	// DefaultSearchDir is searched for plugins when no directory is
	// configured.
	DefaultSearchDir = "./plugins"
)

// Model is the host configuration.
type Model struct {
	TickRate   float64
	SearchDirs []string
	Plugins    []Plugin
}

// Plugin names one plugin to load. Settings is nil when the file gives none,
// which is different from an empty settings map.
type Plugin struct {
	Name     string
	Settings map[string]string
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Model {
	return &Model{
		TickRate:   DefaultTickRate,
		SearchDirs: []string{DefaultSearchDir},
	}
}

// ApplyDefaults fills zero-valued fields from Default.
func (m *Model) ApplyDefaults() {
	d := Default()
	if m.TickRate == 0 {
		m.TickRate = d.TickRate
	}
	if len(m.SearchDirs) == 0 {
		m.SearchDirs = d.SearchDirs
	}
}

// Validate checks the model for values the peer cannot run with.
func (m *Model) Validate() error {
	if m.TickRate <= 0 {
		return fmt.Errorf("%w: tick rate must be positive, got %v", ErrInvalidConfig, m.TickRate)
	}
	for i, dir := range m.SearchDirs {
		if dir == "" {
			return fmt.Errorf("%w: search directory %d is empty", ErrInvalidConfig, i)
		}
	}
	seen := make(map[string]struct{}, len(m.Plugins))
	for i, p := range m.Plugins {
		if p.Name == "" {
			return fmt.Errorf("%w: plugin %d has no name", ErrInvalidConfig, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: plugin %q is listed twice", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	out := &Model{
		TickRate:   m.TickRate,
		SearchDirs: append([]string(nil), m.SearchDirs...),
		Plugins:    make([]Plugin, len(m.Plugins)),
	}
	for i, p := range m.Plugins {
		out.Plugins[i] = Plugin{Name: p.Name, Settings: maps.Clone(p.Settings)}
	}
	return out
}
