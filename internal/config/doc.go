// Package config defines the format-agnostic configuration model of the
// host and the Loader interface that format packages implement.
//
// The `config.Model` is the single source of truth for the peer: tick rate,
// plugin search directories and the ordered list of plugins to load. HCL and
// YAML loaders are provided in separate packages.
package config
