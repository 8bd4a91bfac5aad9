package manager

import (
	"errors"
	"fmt"
)

// Load errors. Every failed Load returns a *LoadError wrapping one of these.
var (
	ErrNotFound        = errors.New("plugin module not found")
	ErrInvalidPlugin   = errors.New("invalid plugin module")
	ErrConstructor     = errors.New("plugin constructor failed")
	ErrConfigure       = errors.New("plugin configuration failed")
	ErrDuplicatePlugin = errors.New("plugin already loaded")
)

// ErrUnknownHandle is returned for handles that were never issued or whose
// plugin has already been unloaded.
var ErrUnknownHandle = errors.New("unknown plugin handle")

// LoadError reports why the named plugin could not be loaded.
type LoadError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load plugin %q: %v", e.Name, e.Err)
}

// Unwrap lets errors.Is match the sentinel the load failed with.
func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadError(name string, sentinel error, format string, args ...any) error {
	if format == "" {
		return &LoadError{Name: name, Err: sentinel}
	}
	return &LoadError{Name: name, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}
