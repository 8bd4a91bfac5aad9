// Package module abstracts the platform facility that opens native plugin
// modules and resolves their exported symbols.
//
// The manager never talks to the platform directly; it goes through an
// Opener. Native opens Go shared objects built with -buildmode=plugin.
// Static serves symbol tables compiled into the host binary, which lets the
// host carry built-in plugins and lets tests exercise the full lifecycle
// without building shared objects.
package module

import "errors"

// ErrSymbolNotFound is returned by Lookup when a module does not export the
// requested symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// Module is an opened plugin module.
type Module interface {
	// Lookup resolves an exported symbol by name.
	Lookup(symbol string) (any, error)
	// Close releases the module. No symbol obtained from it may be used
	// afterwards.
	Close() error
}

// Opener opens the module stored at path.
type Opener interface {
	Open(path string) (Module, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Module, error)

// Open implements Opener.
func (f OpenerFunc) Open(path string) (Module, error) {
	return f(path)
}
