package module

import (
	"fmt"
	"plugin"
	"strings"
)

// Native opens Go shared objects with the standard library plugin package.
type Native struct{}

// NewNative returns the platform module opener.
func NewNative() *Native {
	return &Native{}
}

// Open loads the shared object at path. Opening the same path twice returns
// the same underlying module, which is a property of the Go runtime.
func (n *Native) Open(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shared object %s: %w", path, err)
	}
	return &nativeModule{path: path, p: p}, nil
}

type nativeModule struct {
	path string
	p    *plugin.Plugin
}

func (m *nativeModule) Lookup(symbol string) (any, error) {
	if m.p == nil {
		return nil, fmt.Errorf("module %s is closed", m.path)
	}
	sym, err := m.p.Lookup(symbol)
	if err != nil {
		// plugin.Lookup only fails for missing symbols, with an error text
		// of its own.
		if strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, m.path)
		}
		return nil, err
	}
	return sym, nil
}

// Close drops the module reference. The Go runtime cannot unmap a loaded
// shared object, so its code stays resident until the process exits.
func (m *nativeModule) Close() error {
	if m.p == nil {
		return fmt.Errorf("module %s already closed", m.path)
	}
	m.p = nil
	return nil
}
