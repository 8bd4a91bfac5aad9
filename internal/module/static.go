package module

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Symbols is the export table of a statically linked module.
type Symbols map[string]any

// Static opens modules from an in-process table keyed by file base name
// ("demo.so"). The file must still exist on the search path; Static only
// replaces the step that maps it into memory.
type Static struct {
	mu      sync.Mutex
	modules map[string]Symbols
	opened  map[string]int
}

// NewStatic creates an empty static opener.
func NewStatic() *Static {
	return &Static{
		modules: make(map[string]Symbols),
		opened:  make(map[string]int),
	}
}

// Add registers the symbol table served for files named base.
func (s *Static) Add(base string, symbols Symbols) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[base] = symbols
	return s
}

// Open implements Opener.
func (s *Static) Open(path string) (Module, error) {
	base := filepath.Base(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	symbols, ok := s.modules[base]
	if !ok {
		return nil, fmt.Errorf("open %s: no static module registered for %q", path, base)
	}
	s.opened[base]++
	return &staticModule{owner: s, base: base, path: path, symbols: symbols}, nil
}

// OpenCount reports how many modules named base are currently open.
func (s *Static) OpenCount(base string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened[base]
}

type staticModule struct {
	owner   *Static
	base    string
	path    string
	symbols Symbols
	closed  bool
}

func (m *staticModule) Lookup(symbol string) (any, error) {
	if m.closed {
		return nil, fmt.Errorf("module %s is closed", m.path)
	}
	sym, ok := m.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, m.path)
	}
	return sym, nil
}

func (m *staticModule) Close() error {
	if m.closed {
		return fmt.Errorf("module %s already closed", m.path)
	}
	m.closed = true
	m.owner.mu.Lock()
	m.owner.opened[m.base]--
	m.owner.mu.Unlock()
	return nil
}
