package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/tesys/pluginapi"
)

var (
	// ErrDuplicateName is returned when a table declares the same name twice.
	ErrDuplicateName = errors.New("duplicate handler name")
	// ErrInvalidEntry is returned for entries without a name or function.
	ErrInvalidEntry = errors.New("invalid handler entry")
	// ErrHandlerNotFound is returned when invoking an undeclared name.
	ErrHandlerNotFound = errors.New("handler not found")
)

// Table holds the named operations of a single plugin.
type Table struct {
	entries map[string]pluginapi.HandlerEntry
}

// New builds a table from entries. The whole table is rejected if any entry
// is invalid or any name repeats.
func New(entries []pluginapi.HandlerEntry) (*Table, error) {
	t := &Table{entries: make(map[string]pluginapi.HandlerEntry, len(entries))}
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidEntry, i)
		}
		if e.Fn == nil {
			return nil, fmt.Errorf("%w: handler '%s' has no function", ErrInvalidEntry, e.Name)
		}
		if _, exists := t.entries[e.Name]; exists {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateName, e.Name)
		}
		t.entries[e.Name] = e
	}
	return t, nil
}

// Empty returns a table with no entries, used for plugins that expose none.
func Empty() *Table {
	return &Table{entries: map[string]pluginapi.HandlerEntry{}}
}

// Lookup returns the entry registered under name.
func (t *Table) Lookup(name string) (pluginapi.HandlerEntry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Invoke calls the operation registered under name.
func (t *Table) Invoke(ctx context.Context, name string, m pluginapi.Message) (*pluginapi.Message, error) {
	e, ok := t.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrHandlerNotFound, name)
	}
	return e.Fn(ctx, m)
}

// Names lists the declared names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len is the number of declared operations.
func (t *Table) Len() int {
	return len(t.entries)
}
