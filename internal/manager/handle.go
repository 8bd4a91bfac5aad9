package manager

import (
	"fmt"

	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/internal/registry"
	"github.com/specialistvlad/tesys/pluginapi"
)

// Handle identifies one load of one plugin. IDs are never reused, so a
// handle kept past Unload stays invalid even if a plugin with the same name
// is loaded again.
type Handle struct {
	Name string
	ID   uint64
}

// String returns a string representation of the handle.
func (h Handle) String() string {
	if h.Name != "" {
		return fmt.Sprintf(":%08x(%s)", h.ID, h.Name)
	}
	return fmt.Sprintf(":%08x", h.ID)
}

// IsZero reports whether h was never issued by a manager.
func (h Handle) IsZero() bool {
	return h.ID == 0
}

// Plugin is a read-only view of a loaded plugin.
type Plugin struct {
	Handle   Handle
	Path     string
	Instance pluginapi.Plugin
	Handlers *registry.Table
}

// descriptor is the manager's private record of a loaded plugin. The module
// and instance are released only through Manager.release.
type descriptor struct {
	handle   Handle
	path     string
	module   module.Module
	instance pluginapi.Plugin
	destroy  pluginapi.Destructor
	handlers *registry.Table
}

func (d *descriptor) view() Plugin {
	return Plugin{
		Handle:   d.handle,
		Path:     d.path,
		Instance: d.instance,
		Handlers: d.handlers,
	}
}
