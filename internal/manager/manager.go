// Package manager owns the native plugin modules loaded into the host.
//
// The Manager resolves plugin names to module files across an ordered list
// of search directories, opens them through a module.Opener, calls their
// constructor, builds their handler table and records them in load order.
// It is the only owner of both the module and the instance the module's
// constructor produced: Unload is the only path that releases them, and it
// always destroys the instance before closing the module.
//
// The registry has a single owner (the Peer loop) and is not safe for
// concurrent use. Loading and unloading must happen between ticks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/tesys/internal/fsutil"
	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/internal/registry"
	"github.com/specialistvlad/tesys/pluginapi"
)

// DefaultExtension is the file extension of Go plugin modules.
const DefaultExtension = ".so"

// Manager is the registry of loaded plugins.
type Manager struct {
	logger     *slog.Logger
	opener     module.Opener
	extension  string
	searchDirs []string

	order  []*descriptor
	byName map[string]*descriptor
	nextID uint64
}

// New creates a manager that opens modules with opener.
func New(logger *slog.Logger, opener module.Opener) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		logger:    logger.With("component", "plugin_manager"),
		opener:    opener,
		extension: DefaultExtension,
		byName:    make(map[string]*descriptor),
	}
}

// AddPluginSearchDirectory appends path to the search list. Directories are
// searched in the order they were added.
func (m *Manager) AddPluginSearchDirectory(path string) {
	for _, dir := range m.searchDirs {
		if dir == path {
			return
		}
	}
	m.searchDirs = append(m.searchDirs, path)
	m.logger.Debug("Added plugin search directory.", "path", path)
}

// SearchDirectories returns a copy of the search list.
func (m *Manager) SearchDirectories() []string {
	return append([]string(nil), m.searchDirs...)
}

// candidates lists the file names name may be stored under.
func (m *Manager) candidates(name string) []string {
	return []string{name + m.extension, "lib" + name + m.extension}
}

// Resolve returns the module file name resolves to.
func (m *Manager) Resolve(name string) (string, error) {
	path, ok := fsutil.FindFirst(m.searchDirs, m.candidates(name))
	if !ok {
		return "", loadError(name, ErrNotFound, "searched %s", strings.Join(m.searchDirs, ", "))
	}
	return path, nil
}

// Discover lists the plugin names available in the search directories,
// without loading them. The first directory providing a name wins.
func (m *Manager) Discover() ([]string, error) {
	files, err := fsutil.FindFilesByExtension(m.searchDirs, m.extension)
	if err != nil {
		return nil, fmt.Errorf("failed to scan plugin directories: %w", err)
	}
	var names []string
	seen := make(map[string]struct{})
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), m.extension)
		name = strings.TrimPrefix(name, "lib")
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// Load loads the named plugin with no settings.
func (m *Manager) Load(name string) (Handle, error) {
	return m.LoadWithSettings(name, nil)
}

// LoadWithSettings resolves, opens and constructs the named plugin. If the
// plugin implements pluginapi.Configurable and settings is non-nil, the
// settings are applied before the plugin is registered. On error the
// registry is left unchanged and nothing the load acquired stays alive.
func (m *Manager) LoadWithSettings(name string, settings map[string]string) (Handle, error) {
	if name == "" {
		return Handle{}, loadError(name, ErrInvalidPlugin, "plugin name cannot be empty")
	}
	if existing, exists := m.byName[name]; exists {
		return Handle{}, loadError(name, ErrDuplicatePlugin, "loaded as %s", existing.handle)
	}

	path, err := m.Resolve(name)
	if err != nil {
		return Handle{}, err
	}
	m.logger.Debug("Resolved plugin module.", "plugin", name, "path", path)

	mod, err := m.opener.Open(path)
	if err != nil {
		return Handle{}, loadError(name, ErrInvalidPlugin, "%v", err)
	}

	create, destroy, err := entryPoints(mod)
	if err != nil {
		m.closeModule(name, mod)
		return Handle{}, loadError(name, ErrInvalidPlugin, "%v", err)
	}

	instance, err := construct(create, destroy)
	if err != nil {
		m.closeModule(name, mod)
		return Handle{}, loadError(name, ErrConstructor, "%v", err)
	}

	m.nextID++
	d := &descriptor{
		handle:   Handle{Name: name, ID: m.nextID},
		path:     path,
		module:   mod,
		instance: instance,
		destroy:  destroy,
	}

	if err := m.prepare(d, settings); err != nil {
		if relErr := m.release(d); relErr != nil {
			m.logger.Warn("Failed to release partially loaded plugin.", "plugin", name, "error", relErr)
		}
		return Handle{}, &LoadError{Name: name, Err: err}
	}

	m.order = append(m.order, d)
	m.byName[name] = d
	m.logger.Info("Plugin loaded.", "plugin", name, "handle", d.handle.String(), "path", path, "handlers", d.handlers.Names())
	return d.handle, nil
}

// prepare hands host services to a freshly constructed instance and builds
// its handler table. A panic in plugin code is reported as an error so the
// caller can release the instance.
func (m *Manager) prepare(d *descriptor, settings map[string]string) (err error) {
	stage := ErrInvalidPlugin
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: plugin panicked during setup: %v", stage, r)
		}
	}()

	if l, ok := d.instance.(pluginapi.Loggable); ok {
		l.SetLogger(m.logger.With("plugin", d.handle.Name))
	}
	if ia, ok := d.instance.(pluginapi.InvokerAware); ok {
		ia.SetInvoker(invoker{m: m, caller: d.handle})
	}

	if settings != nil {
		if c, ok := d.instance.(pluginapi.Configurable); ok {
			stage = ErrConfigure
			if err := c.Configure(settings); err != nil {
				return fmt.Errorf("%w: %v", ErrConfigure, err)
			}
			stage = ErrInvalidPlugin
		} else {
			m.logger.Warn("Plugin does not accept settings, ignoring them.", "plugin", d.handle.Name, "settings", len(settings))
		}
	}

	d.handlers = registry.Empty()
	if p, ok := d.instance.(pluginapi.HandlerProvider); ok {
		table, err := registry.New(p.Handlers())
		if err != nil {
			return err
		}
		d.handlers = table
	}
	return nil
}

// Unload destroys the plugin's instance, closes its module and removes it
// from the registry.
func (m *Manager) Unload(h Handle) error {
	d, err := m.descriptor(h)
	if err != nil {
		return err
	}

	// The entry goes away even when release reports an error: the
	// destructor has already run and must not run again.
	err = m.release(d)
	m.remove(d)
	if err != nil {
		return fmt.Errorf("unload plugin %s: %w", h, err)
	}
	m.logger.Info("Plugin unloaded.", "plugin", h.Name, "handle", h.String())
	return nil
}

// UnloadAll unloads every plugin in reverse load order.
func (m *Manager) UnloadAll() error {
	var errs []error
	for i := len(m.order) - 1; i >= 0; i-- {
		if err := m.Unload(m.order[i].handle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the plugin h refers to.
func (m *Manager) Lookup(h Handle) (Plugin, error) {
	d, err := m.descriptor(h)
	if err != nil {
		return Plugin{}, err
	}
	return d.view(), nil
}

// Get returns the loaded plugin registered under name.
func (m *Manager) Get(name string) (Plugin, bool) {
	d, ok := m.byName[name]
	if !ok {
		return Plugin{}, false
	}
	return d.view(), true
}

// Plugins returns the loaded plugins in load order.
func (m *Manager) Plugins() []Plugin {
	out := make([]Plugin, len(m.order))
	for i, d := range m.order {
		out[i] = d.view()
	}
	return out
}

// Len is the number of loaded plugins.
func (m *Manager) Len() int {
	return len(m.order)
}

// Invoke calls the named operation from the plugin's handler table.
func (m *Manager) Invoke(ctx context.Context, h Handle, op string, msg pluginapi.Message) (*pluginapi.Message, error) {
	d, err := m.descriptor(h)
	if err != nil {
		return nil, err
	}
	reply, err := d.handlers.Invoke(ctx, op, msg)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", h, err)
	}
	return reply, nil
}

// InvokeByName calls op on the plugin currently loaded under name.
func (m *Manager) InvokeByName(ctx context.Context, name, op string, msg pluginapi.Message) (*pluginapi.Message, error) {
	d, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: no plugin loaded as %q", ErrUnknownHandle, name)
	}
	return m.Invoke(ctx, d.handle, op, msg)
}

// invoker is the pluginapi.Invoker handed to InvokerAware plugins. Calls are
// stamped with the calling plugin's name as sender, and stop working once
// the caller's handle goes stale.
type invoker struct {
	m      *Manager
	caller Handle
}

func (i invoker) Invoke(ctx context.Context, plugin, op string, msg pluginapi.Message) (*pluginapi.Message, error) {
	if _, err := i.m.descriptor(i.caller); err != nil {
		return nil, fmt.Errorf("caller: %w", err)
	}
	return i.m.InvokeByName(ctx, plugin, op, msg.From(i.caller.Name))
}

func (m *Manager) descriptor(h Handle) (*descriptor, error) {
	d, ok := m.byName[h.Name]
	if !ok || d.handle.ID != h.ID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return d, nil
}

func (m *Manager) remove(d *descriptor) {
	delete(m.byName, d.handle.Name)
	for i, o := range m.order {
		if o == d {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// release invokes the destructor exactly once and then closes the module.
func (m *Manager) release(d *descriptor) error {
	instance := d.instance
	d.instance = nil
	destroyErr := destruct(d.destroy, instance)
	closeErr := d.module.Close()
	d.module = nil
	return errors.Join(destroyErr, closeErr)
}

func (m *Manager) closeModule(name string, mod module.Module) {
	if err := mod.Close(); err != nil {
		m.logger.Warn("Failed to close plugin module.", "plugin", name, "error", err)
	}
}
