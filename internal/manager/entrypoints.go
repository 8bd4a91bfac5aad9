package manager

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/pluginapi"
)

// entryPoints resolves the constructor and destructor a module must export.
// Exported functions and exported variables holding functions are both
// accepted.
func entryPoints(mod module.Module) (pluginapi.Constructor, pluginapi.Destructor, error) {
	createSym, err := mod.Lookup(pluginapi.CreateSymbol)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", pluginapi.CreateSymbol, err)
	}
	destroySym, err := mod.Lookup(pluginapi.DestroySymbol)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", pluginapi.DestroySymbol, err)
	}

	var create pluginapi.Constructor
	switch fn := createSym.(type) {
	case func() (pluginapi.Plugin, error):
		create = fn
	case *func() (pluginapi.Plugin, error):
		if fn != nil {
			create = *fn
		}
	}
	if create == nil {
		return nil, nil, fmt.Errorf("%s has type %T, want %T", pluginapi.CreateSymbol, createSym, create)
	}

	var destroy pluginapi.Destructor
	switch fn := destroySym.(type) {
	case func(pluginapi.Plugin):
		destroy = fn
	case *func(pluginapi.Plugin):
		if fn != nil {
			destroy = *fn
		}
	}
	if destroy == nil {
		return nil, nil, fmt.Errorf("%s has type %T, want %T", pluginapi.DestroySymbol, destroySym, destroy)
	}

	return create, destroy, nil
}

// construct calls the constructor, turning a panic or a nil instance into an
// error so a bad module never takes the host down during startup. An instance
// returned together with an error is destroyed before the error is reported.
func construct(create pluginapi.Constructor, destroy pluginapi.Destructor) (instance pluginapi.Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance, err = nil, fmt.Errorf("constructor panicked: %v", r)
		}
	}()

	instance, err = create()
	if err != nil {
		if instance != nil {
			err = errors.Join(err, destruct(destroy, instance))
		}
		return nil, err
	}
	if instance == nil {
		return nil, errors.New("constructor returned a nil instance")
	}
	return instance, nil
}

// destruct calls the destructor. A panic is reported as an error so the
// remaining plugins still get unloaded during shutdown.
func destruct(destroy pluginapi.Destructor, instance pluginapi.Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destructor panicked: %v", r)
		}
	}()
	destroy(instance)
	return nil
}
