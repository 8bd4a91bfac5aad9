// Package pluginapi defines the contract between the tesys host and the
// plugins it loads.
//
// A plugin module is a Go shared object built with -buildmode=plugin that
// exports exactly two functions:
//
//	func TesysPluginCreate() (pluginapi.Plugin, error)
//	func TesysPluginDestroy(pluginapi.Plugin)
//
// The host calls the constructor once when it loads the module and passes the
// returned value, unchanged, to the destructor once when it unloads it. The
// instance is owned by the host in between and must not be released by any
// other path.
//
// Everything else is optional. An instance opts into routing by implementing
// MessageHandler, into channel wiring by implementing Routable, into direct
// named invocation by implementing HandlerProvider, and into host services by
// implementing Loggable, Configurable or InvokerAware.
package pluginapi

import (
	"context"
	"log/slog"
)

// Exported symbol names looked up in every plugin module.
const (
	CreateSymbol  = "TesysPluginCreate"
	DestroySymbol = "TesysPluginDestroy"
)

// Plugin is the opaque instance returned by a module's constructor.
type Plugin any

// Constructor is the signature of the CreateSymbol entry point.
type Constructor = func() (Plugin, error)

// Destructor is the signature of the DestroySymbol entry point.
type Destructor = func(Plugin)

// MessageHandler is implemented by plugins that take part in topic routing.
type MessageHandler interface {
	// CanHandle reports whether the plugin accepts messages on topic. It
	// must not have side effects; the router may call it on every message.
	CanHandle(topic string) bool

	// Handle processes m and optionally returns a reply. A nil reply ends
	// the exchange.
	Handle(topic string, m Message) (*Message, error)
}

// Routable is implemented by plugins that send messages on their own or want
// the replies addressed to them.
type Routable interface {
	// SetInlet gives the plugin the endpoint it submits messages through.
	SetInlet(in Inlet)
	// SetOutlet gives the plugin the mailbox replies addressed to it land in.
	SetOutlet(out *Outlet)
	// Address is the plugin's own address, used as the sender of the
	// messages it submits. It is not matched against topics.
	Address() string
}

// HandlerFunc is a named operation a plugin exposes for direct invocation.
type HandlerFunc func(ctx context.Context, m Message) (*Message, error)

// HandlerEntry describes one named operation.
type HandlerEntry struct {
	Name string
	Fn   HandlerFunc
	// Returns documents the shape of the reply payload, e.g. "string".
	Returns string
}

// HandlerProvider is implemented by plugins that expose named operations.
// Handlers is called once at load time; the table cannot change afterwards.
type HandlerProvider interface {
	Handlers() []HandlerEntry
}

// Loggable is implemented by plugins that want the host's logger.
type Loggable interface {
	SetLogger(logger *slog.Logger)
}

// Configurable is implemented by plugins that accept settings from the host
// configuration file. Configure is called once, after construction and
// before any message is routed to the plugin.
type Configurable interface {
	Configure(settings map[string]string) error
}

// Invoker calls a named operation exposed by another loaded plugin. It is
// only valid on the goroutine that delivered the call into the plugin.
type Invoker interface {
	Invoke(ctx context.Context, plugin, op string, m Message) (*Message, error)
}

// InvokerAware is implemented by plugins that call other plugins' named
// operations. The host sets the Invoker once, before Configure.
type InvokerAware interface {
	SetInvoker(inv Invoker)
}
