// Package registry provides the per-plugin table of named operations.
//
// A Table maps the string names a plugin declares (e.g., "test_handler") to
// the compiled Go functions that implement them. It is built exactly once,
// when the plugin is loaded, from the entries the plugin reports through
// pluginapi.HandlerProvider, and is read-only from then on.
//
// Named invocation is a separate path from topic routing: the router offers
// a message to whichever plugin claims its topic first, while a Table lets
// the host call one specific operation of one specific plugin by name.
// Lookups are exact and case-sensitive. An unknown name is reported as an
// error to the caller, never as a crash.
package registry
