package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/pluginapi/codec"
	"github.com/stretchr/testify/require"
)

// Lifecycle counts constructor and destructor calls per plugin name.
type Lifecycle struct {
	mu        sync.Mutex
	created   map[string]int
	destroyed map[string]int
	events    []string
}

// NewLifecycle creates an empty lifecycle recorder.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{created: map[string]int{}, destroyed: map[string]int{}}
}

func (l *Lifecycle) record(kind, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kind == "create" {
		l.created[name]++
	} else {
		l.destroyed[name]++
	}
	l.events = append(l.events, kind+":"+name)
}

// Created is the number of constructor calls for name.
func (l *Lifecycle) Created(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.created[name]
}

// Destroyed is the number of destructor calls for name.
func (l *Lifecycle) Destroyed(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.destroyed[name]
}

// Events lists "create:<name>" and "destroy:<name>" in call order.
func (l *Lifecycle) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// FakePlugin is a scriptable plugin instance.
type FakePlugin struct {
	Name    string
	Topics  map[string]bool
	Reply   string
	Fail    error
	Entries []pluginapi.HandlerEntry

	Handled    []pluginapi.Message
	CanAsked   []string
	Settings   map[string]string
	Inlet      pluginapi.Inlet
	Outlet     *pluginapi.Outlet
	Logger     *slog.Logger
	Invoker    pluginapi.Invoker
	Destroyed  bool
	ConfigErr  error
	addressFor string
}

// NewFakePlugin creates a plugin answering the given topics.
func NewFakePlugin(name string, topics ...string) *FakePlugin {
	p := &FakePlugin{Name: name, Topics: map[string]bool{}}
	for _, t := range topics {
		p.Topics[t] = true
	}
	return p
}

// CanHandle implements pluginapi.MessageHandler.
func (p *FakePlugin) CanHandle(topic string) bool {
	p.CanAsked = append(p.CanAsked, topic)
	return p.Topics[topic] || p.Topics["*"]
}

// Handle implements pluginapi.MessageHandler. It replies with Reply encoded
// as JSON when Reply is set.
func (p *FakePlugin) Handle(topic string, m pluginapi.Message) (*pluginapi.Message, error) {
	p.Handled = append(p.Handled, m)
	if p.Fail != nil {
		return nil, p.Fail
	}
	if p.Reply == "" {
		return nil, nil
	}
	reply, err := m.Reply().WithPayload(codec.JSON, p.Reply).Finish()
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// SetInlet implements pluginapi.Routable.
func (p *FakePlugin) SetInlet(in pluginapi.Inlet) { p.Inlet = in }

// SetOutlet implements pluginapi.Routable.
func (p *FakePlugin) SetOutlet(out *pluginapi.Outlet) { p.Outlet = out }

// Address implements pluginapi.Routable.
func (p *FakePlugin) Address() string {
	if p.addressFor != "" {
		return p.addressFor
	}
	return p.Name
}

// SetAddress overrides the address reported to the router.
func (p *FakePlugin) SetAddress(addr string) { p.addressFor = addr }

// Handlers implements pluginapi.HandlerProvider.
func (p *FakePlugin) Handlers() []pluginapi.HandlerEntry { return p.Entries }

// SetLogger implements pluginapi.Loggable.
func (p *FakePlugin) SetLogger(l *slog.Logger) { p.Logger = l }

// SetInvoker implements pluginapi.InvokerAware.
func (p *FakePlugin) SetInvoker(inv pluginapi.Invoker) { p.Invoker = inv }

// Configure implements pluginapi.Configurable.
func (p *FakePlugin) Configure(settings map[string]string) error {
	if p.ConfigErr != nil {
		return p.ConfigErr
	}
	p.Settings = settings
	return nil
}

// EchoEntry is a handler entry replying with its own name.
func EchoEntry(name string) pluginapi.HandlerEntry {
	return pluginapi.HandlerEntry{
		Name:    name,
		Returns: "string",
		Fn: func(ctx context.Context, m pluginapi.Message) (*pluginapi.Message, error) {
			reply, err := m.Reply().WithPayload(codec.JSON, name).Finish()
			if err != nil {
				return nil, err
			}
			return &reply, nil
		},
	}
}

// Symbols builds the export table of a module whose constructor returns the
// instance made by factory and records every lifecycle call in lc.
func Symbols(lc *Lifecycle, name string, factory func() (pluginapi.Plugin, error)) module.Symbols {
	create := func() (pluginapi.Plugin, error) {
		p, err := factory()
		if err == nil {
			lc.record("create", name)
		}
		return p, err
	}
	destroy := func(p pluginapi.Plugin) {
		lc.record("destroy", name)
		if fp, ok := p.(*FakePlugin); ok {
			if fp.Destroyed {
				panic(fmt.Sprintf("plugin %s destroyed twice", name))
			}
			fp.Destroyed = true
		}
	}
	return module.Symbols{
		pluginapi.CreateSymbol:  create,
		pluginapi.DestroySymbol: destroy,
	}
}

// Fixed returns a factory that always yields p.
func Fixed(p pluginapi.Plugin) func() (pluginapi.Plugin, error) {
	return func() (pluginapi.Plugin, error) { return p, nil }
}

// WriteModuleFiles creates empty "<name>.so" files in dir so that the
// search path resolves them; the Static opener supplies their symbols.
func WriteModuleFiles(t testing.TB, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n+".so"), nil, 0644))
	}
}
