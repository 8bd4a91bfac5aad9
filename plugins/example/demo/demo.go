// Package demo is the reference tesys plugin. It answers "ping" with "pong"
// and exposes two named operations: test_handler and greet.
package demo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/pluginapi/codec"
)

const (
	// Topic is the only topic the plugin answers.
	Topic = "ping"
	// DefaultAddress is used unless the "address" setting overrides it.
	DefaultAddress = "demo"
)

// Plugin is the demo instance.
type Plugin struct {
	logger   *slog.Logger
	inlet    pluginapi.Inlet
	outlet   *pluginapi.Outlet
	address  string
	greeting string
	pings    int
}

// Create is the module constructor.
func Create() (pluginapi.Plugin, error) {
	return &Plugin{
		logger:   slog.New(slog.DiscardHandler),
		address:  DefaultAddress,
		greeting: "hello",
	}, nil
}

// Destroy is the module destructor.
func Destroy(p pluginapi.Plugin) {
	if d, ok := p.(*Plugin); ok {
		d.logger.Debug("Demo plugin destroyed.", "pings", d.pings)
		d.outlet = nil
	}
}

// Pings is the number of ping messages answered.
func (p *Plugin) Pings() int { return p.pings }

// SetLogger implements pluginapi.Loggable.
func (p *Plugin) SetLogger(l *slog.Logger) { p.logger = l }

// Configure implements pluginapi.Configurable.
func (p *Plugin) Configure(settings map[string]string) error {
	for k, v := range settings {
		switch k {
		case "greeting":
			p.greeting = v
		case "address":
			if v == "" {
				return fmt.Errorf("address cannot be empty")
			}
			p.address = v
		default:
			return fmt.Errorf("unknown setting %q", k)
		}
	}
	return nil
}

// CanHandle implements pluginapi.MessageHandler.
func (p *Plugin) CanHandle(topic string) bool { return topic == Topic }

// Handle implements pluginapi.MessageHandler.
func (p *Plugin) Handle(topic string, m pluginapi.Message) (*pluginapi.Message, error) {
	p.pings++
	p.logger.Info("Received ping.", "from", m.Sender(), "id", m.ID())
	reply, err := m.Reply().
		WithPayload(codec.JSON, "pong").
		WithMeta("greeting", p.greeting).
		Finish()
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// SetInlet implements pluginapi.Routable.
func (p *Plugin) SetInlet(in pluginapi.Inlet) { p.inlet = in }

// SetOutlet implements pluginapi.Routable.
func (p *Plugin) SetOutlet(out *pluginapi.Outlet) { p.outlet = out }

// Address implements pluginapi.Routable.
func (p *Plugin) Address() string { return p.address }

// Handlers implements pluginapi.HandlerProvider.
func (p *Plugin) Handlers() []pluginapi.HandlerEntry {
	return []pluginapi.HandlerEntry{
		{Name: "test_handler", Returns: "string", Fn: p.testHandler},
		{Name: "greet", Returns: "string", Fn: p.greet},
	}
}

func (p *Plugin) testHandler(ctx context.Context, m pluginapi.Message) (*pluginapi.Message, error) {
	p.logger.Info("Testing function call.")
	return p.replyString(m, "Testing function call.")
}

func (p *Plugin) greet(ctx context.Context, m pluginapi.Message) (*pluginapi.Message, error) {
	var name string
	if len(m.Payload()) > 0 {
		if err := m.Decode(&name); err != nil {
			return nil, fmt.Errorf("greet: %w", err)
		}
	}
	if name == "" {
		return p.replyString(m, p.greeting)
	}
	return p.replyString(m, p.greeting+", "+name)
}

func (p *Plugin) replyString(m pluginapi.Message, s string) (*pluginapi.Message, error) {
	reply, err := m.Reply().WithPayload(codec.JSON, s).Finish()
	if err != nil {
		return nil, err
	}
	return &reply, nil
}
