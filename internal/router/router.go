// Package router delivers topic-addressed messages to loaded plugins.
//
// Routing is first-match-wins: for each message the router walks the loaded
// plugins in load order, asks each one that implements
// pluginapi.MessageHandler whether it can handle the topic, and hands the
// message to the first that says yes. Nothing else sees the message. A reply
// returned by the handler is delivered to the outlet registered for the
// original sender.
//
// The router only reads a message's topic, sender and id. Payloads are never
// decoded here.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/specialistvlad/tesys/internal/manager"
	"github.com/specialistvlad/tesys/pluginapi"
)

var (
	// ErrUnrouted is returned when no loaded plugin accepts a topic.
	ErrUnrouted = errors.New("unrouted message")
	// ErrNoOutlet is returned when a reply is addressed to a sender
	// nobody registered an outlet for.
	ErrNoOutlet = errors.New("no outlet for address")
	// ErrAddressInUse is returned when two participants claim one address.
	ErrAddressInUse = errors.New("address already connected")
)

// Registry is the view of the plugin manager the router needs.
type Registry interface {
	Plugins() []manager.Plugin
}

// TickStats summarises one Tick.
type TickStats struct {
	Routed   int
	Unrouted int
	Failed   int
	Replies  int
	Dropped  int
}

// Options configures a Router.
type Options struct {
	// OutletCapacity bounds every outlet the router creates.
	OutletCapacity int
	// QueueLimit bounds the inbound queue. Zero means unbounded.
	QueueLimit int
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		OutletCapacity: pluginapi.DefaultOutletCapacity,
		QueueLimit:     10000,
	}
}

// Router routes messages among the plugins of a Registry.
type Router struct {
	logger   *slog.Logger
	registry Registry
	opts     Options

	// mu guards the inbound queue only; inlets may be used from outside
	// the loop goroutine.
	mu      sync.Mutex
	pending []pluginapi.Message

	outlets map[string]*pluginapi.Outlet
	wired   map[manager.Handle]string
}

// New creates a router over registry.
func New(logger *slog.Logger, registry Registry, opts Options) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.OutletCapacity <= 0 {
		opts.OutletCapacity = pluginapi.DefaultOutletCapacity
	}
	return &Router{
		logger:   logger.With("component", "router"),
		registry: registry,
		opts:     opts,
		outlets:  make(map[string]*pluginapi.Outlet),
		wired:    make(map[manager.Handle]string),
	}
}

// Wire connects a loaded plugin's channel endpoints. Plugins that do not
// implement pluginapi.Routable are left alone.
func (r *Router) Wire(p manager.Plugin) error {
	rt, ok := p.Instance.(pluginapi.Routable)
	if !ok {
		return nil
	}
	var addr string
	if err := guard("Address", func() { addr = rt.Address() }); err != nil {
		return fmt.Errorf("wire plugin %s: %w", p.Handle, err)
	}
	if addr == "" {
		addr = p.Handle.Name
	}
	in, out, err := r.Connect(addr)
	if err != nil {
		return fmt.Errorf("wire plugin %s: %w", p.Handle, err)
	}
	if err := guard("SetInlet", func() { rt.SetInlet(in); rt.SetOutlet(out) }); err != nil {
		r.Disconnect(addr)
		return fmt.Errorf("wire plugin %s: %w", p.Handle, err)
	}
	r.wired[p.Handle] = addr
	r.logger.Debug("Plugin wired.", "plugin", p.Handle.Name, "address", addr)
	return nil
}

// Unwire removes the outlet registered for a plugin by Wire.
func (r *Router) Unwire(h manager.Handle) {
	addr, ok := r.wired[h]
	if !ok {
		return
	}
	delete(r.wired, h)
	r.Disconnect(addr)
	r.logger.Debug("Plugin unwired.", "plugin", h.Name, "address", addr)
}

// Connect registers address as a participant and returns the inlet it sends
// through and the outlet its replies arrive in.
func (r *Router) Connect(address string) (pluginapi.Inlet, *pluginapi.Outlet, error) {
	if address == "" {
		return pluginapi.Inlet{}, nil, fmt.Errorf("address cannot be empty")
	}
	if _, exists := r.outlets[address]; exists {
		return pluginapi.Inlet{}, nil, fmt.Errorf("%w: %q", ErrAddressInUse, address)
	}
	out := pluginapi.NewOutlet(r.opts.OutletCapacity)
	r.outlets[address] = out
	return pluginapi.NewInlet(address, r.Submit), out, nil
}

// Disconnect drops the outlet registered for address.
func (r *Router) Disconnect(address string) {
	delete(r.outlets, address)
}

// Submit queues m for the next tick.
func (r *Router) Submit(m pluginapi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.QueueLimit > 0 && len(r.pending) >= r.opts.QueueLimit {
		return fmt.Errorf("router queue full (%d messages), dropping %s", len(r.pending), m.ID())
	}
	r.pending = append(r.pending, m)
	return nil
}

// Pending is the number of queued messages.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Tick routes every message that was queued when the tick began, in the
// order they were submitted. Messages submitted while the tick runs wait for
// the next one.
func (r *Router) Tick() TickStats {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	var stats TickStats
	for _, m := range batch {
		reply, err := r.dispatch(m)
		switch {
		case errors.Is(err, ErrUnrouted):
			stats.Unrouted++
			r.logger.Warn("Message unrouted, dropping it.", "topic", m.Topic(), "id", m.ID(), "sender", m.Sender())
			continue
		case err != nil:
			stats.Failed++
			r.logger.Warn("Message handler failed.", "topic", m.Topic(), "id", m.ID(), "error", err)
			continue
		}
		stats.Routed++
		if reply == nil {
			continue
		}
		if err := r.deliver(*reply); err != nil {
			stats.Dropped++
			r.logger.Warn("Reply not delivered.", "topic", reply.msg.Topic(), "id", reply.msg.ID(), "to", reply.to, "error", err)
			continue
		}
		stats.Replies++
	}
	return stats
}

// Route dispatches m immediately, bypassing the queue, and delivers any
// reply. It reports which plugin handled the message.
func (r *Router) Route(m pluginapi.Message) (manager.Handle, error) {
	target, handler, ok := r.match(m.Topic())
	if !ok {
		return manager.Handle{}, fmt.Errorf("%w: topic %q", ErrUnrouted, m.Topic())
	}
	reply, err := r.invoke(target, handler, m)
	if err != nil {
		return target, err
	}
	if reply != nil {
		if err := r.deliver(*reply); err != nil {
			return target, err
		}
	}
	return target, nil
}

func (r *Router) dispatch(m pluginapi.Message) (*delivery, error) {
	target, handler, ok := r.match(m.Topic())
	if !ok {
		return nil, fmt.Errorf("%w: topic %q", ErrUnrouted, m.Topic())
	}
	return r.invoke(target, handler, m)
}

func (r *Router) match(topic string) (manager.Handle, pluginapi.MessageHandler, bool) {
	for _, p := range r.registry.Plugins() {
		mh, ok := p.Instance.(pluginapi.MessageHandler)
		if !ok {
			continue
		}
		if mh.CanHandle(topic) {
			return p.Handle, mh, true
		}
	}
	return manager.Handle{}, nil, false
}

// invoke runs the handler and stamps the reply with the handler's address.
// A panic is not recovered: instance state after a panic across the plugin
// boundary is unknown.
func (r *Router) invoke(target manager.Handle, mh pluginapi.MessageHandler, m pluginapi.Message) (*delivery, error) {
	r.logger.Debug("Dispatching message.", "topic", m.Topic(), "id", m.ID(), "plugin", target.Name)
	reply, err := mh.Handle(m.Topic(), m)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", target, err)
	}
	if reply == nil {
		return nil, nil
	}

	from := target.Name
	if addr, ok := r.wired[target]; ok {
		from = addr
	}
	return &delivery{msg: reply.From(from), to: m.Sender()}, nil
}

// guard runs plugin wiring code and reports a panic as an error.
func guard(what string, fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panicked: %v", what, rec)
		}
	}()
	fn()
	return nil
}

// delivery is a reply together with the address it goes back to.
type delivery struct {
	msg pluginapi.Message
	to  string
}

func (r *Router) deliver(d delivery) error {
	if d.to == "" {
		return fmt.Errorf("%w: request had no sender", ErrNoOutlet)
	}
	out, ok := r.outlets[d.to]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoOutlet, d.to)
	}
	return out.Deliver(d.msg)
}
