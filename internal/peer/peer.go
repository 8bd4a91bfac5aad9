// Package peer runs the host: it owns the plugin manager and the router, and
// drives routing from a fixed-rate loop.
//
// A Peer is used in two steps. LoadPlugins fills the manager from
// configuration, tolerating individual failures. Run then ticks until Stop is
// called or its context is cancelled, and unloads every plugin before it
// returns. The stop request is observed only between ticks, so a tick in
// progress always completes.
package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/specialistvlad/tesys/internal/manager"
	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/internal/router"
	"github.com/specialistvlad/tesys/internal/scheduler"
	"github.com/specialistvlad/tesys/pluginapi"
)

// ErrAlreadyRunning is returned by Run when the peer is not stopped.
var ErrAlreadyRunning = errors.New("peer is already running")

// PluginSpec names a plugin to load and the settings to give it.
type PluginSpec struct {
	Name     string
	Settings map[string]string
}

// LoadFailure records why one plugin did not load.
type LoadFailure struct {
	Name string
	Err  error
}

// LoadReport is the outcome of LoadPlugins.
type LoadReport struct {
	Loaded []manager.Handle
	Failed []LoadFailure
}

// Options configures a Peer.
type Options struct {
	// TickRate is the loop frequency in ticks per second.
	TickRate float64
	// SearchDirs are added to the manager's search list in order.
	SearchDirs []string
	// Clock overrides the loop timer's clock.
	Clock scheduler.Clock
	// Router configures the message router.
	Router router.Options
	// OnTick, if set, is called on the loop goroutine after every tick.
	OnTick func(router.TickStats)
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		TickRate:   scheduler.DefaultRate,
		SearchDirs: []string{"./plugins"},
		Router:     router.DefaultOptions(),
	}
}

// Peer is the top-level orchestrator.
type Peer struct {
	logger *slog.Logger
	mgr    *manager.Manager
	router *router.Router
	timer  *scheduler.LoopTimer
	onTick func(router.TickStats)

	state   atomic.Int32
	stopReq atomic.Bool
	ticks   atomic.Uint64
}

// New creates a stopped peer whose manager opens modules with opener.
func New(logger *slog.Logger, opener module.Opener, opts Options) (*Peer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.TickRate == 0 {
		opts.TickRate = scheduler.DefaultRate
	}

	var timerOpts []scheduler.Option
	if opts.Clock != nil {
		timerOpts = append(timerOpts, scheduler.WithClock(opts.Clock))
	}
	timer, err := scheduler.New(opts.TickRate, timerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create loop timer: %w", err)
	}

	mgr := manager.New(logger, opener)
	for _, dir := range opts.SearchDirs {
		mgr.AddPluginSearchDirectory(dir)
	}

	return &Peer{
		logger: logger.With("component", "peer"),
		mgr:    mgr,
		router: router.New(logger, mgr, opts.Router),
		timer:  timer,
		onTick: opts.OnTick,
	}, nil
}

// Manager exposes the plugin manager. It must not be used while Run is
// ticking.
func (p *Peer) Manager() *manager.Manager { return p.mgr }

// State reports the current lifecycle state.
func (p *Peer) State() State { return State(p.state.Load()) }

// Ticks is the number of ticks completed since the peer was created.
func (p *Peer) Ticks() uint64 { return p.ticks.Load() }

// LoadPlugins loads every spec in order and wires the plugins that loaded
// into the router. A plugin that fails is logged and skipped.
func (p *Peer) LoadPlugins(specs []PluginSpec) LoadReport {
	var report LoadReport
	for _, spec := range specs {
		h, err := p.load(spec)
		if err != nil {
			p.logger.Warn("Unable to load plugin.", "plugin", spec.Name, "error", err)
			report.Failed = append(report.Failed, LoadFailure{Name: spec.Name, Err: err})
			continue
		}
		report.Loaded = append(report.Loaded, h)
	}
	p.logger.Info("Plugins loaded.", "loaded", len(report.Loaded), "failed", len(report.Failed))
	return report
}

func (p *Peer) load(spec PluginSpec) (manager.Handle, error) {
	h, err := p.mgr.LoadWithSettings(spec.Name, spec.Settings)
	if err != nil {
		return manager.Handle{}, err
	}
	loaded, err := p.mgr.Lookup(h)
	if err == nil {
		err = p.router.Wire(loaded)
	}
	if err != nil {
		if unloadErr := p.mgr.Unload(h); unloadErr != nil {
			err = errors.Join(err, unloadErr)
		}
		return manager.Handle{}, err
	}
	return h, nil
}

// Connect registers a host-side participant with the router. It must be
// called before Run or from OnTick.
func (p *Peer) Connect(address string) (pluginapi.Inlet, *pluginapi.Outlet, error) {
	return p.router.Connect(address)
}

// Submit queues m for the next tick. It is safe to call from any goroutine.
func (p *Peer) Submit(m pluginapi.Message) error {
	return p.router.Submit(m)
}

// Pending is the number of messages waiting for the next tick.
func (p *Peer) Pending() int {
	return p.router.Pending()
}

// Invoke calls the named operation op on the plugin loaded as name. Like
// Connect, it must be called before Run, after it, or from OnTick.
func (p *Peer) Invoke(ctx context.Context, name, op string, m pluginapi.Message) (*pluginapi.Message, error) {
	return p.mgr.InvokeByName(ctx, name, op, m)
}

// Route dispatches m immediately instead of queueing it for the next tick
// and delivers any reply. It reports which plugin handled the message. The
// calling rules of Invoke apply.
func (p *Peer) Route(m pluginapi.Message) (manager.Handle, error) {
	return p.router.Route(m)
}

// Stop asks a running peer to stop after the current tick.
func (p *Peer) Stop() {
	p.stopReq.Store(true)
}

// Run ticks until Stop is called or ctx is done, then unloads every plugin.
// Cancellation is a normal stop and is not reported as an error.
func (p *Peer) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}
	p.stopReq.Store(false)
	p.timer.Reset()
	p.logger.Info("Peer running.", "tick_rate", p.timer.Rate(), "plugins", p.mgr.Len())

	for !p.stopReq.Load() && ctx.Err() == nil {
		p.timer.Start()
		stats := p.router.Tick()
		p.ticks.Add(1)
		if p.onTick != nil {
			p.onTick(stats)
		}
		p.timer.End(ctx)
	}

	p.state.Store(int32(Stopping))
	p.logger.Info("Peer stopping.", "ticks", p.Ticks(), "overruns", p.timer.Overruns())
	err := p.shutdown()
	p.state.Store(int32(Stopped))
	p.logger.Info("Peer stopped.")
	return err
}

// Shutdown unloads every plugin without running the loop. Run calls it on
// the way out.
func (p *Peer) Shutdown() error {
	if p.State() == Running {
		return ErrAlreadyRunning
	}
	return p.shutdown()
}

func (p *Peer) shutdown() error {
	plugins := p.mgr.Plugins()
	for i := len(plugins) - 1; i >= 0; i-- {
		p.router.Unwire(plugins[i].Handle)
	}
	if err := p.mgr.UnloadAll(); err != nil {
		return fmt.Errorf("failed to unload plugins: %w", err)
	}
	return nil
}
