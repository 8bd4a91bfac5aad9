package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/tesys/internal/config"
	"github.com/specialistvlad/tesys/internal/ctxlog"
	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/internal/peer"
	"github.com/specialistvlad/tesys/internal/scheduler"
)

// Option customises an App.
type Option func(*options)

type options struct {
	opener module.Opener
	loader config.Loader
	clock  scheduler.Clock
}

// WithOpener replaces the native module opener.
func WithOpener(o module.Opener) Option {
	return func(opts *options) { opts.opener = o }
}

// WithLoader replaces the loader picked from the file extension.
func WithLoader(l config.Loader) Option {
	return func(opts *options) { opts.loader = l }
}

// WithClock replaces the loop timer's clock.
func WithClock(c scheduler.Clock) Option {
	return func(opts *options) { opts.clock = c }
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	model      *config.Model
	peer       *peer.Peer
	httpServer *http.Server
}

// NewApp loads the configuration file and builds a stopped peer. No plugin
// is loaded yet.
func NewApp(outW io.Writer, appConfig *Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	loader := o.loader
	if loader == nil {
		var err error
		if loader, err = LoaderFor(appConfig.ConfigPath); err != nil {
			return nil, err
		}
	}

	logger.Info("Loading configuration.", "path", appConfig.ConfigPath)
	model, err := loader.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.TickRate > 0 {
		model.TickRate = appConfig.TickRate
	}
	logger.Debug("Configuration loaded.", "plugins", len(model.Plugins), "tick_rate", model.TickRate)

	opener := o.opener
	if opener == nil {
		opener = module.NewNative()
	}

	peerOpts := peer.DefaultOptions()
	peerOpts.TickRate = model.TickRate
	peerOpts.SearchDirs = model.SearchDirs
	peerOpts.Clock = o.clock
	p, err := peer.New(logger, opener, peerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer: %w", err)
	}

	return &App{
		ctx:    ctx,
		outW:   outW,
		logger: logger,
		config: appConfig,
		model:  model,
		peer:   p,
	}, nil
}

// Peer returns the application's peer. This is primarily for testing.
func (a *App) Peer() *peer.Peer {
	return a.peer
}

// Model returns a copy of the loaded configuration.
func (a *App) Model() *config.Model {
	return a.model.Clone()
}

// specs hands every plugin its own copy of its settings.
func (a *App) specs() []peer.PluginSpec {
	model := a.model.Clone()
	specs := make([]peer.PluginSpec, len(model.Plugins))
	for i, p := range model.Plugins {
		specs[i] = peer.PluginSpec{Name: p.Name, Settings: p.Settings}
	}
	return specs
}
