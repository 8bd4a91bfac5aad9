package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/tesys/internal/ctxlog"
)

// Run loads the configured plugins and runs the peer until ctx is done or
// the process receives SIGINT or SIGTERM. Every plugin is unloaded before Run
// returns.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	report := a.peer.LoadPlugins(a.specs())
	if len(a.model.Plugins) > 0 && len(report.Loaded) == 0 {
		a.logger.Warn("No configured plugin could be loaded.")
	}

	a.logger.Info("Starting Tesys...")
	err := a.peer.Run(ctx)
	a.logger.Debug("App.Run method finished.")
	return err
}
