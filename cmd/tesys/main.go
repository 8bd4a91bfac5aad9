package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/tesys/internal/app"
	"github.com/specialistvlad/tesys/internal/cli"
)

// main is the entrypoint for the tesys host.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(context.Background(), os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string, opts ...app.Option) error {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	tesys, err := app.NewApp(outW, inv.Config, opts...)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	switch inv.Action {
	case cli.ActionListPlugins:
		_, err = tesys.ListPlugins(outW)
		return err
	case cli.ActionCall:
		return tesys.Call(ctx, outW, inv.Plugin, inv.Operation, inv.Payload)
	case cli.ActionSend:
		return tesys.Send(outW, inv.Topic, inv.Payload)
	default:
		return tesys.Run(ctx)
	}
}
