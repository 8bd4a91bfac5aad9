package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/tesys/internal/app"
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// UsageCode is the exit code for command-line mistakes.
const UsageCode = 2

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: UsageCode, Message: fmt.Sprintf(format, args...)}
}

// Action is what the parsed command line asks the process to do.
type Action int

const (
	// ActionRun runs the peer.
	ActionRun Action = iota
	// ActionListPlugins loads the plugins, lists them and exits.
	ActionListPlugins
	// ActionCall invokes one named operation and exits.
	ActionCall
	// ActionSend routes one message and exits.
	ActionSend
)

// Invocation is the result of a successful Parse.
type Invocation struct {
	Action Action
	Config *app.Config

	// Plugin and Operation name the target of ActionCall.
	Plugin    string
	Operation string
	// Topic is the topic ActionSend routes on.
	Topic string
	// Payload is an optional JSON document for ActionCall and ActionSend.
	Payload string
}

type flags struct {
	logLevel        string
	logFormat       string
	tickRate        float64
	healthcheckPort int
}

// Parse processes command-line arguments. It returns the invocation, a
// boolean indicating if the program should exit cleanly (help or version was
// printed), or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	var inv *Invocation
	f := &flags{}

	root := newRootCommand(f, &inv)
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, usageError("%v", err)
	}
	if inv == nil {
		slog.Debug("No command to run, exiting.")
		return nil, true, nil
	}
	slog.Debug("CLI parser finished successfully.", "action", inv.Action, "config", inv.Config.ConfigPath)
	return inv, false, nil
}

func newRootCommand(f *flags, inv **Invocation) *cobra.Command {
	root := &cobra.Command{
		Use:   "tesys <config_file>",
		Short: "Tesys - a fixed-rate plugin host.",
		Long: `Tesys loads native plugin modules named in a configuration file, routes
topic-addressed messages between them and drives the whole process from a
fixed-rate loop.

The configuration file may be HCL (.hcl) or YAML (.yaml, .yml, .json).`,
		Version:       Version,
		Args:          configArg,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return capture(f, inv, &Invocation{Action: ActionRun}, args[0])
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.Float64Var(&f.tickRate, "tick-rate", 0, "Override the configured loop rate in ticks per second.")
	pf.IntVar(&f.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")

	root.AddCommand(&cobra.Command{
		Use:   "plugins <config_file>",
		Short: "Load the configured plugins, list them and exit.",
		Args:  configArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return capture(f, inv, &Invocation{Action: ActionListPlugins}, args[0])
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "call <config_file> <plugin> <operation> [json_payload]",
		Short: "Load the configured plugins, invoke one named operation and print its reply.",
		Args:  argsBetween(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return capture(f, inv, &Invocation{
				Action:    ActionCall,
				Plugin:    args[1],
				Operation: args[2],
				Payload:   optional(args, 3),
			}, args[0])
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "send <config_file> <topic> [json_payload]",
		Short: "Load the configured plugins, route one message and print the reply.",
		Args:  argsBetween(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return capture(f, inv, &Invocation{
				Action:  ActionSend,
				Topic:   args[1],
				Payload: optional(args, 2),
			}, args[0])
		},
	})
	return root
}

// argsBetween accepts lo to hi positional arguments.
func argsBetween(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < lo || len(args) > hi {
			return usageError("Usage: %s", cmd.UseLine())
		}
		return nil
	}
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// configArg requires exactly one positional argument, the config file.
func configArg(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 1:
		return nil
	case 0:
		return usageError("Usage: %s", cmd.UseLine())
	default:
		return usageError("expected one configuration file, got %d arguments", len(args))
	}
}

func capture(f *flags, inv **Invocation, parsed *Invocation, path string) error {
	cfg, err := app.NewConfig(app.Config{
		ConfigPath:      path,
		LogLevel:        strings.ToLower(f.logLevel),
		LogFormat:       strings.ToLower(f.logFormat),
		TickRate:        f.tickRate,
		HealthcheckPort: f.healthcheckPort,
	})
	if err != nil {
		return usageError("%v", err)
	}
	parsed.Config = cfg
	*inv = parsed
	return nil
}
