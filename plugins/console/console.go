// Package console is a tesys plugin that prints messages on the "print"
// topic and exposes the process environment through the "env" handler.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/pluginapi/codec"
)

// Topic is the topic the plugin prints.
const Topic = "print"

// Plugin is the console instance.
type Plugin struct {
	logger    *slog.Logger
	out       io.Writer
	envPrefix string
	environ   func() []string
}

// Create is the module constructor.
func Create() (pluginapi.Plugin, error) {
	return New(os.Stdout), nil
}

// Destroy is the module destructor.
func Destroy(pluginapi.Plugin) {}

// New returns a console printing to out.
func New(out io.Writer) *Plugin {
	return &Plugin{
		logger:  slog.New(slog.DiscardHandler),
		out:     out,
		environ: os.Environ,
	}
}

// SetLogger implements pluginapi.Loggable.
func (p *Plugin) SetLogger(l *slog.Logger) { p.logger = l }

// Configure implements pluginapi.Configurable. The only setting is
// "env_prefix", which limits what the env handler reveals.
func (p *Plugin) Configure(settings map[string]string) error {
	for k, v := range settings {
		if k != "env_prefix" {
			return fmt.Errorf("unknown setting %q", k)
		}
		p.envPrefix = v
	}
	return nil
}

// CanHandle implements pluginapi.MessageHandler.
func (p *Plugin) CanHandle(topic string) bool { return topic == Topic }

// Handle implements pluginapi.MessageHandler. A JSON object payload is
// printed one sorted key per line; anything else is printed as a value.
func (p *Plugin) Handle(topic string, m pluginapi.Message) (*pluginapi.Message, error) {
	p.logger.Info("Printing input", "from", m.Sender())

	if len(m.Payload()) == 0 {
		fmt.Fprintln(p.out, "      (null)")
		return nil, nil
	}

	var values map[string]string
	if err := m.Decode(&values); err != nil {
		var raw any
		if err := m.Decode(&raw); err != nil {
			return nil, fmt.Errorf("print: %w", err)
		}
		fmt.Fprintf(p.out, "      %v\n", raw)
		return nil, nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.out, "      %s = %q\n", k, values[k])
	}
	return nil, nil
}

// Handlers implements pluginapi.HandlerProvider.
func (p *Plugin) Handlers() []pluginapi.HandlerEntry {
	return []pluginapi.HandlerEntry{
		{Name: "env", Returns: "map(string)", Fn: p.env},
	}
}

// env replies with the environment variables whose names start with the
// configured prefix.
func (p *Plugin) env(ctx context.Context, m pluginapi.Message) (*pluginapi.Message, error) {
	envMap := make(map[string]string)
	for _, e := range p.environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && strings.HasPrefix(pair[0], p.envPrefix) {
			envMap[pair[0]] = pair[1]
		}
	}
	reply, err := m.Reply().WithPayload(codec.JSON, envMap).Finish()
	if err != nil {
		return nil, err
	}
	return &reply, nil
}
