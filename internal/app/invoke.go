package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/pluginapi/codec"
)

// HostAddress is the sender address Send uses for the messages it routes.
const HostAddress = "tesys"

// ErrInvalidPayload is returned when a command-line payload is not JSON.
var ErrInvalidPayload = errors.New("payload must be valid JSON")

// Call loads the configured plugins, invokes the named operation op on
// plugin, writes the reply to w and unloads every plugin.
func (a *App) Call(ctx context.Context, w io.Writer, plugin, op, payload string) error {
	msg, err := hostMessage("call", payload)
	if err != nil {
		return err
	}

	a.peer.LoadPlugins(a.specs())
	reply, err := a.peer.Invoke(ctx, plugin, op, msg)
	if err == nil {
		writeReply(w, reply)
	}
	return errors.Join(err, a.peer.Shutdown())
}

// Send loads the configured plugins, routes one message on topic at once,
// writes which plugin handled it and any reply to w, and unloads every
// plugin.
func (a *App) Send(w io.Writer, topic, payload string) error {
	msg, err := hostMessage(topic, payload)
	if err != nil {
		return err
	}

	a.peer.LoadPlugins(a.specs())
	err = a.send(w, msg.From(HostAddress))
	return errors.Join(err, a.peer.Shutdown())
}

func (a *App) send(w io.Writer, msg pluginapi.Message) error {
	_, out, err := a.peer.Connect(HostAddress)
	if err != nil {
		return err
	}
	h, err := a.peer.Route(msg)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, mutedStyle.Render("handled by "+h.String()))
	for _, reply := range out.Drain() {
		writeReply(w, &reply)
	}
	return nil
}

func hostMessage(topic, payload string) (pluginapi.Message, error) {
	b := pluginapi.NewMessage(topic)
	if payload != "" {
		if !json.Valid([]byte(payload)) {
			return pluginapi.Message{}, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
		}
		b = b.WithRawPayload(codec.JSON.Name(), []byte(payload))
	}
	return b.Finish()
}

// writeReply prints a reply payload. JSON is written as is; other codecs are
// decoded generically.
func writeReply(w io.Writer, m *pluginapi.Message) {
	switch {
	case m == nil || len(m.Payload()) == 0:
		fmt.Fprintln(w, mutedStyle.Render("(no reply)"))
	case m.Codec() == codec.JSON.Name():
		fmt.Fprintln(w, string(m.Payload()))
	default:
		var v any
		if err := m.Decode(&v); err != nil {
			fmt.Fprintln(w, m.String())
			return
		}
		fmt.Fprintf(w, "%v\n", v)
	}
}
