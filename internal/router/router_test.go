package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/specialistvlad/tesys/internal/manager"
	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/internal/testutil"
	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/pluginapi/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// setup loads the given fake plugins in order and wires them into a router.
func setup(t *testing.T, plugins ...*testutil.FakePlugin) (*Router, *manager.Manager, *testutil.SafeBuffer) {
	t.Helper()
	logger, logs := testutil.NewLogger(t)
	static := module.NewStatic()
	dir := t.TempDir()
	lc := testutil.NewLifecycle()

	mgr := manager.New(logger, static)
	mgr.AddPluginSearchDirectory(dir)
	for _, p := range plugins {
		testutil.WriteModuleFiles(t, dir, p.Name)
		static.Add(p.Name+".so", testutil.Symbols(lc, p.Name, testutil.Fixed(p)))
		_, err := mgr.Load(p.Name)
		require.NoError(t, err)
	}

	r := New(logger, mgr, DefaultOptions())
	for _, p := range mgr.Plugins() {
		require.NoError(t, r.Wire(p))
	}
	t.Cleanup(func() { _ = mgr.UnloadAll() })
	return r, mgr, logs
}

func request(t *testing.T, in pluginapi.Inlet, topic string) pluginapi.Message {
	t.Helper()
	m, err := pluginapi.NewMessage(topic).WithPayload(codec.JSON, "hello").Finish()
	require.NoError(t, err)
	require.NoError(t, in.Send(m))
	return m
}

func TestTick_FirstMatchWins(t *testing.T) {
	// --- Arrange ---
	first := testutil.NewFakePlugin("first", "ping")
	second := testutil.NewFakePlugin("second", "ping")
	r, _, _ := setup(t, first, second)
	in, _, err := r.Connect("client")
	require.NoError(t, err)
	request(t, in, "ping")

	// --- Act ---
	stats := r.Tick()

	// --- Assert ---
	assert.Equal(t, TickStats{Routed: 1}, stats)
	require.Len(t, first.Handled, 1)
	assert.Empty(t, second.Handled, "a later plugin must never see a message an earlier one accepted")
	assert.Empty(t, second.CanAsked, "routing stops at the first match")
}

func TestTick_SkipsPluginsThatDecline(t *testing.T) {
	a := testutil.NewFakePlugin("alpha", "other")
	b := testutil.NewFakePlugin("beta", "ping")
	r, _, _ := setup(t, a, b)
	in, _, err := r.Connect("client")
	require.NoError(t, err)
	request(t, in, "ping")

	r.Tick()

	assert.Equal(t, []string{"ping"}, a.CanAsked)
	assert.Empty(t, a.Handled)
	require.Len(t, b.Handled, 1)
	assert.Equal(t, "client", b.Handled[0].Sender())
}

func TestTick_UnroutedIsDroppedAndLogged(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "ping")
	r, _, logs := setup(t, p)
	in, _, err := r.Connect("client")
	require.NoError(t, err)
	request(t, in, "nobody-listens")

	stats := r.Tick()

	assert.Equal(t, TickStats{Unrouted: 1}, stats)
	assert.Empty(t, p.Handled)
	assert.Equal(t, 0, r.Pending())
	assert.Contains(t, logs.String(), "Message unrouted, dropping it.")
}

func TestTick_ReplyReachesSenderOutlet(t *testing.T) {
	// --- Arrange ---
	p := testutil.NewFakePlugin("demo", "ping")
	p.Reply = "pong"
	r, _, _ := setup(t, p)
	in, out, err := r.Connect("client")
	require.NoError(t, err)
	req := request(t, in, "ping")

	// --- Act ---
	stats := r.Tick()

	// --- Assert ---
	assert.Equal(t, TickStats{Routed: 1, Replies: 1}, stats)
	replies := out.Drain()
	require.Len(t, replies, 1)
	reply := replies[0]
	assert.Equal(t, req.ID(), reply.InReplyTo())
	assert.Equal(t, "demo", reply.Sender())
	assert.Equal(t, "ping", reply.Topic())

	var body string
	require.NoError(t, reply.Decode(&body))
	assert.Equal(t, "pong", body)
	assert.Equal(t, 0, p.Outlet.Len(), "the handler's own outlet stays empty")
}

func TestTick_ReplyStampedWithCustomAddress(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "ping")
	p.SetAddress("astro")
	p.Reply = "pong"
	r, _, _ := setup(t, p)
	in, out, err := r.Connect("client")
	require.NoError(t, err)
	request(t, in, "ping")

	r.Tick()

	replies := out.Drain()
	require.Len(t, replies, 1)
	assert.Equal(t, "astro", replies[0].Sender())
	assert.Equal(t, "astro", p.Inlet.Address())
}

func TestTick_ReplyWithoutOutletIsDropped(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "ping")
	p.Reply = "pong"
	r, _, logs := setup(t, p)
	m, err := pluginapi.NewMessage("ping").Sender("ghost").Finish()
	require.NoError(t, err)
	require.NoError(t, r.Submit(m))

	stats := r.Tick()

	assert.Equal(t, TickStats{Routed: 1, Dropped: 1}, stats)
	assert.Contains(t, logs.String(), "Reply not delivered.")
}

func TestTick_HandlerErrorIsCountedAndConsumed(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "ping")
	p.Fail = errors.New("boom")
	r, _, logs := setup(t, p)
	in, _, err := r.Connect("client")
	require.NoError(t, err)
	request(t, in, "ping")

	stats := r.Tick()

	assert.Equal(t, TickStats{Failed: 1}, stats)
	assert.Equal(t, 0, r.Pending())
	assert.Contains(t, logs.String(), "boom")
}

// resubmitter sends a new message from inside Handle.
type resubmitter struct {
	*testutil.FakePlugin
}

func (p *resubmitter) Handle(topic string, m pluginapi.Message) (*pluginapi.Message, error) {
	if _, err := p.FakePlugin.Handle(topic, m); err != nil {
		return nil, err
	}
	next, err := pluginapi.NewMessage("ping").Finish()
	if err != nil {
		return nil, err
	}
	return nil, p.Inlet.Send(next)
}

func TestTick_BoundedToMessagesQueuedBeforeIt(t *testing.T) {
	// --- Arrange ---
	fake := testutil.NewFakePlugin("loop", "ping")
	logger, _ := testutil.NewLogger(t)
	static := module.NewStatic()
	dir := t.TempDir()
	testutil.WriteModuleFiles(t, dir, "loop")
	static.Add("loop.so", testutil.Symbols(testutil.NewLifecycle(), "loop", testutil.Fixed(&resubmitter{fake})))
	mgr := manager.New(logger, static)
	mgr.AddPluginSearchDirectory(dir)
	_, err := mgr.Load("loop")
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.UnloadAll() })

	r := New(logger, mgr, DefaultOptions())
	for _, p := range mgr.Plugins() {
		require.NoError(t, r.Wire(p))
	}
	in, _, err := r.Connect("client")
	require.NoError(t, err)
	request(t, in, "ping")

	// --- Act & Assert ---
	stats := r.Tick()
	assert.Equal(t, 1, stats.Routed)
	assert.Equal(t, 1, r.Pending(), "the message sent during dispatch waits for the next tick")

	stats = r.Tick()
	assert.Equal(t, 1, stats.Routed)
	assert.Len(t, fake.Handled, 2)
}

func TestTick_PreservesSubmissionOrder(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "*")
	r, _, _ := setup(t, p)
	in, _, err := r.Connect("client")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		request(t, in, fmt.Sprintf("topic-%d", i))
	}

	r.Tick()

	require.Len(t, p.Handled, 5)
	for i, m := range p.Handled {
		assert.Equal(t, fmt.Sprintf("topic-%d", i), m.Topic())
	}
}

func TestSubmit_QueueLimit(t *testing.T) {
	r := New(nil, &staticRegistry{}, Options{QueueLimit: 2})
	for i := 0; i < 2; i++ {
		require.NoError(t, r.Submit(pluginapi.NewMessage("t").MustFinish()))
	}

	err := r.Submit(pluginapi.NewMessage("t").MustFinish())

	require.Error(t, err)
	assert.Equal(t, 2, r.Pending())
}

func TestConnect_AddressInUse(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "ping")
	r, _, _ := setup(t, p)

	_, _, err := r.Connect("demo")

	require.ErrorIs(t, err, ErrAddressInUse)
}

func TestConnect_EmptyAddress(t *testing.T) {
	r := New(nil, &staticRegistry{}, DefaultOptions())

	_, _, err := r.Connect("")

	require.Error(t, err)
}

func TestUnwire_FreesAddress(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "ping")
	r, mgr, _ := setup(t, p)
	loaded, ok := mgr.Get("demo")
	require.True(t, ok)

	r.Unwire(loaded.Handle)
	r.Unwire(loaded.Handle)

	_, _, err := r.Connect("demo")
	require.NoError(t, err, "the address can be reused once the plugin is unwired")
}

func TestWire_IgnoresNonRoutable(t *testing.T) {
	r := New(nil, &staticRegistry{}, DefaultOptions())

	err := r.Wire(manager.Plugin{Handle: manager.Handle{Name: "plain", ID: 1}, Instance: struct{}{}})

	require.NoError(t, err)
	_, _, err = r.Connect("plain")
	require.NoError(t, err)
}

func TestRoute_ImmediateDispatch(t *testing.T) {
	p := testutil.NewFakePlugin("demo", "ping")
	p.Reply = "pong"
	r, _, _ := setup(t, p)
	_, out, err := r.Connect("client")
	require.NoError(t, err)
	m := pluginapi.NewMessage("ping").Sender("client").MustFinish()

	h, err := r.Route(m)

	require.NoError(t, err)
	assert.Equal(t, "demo", h.Name)
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, 1, out.Len())

	_, err = r.Route(pluginapi.NewMessage("nope").MustFinish())
	require.ErrorIs(t, err, ErrUnrouted)
}

// staticRegistry serves a fixed plugin list without a manager.
type staticRegistry struct {
	plugins []manager.Plugin
}

func (s *staticRegistry) Plugins() []manager.Plugin { return s.plugins }

// TestRoute_FirstAcceptingPluginProperty checks that for any set of plugins
// and topic, the chosen plugin is the lowest-indexed one accepting the topic.
func TestRoute_FirstAcceptingPluginProperty(t *testing.T) {
	topics := []string{"a", "b", "c", "d"}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(t, "plugins")
		reg := &staticRegistry{}
		accepts := make([]map[string]bool, n)
		for i := 0; i < n; i++ {
			p := testutil.NewFakePlugin(fmt.Sprintf("p%d", i))
			accepts[i] = map[string]bool{}
			for _, topic := range topics {
				if rapid.Bool().Draw(t, fmt.Sprintf("p%d-%s", i, topic)) {
					p.Topics[topic] = true
					accepts[i][topic] = true
				}
			}
			reg.plugins = append(reg.plugins, manager.Plugin{
				Handle:   manager.Handle{Name: p.Name, ID: uint64(i + 1)},
				Instance: p,
			})
		}
		topic := rapid.SampledFrom(topics).Draw(t, "topic")
		r := New(nil, reg, DefaultOptions())

		h, err := r.Route(pluginapi.NewMessage(topic).MustFinish())
		if err != nil && !errors.Is(err, ErrUnrouted) {
			t.Fatalf("unexpected route error: %v", err)
		}
		ok := err == nil

		want := -1
		for i := range accepts {
			if accepts[i][topic] {
				want = i
				break
			}
		}
		if want < 0 {
			if ok {
				t.Fatalf("topic %q matched %s but no plugin accepts it", topic, h)
			}
			return
		}
		if !ok || h.Name != fmt.Sprintf("p%d", want) {
			t.Fatalf("topic %q: got %v (ok=%v), want p%d", topic, h, ok, want)
		}
	})
}

// panickyRoutable panics while being wired.
type panickyRoutable struct {
	*testutil.FakePlugin
	inAddress bool
}

func (p *panickyRoutable) Address() string {
	if p.inAddress {
		panic("address")
	}
	return p.Name
}

func (p *panickyRoutable) SetOutlet(*pluginapi.Outlet) { panic("outlet") }

func TestWire_PanicIsReportedAndReleasesAddress(t *testing.T) {
	for _, inAddress := range []bool{true, false} {
		t.Run(fmt.Sprintf("address=%v", inAddress), func(t *testing.T) {
			r := New(nil, &staticRegistry{}, DefaultOptions())
			p := &panickyRoutable{FakePlugin: testutil.NewFakePlugin("bad"), inAddress: inAddress}
			plugin := manager.Plugin{Handle: manager.Handle{Name: "bad", ID: 1}, Instance: p}

			var err error
			require.NotPanics(t, func() { err = r.Wire(plugin) })

			require.Error(t, err)
			assert.Contains(t, err.Error(), "panicked")
			_, _, err = r.Connect("bad")
			require.NoError(t, err, "a failed wiring must not keep the address")
		})
	}
}
