package pluginapi

import (
	"errors"
	"testing"

	"github.com/specialistvlad/tesys/pluginapi/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_PayloadRoundTrip(t *testing.T) {
	type coord struct {
		RA  float64 `json:"ra" msgpack:"ra"`
		Dec float64 `json:"dec" msgpack:"dec"`
	}
	in := coord{RA: 279.23473479, Dec: 38.78368896}

	for _, c := range []codec.Codec{codec.JSON, codec.Msgpack} {
		m, err := NewMessage("coord").WithPayload(c, in).WithMeta("frame", "ICRS").Finish()
		require.NoError(t, err)
		assert.Equal(t, c.Name(), m.Codec())

		var out coord
		require.NoError(t, m.Decode(&out))
		assert.Equal(t, in, out)

		frame, ok := m.Meta("frame")
		assert.True(t, ok)
		assert.Equal(t, "ICRS", frame)
	}
}

func TestBuilder_Errors(t *testing.T) {
	_, err := NewMessage("").Finish()
	require.Error(t, err, "empty topic must be rejected")

	_, err = NewMessage("ping").WithPayload(codec.Protobuf, "not a proto").Finish()
	require.Error(t, err)
}

func TestMessage_Immutable(t *testing.T) {
	raw := []byte("x")
	m := NewMessage("ping").WithRawPayload("json", raw).WithMeta("k", "v").MustFinish()

	raw[0] = 'y'
	assert.Equal(t, []byte("x"), m.Payload(), "builder input must be copied")

	p := m.Payload()
	p[0] = 'z'
	assert.Equal(t, []byte("x"), m.Payload(), "payload accessor must copy")

	md := m.Metadata()
	md["k"] = "changed"
	v, _ := m.Meta("k")
	assert.Equal(t, "v", v)

	from := m.From("client")
	assert.Equal(t, "", m.Sender())
	assert.Equal(t, "client", from.Sender())
	assert.Equal(t, m.ID(), from.ID())
}

func TestMessage_Reply(t *testing.T) {
	req := NewMessage("ping").Sender("client").MustFinish()
	reply := req.Reply().WithPayload(codec.JSON, "pong").MustFinish()

	assert.Equal(t, "ping", reply.Topic())
	assert.Equal(t, req.ID(), reply.InReplyTo())
	assert.NotEqual(t, req.ID(), reply.ID())

	var s string
	require.NoError(t, reply.Decode(&s))
	assert.Equal(t, "pong", s)
}

func TestMessage_DecodeWithoutPayload(t *testing.T) {
	m := NewMessage("ping").MustFinish()
	var s string
	require.Error(t, m.Decode(&s))

	m = NewMessage("ping").WithRawPayload("yaml", []byte("x")).MustFinish()
	require.ErrorIs(t, m.Decode(&s), codec.ErrUnknownCodec)
}

func TestInlet_StampsSender(t *testing.T) {
	var got []Message
	in := NewInlet("demo", func(m Message) error {
		got = append(got, m)
		return nil
	})

	require.NoError(t, in.Send(NewMessage("ping").Sender("spoofed").MustFinish()))
	require.Len(t, got, 1)
	assert.Equal(t, "demo", got[0].Sender())

	var zero Inlet
	require.Error(t, zero.Send(got[0]))
}

func TestOutlet_Bounded(t *testing.T) {
	out := NewOutlet(1)
	m := NewMessage("ping").MustFinish()

	require.NoError(t, out.Deliver(m))
	err := out.Deliver(m)
	require.True(t, errors.Is(err, ErrOutletFull))
	assert.Equal(t, 1, out.Len())

	drained := out.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, m.ID(), drained[0].ID())
	assert.Empty(t, out.Drain())
}
