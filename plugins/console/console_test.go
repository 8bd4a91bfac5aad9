package console

import (
	"bytes"
	"context"
	"testing"

	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/pluginapi/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_PrintsSortedMap(t *testing.T) {
	out := &bytes.Buffer{}
	p := New(out)
	m, err := pluginapi.NewMessage(Topic).WithPayload(codec.JSON, map[string]string{"b": "2", "a": "1"}).Finish()
	require.NoError(t, err)

	reply, err := p.Handle(Topic, m)

	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, "      a = \"1\"\n      b = \"2\"\n", out.String())
}

func TestHandle_PrintsScalarAndNull(t *testing.T) {
	out := &bytes.Buffer{}
	p := New(out)

	_, err := p.Handle(Topic, pluginapi.NewMessage(Topic).MustFinish())
	require.NoError(t, err)
	_, err = p.Handle(Topic, pluginapi.NewMessage(Topic).WithPayload(codec.JSON, 42).MustFinish())
	require.NoError(t, err)

	assert.Equal(t, "      (null)\n      42\n", out.String())
}

func TestHandle_UndecodablePayload(t *testing.T) {
	p := New(&bytes.Buffer{})
	m := pluginapi.NewMessage(Topic).WithRawPayload("json", []byte("{not json")).MustFinish()

	_, err := p.Handle(Topic, m)

	require.Error(t, err)
}

func TestEnv_FiltersByPrefix(t *testing.T) {
	p := New(&bytes.Buffer{})
	p.environ = func() []string { return []string{"TESYS_A=1", "HOME=/root", "TESYS_B=x=y", "BROKEN"} }
	require.NoError(t, p.Configure(map[string]string{"env_prefix": "TESYS_"}))

	reply, err := p.env(context.Background(), pluginapi.NewMessage("call").MustFinish())

	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, reply.Decode(&got))
	assert.Equal(t, map[string]string{"TESYS_A": "1", "TESYS_B": "x=y"}, got)
}

func TestConfigure_RejectsUnknown(t *testing.T) {
	require.Error(t, New(nil).Configure(map[string]string{"colour": "red"}))
}

func TestCanHandle(t *testing.T) {
	p := New(nil)
	assert.True(t, p.CanHandle("print"))
	assert.False(t, p.CanHandle("ping"))
}
