package modemtemplate

import (
	"context"
	"testing"

	"phoned/pkg/modem"
	"phoned/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTemplate_Registered(t *testing.T) {
	info := plugin.Get(Name)
	require.NotNil(t, info)
	assert.Equal(t, plugin.KindModem, info.Kind)

	p, err := plugin.Global().Create(Name, &plugin.Context{Logger: zap.NewNop()})
	require.NoError(t, err)
	_, ok := p.(plugin.ModemPlugin)
	assert.True(t, ok)
	p.Destroy()
}

func TestTemplate_DestroyRightAfterInit(t *testing.T) {
	tmpl := New(nil, zap.NewNop())
	assert.NotPanics(t, tmpl.Destroy)
	assert.False(t, tmpl.Started())
}

func TestTemplate_DestroyStops(t *testing.T) {
	tmpl := New(nil, zap.NewNop())
	require.NoError(t, tmpl.Start())
	assert.True(t, tmpl.Started())

	tmpl.Destroy()
	assert.False(t, tmpl.Started())
}

func TestTemplate_RequestsAreNoOps(t *testing.T) {
	tmpl := New(nil, nil)
	require.NoError(t, tmpl.Start())

	requests := []*modem.Request{
		{Type: modem.Authenticate, Text: "1234"},
		{Type: modem.Call, Number: "+33123456789"},
		{Type: modem.CallHangup},
		{Type: modem.MessageSend, Number: "112", Text: "hello"},
		{Type: modem.RequestType(99)},
	}
	for _, req := range requests {
		assert.NoError(t, tmpl.Request(context.Background(), req))
	}
	assert.True(t, tmpl.Started())
	assert.NoError(t, tmpl.Stop())
	assert.NoError(t, tmpl.Stop())
}
