package functions

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Name string `json:"name"`
}

func TestTypedEvent(t *testing.T) {
	var got string
	fn := TypedEvent(func(_ context.Context, p *greeting, ectx *EventContext) error {
		got = p.Name + "@" + ectx.EventID
		return nil
	})

	payload := fn.NewPayload()
	require.IsType(t, &greeting{}, payload)
	require.NoError(t, EventPayload(`{"name":"ada"}`).Decode(payload))

	require.NoError(t, fn.AcceptTypedEvent(context.Background(), payload, &EventContext{EventID: "1"}))
	assert.Equal(t, "ada@1", got)

	assert.Error(t, fn.AcceptTypedEvent(context.Background(), "wrong", &EventContext{}))
}

func TestTypedEvent_FreshPayload(t *testing.T) {
	fn := TypedEvent(func(context.Context, *greeting, *EventContext) error { return nil })
	assert.NotSame(t, fn.NewPayload(), fn.NewPayload())
}

func TestTyped(t *testing.T) {
	fn := Typed(nil, func(_ context.Context, g greeting) (greeting, error) {
		return greeting{Name: strings.ToUpper(g.Name)}, nil
	})

	provider, ok := fn.(WireFormatProvider)
	require.True(t, ok)
	format := provider.WireFormat()
	assert.Equal(t, "application/json", format.ContentType())

	req := fn.NewRequest()
	require.NoError(t, format.Decode(strings.NewReader(`{"name":"grace"}`), req))

	res, err := fn.Apply(context.Background(), req)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, format.Encode(&buf, res))
	assert.JSONEq(t, `{"name":"GRACE"}`, buf.String())
}

func TestEventContext(t *testing.T) {
	var nilCtx *EventContext
	_, ok := nilCtx.Attribute("x")
	assert.False(t, ok)
	assert.Nil(t, nilCtx.Clone())

	ectx := &EventContext{EventID: "1", Attributes: map[string]string{"k": "v"}}
	clone := ectx.Clone()
	clone.Attributes["k"] = "changed"

	v, ok := ectx.Attribute("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestExecutionID(t *testing.T) {
	assert.Empty(t, ExecutionID(context.Background()))

	ctx := WithExecutionID(context.Background(), "exec-1")
	assert.Equal(t, "exec-1", ExecutionID(ctx))
}
