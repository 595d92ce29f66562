package trigger

import (
	"context"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fnruntime/invoker"
	"github.com/c360/fnruntime/resolver"
)

type cloudFunc func(ctx context.Context, ev cloudevents.Event) error

func (f cloudFunc) AcceptCloudEvent(ctx context.Context, ev cloudevents.Event) error {
	return f(ctx, ev)
}

func TestBridge_CloudEventThroughInvoker(t *testing.T) {
	got := make(chan cloudevents.Event, 1)
	inv, err := invoker.New(&resolver.Contract{
		Target:   resolver.Target{QualifiedName: "OnOrder"},
		Kind:     resolver.KindCloudEvent,
		Identity: "OnOrder",
		CloudEvent: cloudFunc(func(_ context.Context, ev cloudevents.Event) error {
			got <- ev
			return nil
		}),
	})
	require.NoError(t, err)

	ctx := context.Background()
	conn := newFakeConn()
	b, err := NewBridge(inv, conn, Config{Subject: "orders"})
	require.NoError(t, err)
	require.NoError(t, b.Start(ctx))
	defer b.Stop(time.Second)

	msg := nats.NewMsg("orders")
	msg.Reply = "_INBOX.2"
	msg.Header.Set("ce-specversion", "1.0")
	msg.Header.Set("ce-id", "42")
	msg.Header.Set("ce-source", "//orders")
	msg.Header.Set("ce-type", "com.example.order.created")
	msg.Data = []byte(`{"total":7}`)
	conn.deliver(ctx, msg)

	reply := conn.waitReply(t)
	assert.Equal(t, "200", reply.Header.Get(StatusHeader))
	assert.NotEmpty(t, reply.Header.Get(invoker.ExecutionIDHeader))

	ev := <-got
	assert.Equal(t, "42", ev.ID())
	assert.Equal(t, "com.example.order.created", ev.Type())
	assert.JSONEq(t, `{"total":7}`, string(ev.Data()))
}

func TestBridge_BadEventThroughInvoker(t *testing.T) {
	inv, err := invoker.New(&resolver.Contract{
		Target:   resolver.Target{QualifiedName: "OnOrder"},
		Kind:     resolver.KindCloudEvent,
		Identity: "OnOrder",
		CloudEvent: cloudFunc(func(context.Context, cloudevents.Event) error {
			return nil
		}),
	})
	require.NoError(t, err)

	ctx := context.Background()
	conn := newFakeConn()
	b, err := NewBridge(inv, conn, Config{Subject: "orders"})
	require.NoError(t, err)
	require.NoError(t, b.Start(ctx))
	defer b.Stop(time.Second)

	conn.deliver(ctx, &nats.Msg{Subject: "orders", Reply: "r", Data: []byte(`not json`)})

	reply := conn.waitReply(t)
	assert.Equal(t, "500", reply.Header.Get(StatusHeader))
	assert.Contains(t, string(reply.Data), `"status":500`)
}
