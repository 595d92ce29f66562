//go:build integration

package natsclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fnruntime/natsclient/natstest"
)

func TestQueueSubscribe_RequestReply(t *testing.T) {
	srv := natstest.Start(t)
	ctx := context.Background()

	err := srv.Client.QueueSubscribe(ctx, "fn.echo", "workers", func(_ context.Context, msg *nats.Msg) {
		reply := nats.NewMsg(msg.Reply)
		reply.Data = msg.Data
		reply.Header.Set("Status", "200")
		_ = srv.Client.PublishMsg(reply)
	})
	require.NoError(t, err)

	conn, err := nats.Connect(srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := conn.Request("fn.echo", []byte("ping"), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(resp.Data))
	assert.Equal(t, "200", resp.Header.Get("Status"))

	rtt, err := srv.Client.RTT()
	require.NoError(t, err)
	assert.Positive(t, rtt)
}
