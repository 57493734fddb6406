package infrastructure

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"neodymium/events"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/nats"
)

func setupNATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping NATS integration test in short mode")
	}

	ctx := context.Background()
	container, err := nats.Run(ctx, "nats:2.10-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate NATS container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}

func TestNATSClient_ForwardsEventsToStream(t *testing.T) {
	url := setupNATS(t)
	ctx := context.Background()

	client := NewNATSClient(url)
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.EnsureStream(StreamName, Subjects()))
	// A second call finds the existing stream
	require.NoError(t, client.EnsureStream(StreamName, Subjects()))

	forwarder := NewEventForwarder(client)
	require.NoError(t, forwarder.Forward(ctx, events.GuildConfigChangedEvent{GuildID: "g1", Operation: "forget"}))

	nc, err := natsgo.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	js, err := nc.JetStream()
	require.NoError(t, err)

	sub, err := js.SubscribeSync(SubjectFor(events.EventTypeGuildConfigChanged), natsgo.DeliverAll())
	require.NoError(t, err)

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Data, &envelope))
	assert.Equal(t, "guild_config_changed", envelope.EventType)
	assert.Equal(t, "g1", envelope.GuildID)
}

func TestNATSClient_PublishWithoutConnection(t *testing.T) {
	client := NewNATSClient("nats://127.0.0.1:1")
	err := client.Publish(context.Background(), "subject", []byte("x"))
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}
