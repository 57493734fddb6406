package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"neodymium/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func TestEventForwarder_Forward(t *testing.T) {
	pub := &fakePublisher{}
	f := NewEventForwarder(pub)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	event := events.RoleChangedEvent{GuildID: "g1", MemberID: "m1", RoleID: "r1", Change: "granted", Source: "toggle_role"}
	require.NoError(t, f.Forward(context.Background(), event))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "neodymium.events.role_changed", pub.msgs[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &envelope))

	_, err := uuid.Parse(envelope.EventID)
	assert.NoError(t, err)
	assert.Equal(t, "role_changed", envelope.EventType)
	assert.Equal(t, "g1", envelope.GuildID)
	assert.True(t, fixed.Equal(envelope.Timestamp))
	assert.Equal(t, "neodymium", envelope.SourceService)
	assert.JSONEq(t, `{"guild_id":"g1","member_id":"m1","role_id":"r1","change":"granted","source":"toggle_role"}`, string(envelope.Payload))
}

func TestEventForwarder_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("stream unavailable")}
	f := NewEventForwarder(pub)

	err := f.Forward(context.Background(), events.GuildRegisteredEvent{GuildID: "g1"})
	assert.EqualError(t, err, "stream unavailable")
}

func TestEventForwarder_SubscribeForwardsBusEvents(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus()
	NewEventForwarder(pub).Subscribe(bus)

	ctx := context.Background()
	bus.Emit(ctx, events.GuildRegisteredEvent{GuildID: "g1"})
	bus.Emit(ctx, events.GuildConfigChangedEvent{GuildID: "g1", Operation: "set_rules_message"})

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, []string{
		"neodymium.events.guild_registered",
		"neodymium.events.guild_config_changed",
		"neodymium.events.role_changed",
	}, Subjects())
}
