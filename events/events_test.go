package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	received := make(chan RoleChangedEvent, 2)
	for i := 0; i < 2; i++ {
		bus.Subscribe(EventTypeRoleChanged, func(ctx context.Context, event Event) {
			if ev, ok := event.(RoleChangedEvent); ok {
				received <- ev
			}
		})
	}

	want := RoleChangedEvent{GuildID: "1", MemberID: "2", RoleID: "3", Change: "granted"}
	bus.Emit(context.Background(), want)

	for i := 0; i < 2; i++ {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("Timeout waiting for event")
		}
	}
}

func TestBus_EmitIgnoresOtherTypes(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(EventTypeGuildRegistered, func(ctx context.Context, event Event) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})

	bus.Emit(context.Background(), GuildConfigChangedEvent{GuildID: "1", Operation: "forget"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestBus_PanickingHandlerDoesNotAffectOthers(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	bus.Subscribe(EventTypeGuildRegistered, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeGuildRegistered, func(ctx context.Context, event Event) {
		close(done)
	})

	require.NotPanics(t, func() {
		bus.Emit(context.Background(), GuildRegisteredEvent{GuildID: "1"})
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Second handler was not called")
	}
}

func TestTransactionalBus_FlushAndDiscard(t *testing.T) {
	bus := NewBus()
	received := make(chan Event, 4)
	bus.Subscribe(EventTypeGuildConfigChanged, func(ctx context.Context, event Event) {
		received <- event
	})

	tx := NewTransactionalBus(bus)
	tx.Publish(GuildConfigChangedEvent{GuildID: "1", Operation: "set_rules_message"})
	assert.Equal(t, 1, tx.Pending())

	tx.Discard()
	assert.Equal(t, 0, tx.Pending())

	tx.Publish(GuildConfigChangedEvent{GuildID: "1", Operation: "clear_rules_message"})
	tx.Flush(context.Background())
	assert.Equal(t, 0, tx.Pending())

	select {
	case ev := <-received:
		assert.Equal(t, "clear_rules_message", ev.(GuildConfigChangedEvent).Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for flushed event")
	}

	select {
	case ev := <-received:
		t.Fatalf("Unexpected discarded event delivered: %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransactionalBus_NilBusFlushIsSafe(t *testing.T) {
	tx := NewTransactionalBus(nil)
	tx.Publish(GuildRegisteredEvent{GuildID: "1"})

	assert.NotPanics(t, func() { tx.Flush(context.Background()) })
	assert.Equal(t, 0, tx.Pending())
}
