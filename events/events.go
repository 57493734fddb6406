package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeGuildRegistered    EventType = "guild_registered"
	EventTypeGuildConfigChanged EventType = "guild_config_changed"
	EventTypeRoleChanged        EventType = "role_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// GuildRegisteredEvent is emitted the first time a guild is seen
type GuildRegisteredEvent struct {
	GuildID string `json:"guild_id"`
}

func (e GuildRegisteredEvent) Type() EventType {
	return EventTypeGuildRegistered
}

// GuildConfigChangedEvent is emitted after a configuration change has been persisted
type GuildConfigChangedEvent struct {
	GuildID   string `json:"guild_id"`
	Operation string `json:"operation"` // e.g. "set_rules_message", "add_emoji_role"
}

func (e GuildConfigChangedEvent) Type() EventType {
	return EventTypeGuildConfigChanged
}

// RoleChangedEvent is emitted after a reaction granted or revoked a role
type RoleChangedEvent struct {
	GuildID  string `json:"guild_id"`
	MemberID string `json:"member_id"`
	RoleID   string `json:"role_id"`
	Change   string `json:"change"` // "granted" or "revoked"
	Source   string `json:"source"` // action kind that caused it
}

func (e RoleChangedEvent) Type() EventType {
	return EventTypeRoleChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers.
// Handlers run asynchronously; a panicking handler is logged and dropped.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised during a mutation until it is persisted.
// Flushes to the underlying bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// called after the change was written to storage
func (b *TransactionalBus) Flush(ctx context.Context) {
	if b.real != nil {
		for _, ev := range b.pending {
			b.real.Emit(ctx, ev)
		}
	}
	b.pending = nil
}

// called after a failed write.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// Pending returns the number of events waiting to be flushed
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}
