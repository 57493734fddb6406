package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"neodymium/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// StreamName is the JetStream stream holding forwarded events
const StreamName = "neodymium_events"

const subjectPrefix = "neodymium.events."

// Publisher sends raw payloads to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps a forwarded event
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	GuildID       string          `json:"guild_id"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// EventForwarder copies bus events to an external message stream
type EventForwarder struct {
	publisher Publisher
	now       func() time.Time
}

// NewEventForwarder creates a forwarder publishing through publisher
func NewEventForwarder(publisher Publisher) *EventForwarder {
	return &EventForwarder{publisher: publisher, now: time.Now}
}

// Subjects lists every subject the forwarder publishes to
func Subjects() []string {
	return []string{
		SubjectFor(events.EventTypeGuildRegistered),
		SubjectFor(events.EventTypeGuildConfigChanged),
		SubjectFor(events.EventTypeRoleChanged),
	}
}

// SubjectFor maps an event type to its subject
func SubjectFor(eventType events.EventType) string {
	return subjectPrefix + string(eventType)
}

// Subscribe forwards every known event type published on bus
func (f *EventForwarder) Subscribe(bus *events.Bus) {
	for _, eventType := range []events.EventType{
		events.EventTypeGuildRegistered,
		events.EventTypeGuildConfigChanged,
		events.EventTypeRoleChanged,
	} {
		bus.Subscribe(eventType, func(ctx context.Context, event events.Event) {
			if err := f.Forward(ctx, event); err != nil {
				log.WithFields(log.Fields{
					"eventType": event.Type(),
					"error":     err,
				}).Error("Failed to forward event")
			}
		})
	}
}

// Forward publishes a single event inside an envelope
func (f *EventForwarder) Forward(ctx context.Context, event events.Event) error {
	data, err := f.envelope(event)
	if err != nil {
		return err
	}
	return f.publisher.Publish(ctx, SubjectFor(event.Type()), data)
}

func (f *EventForwarder) envelope(event events.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		GuildID:       guildIDOf(event),
		Timestamp:     f.now().UTC(),
		SourceService: "neodymium",
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

func guildIDOf(event events.Event) string {
	switch e := event.(type) {
	case events.GuildRegisteredEvent:
		return e.GuildID
	case events.GuildConfigChangedEvent:
		return e.GuildID
	case events.RoleChangedEvent:
		return e.GuildID
	default:
		return ""
	}
}
