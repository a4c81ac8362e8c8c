package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smart-support-bot/pkg/events"

	"github.com/google/uuid"
)

const (
	StreamName    = "EVENTS"
	SubjectPrefix = "events."
)

// Subject maps an event type to its bus subject.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

type envelope struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func encode(event events.Event) ([]byte, error) {
	data, err := json.Marshal(envelope{
		ID:         uuid.NewString(),
		Type:       event.EventType(),
		OccurredAt: event.Timestamp().UTC(),
		Data:       event.Payload(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return data, nil
}

// decode accepts both enveloped messages and bare JSON objects published by
// other tools; for the latter the type is taken from the subject.
func decode(subject string, raw []byte, now time.Time) (events.BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return events.BaseEvent{}, fmt.Errorf("invalid event data: %w", err)
	}
	if env.Type != "" {
		if env.OccurredAt.IsZero() {
			env.OccurredAt = now
		}
		return events.New(env.Type, env.Data, env.OccurredAt), nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return events.BaseEvent{}, fmt.Errorf("invalid event data: %w", err)
	}
	return events.New(strings.TrimPrefix(subject, SubjectPrefix), payload, now), nil
}
