package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the dotted event code (e.g., "conversation.started").
	// It is also the subject suffix on the bus.
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeConversationStarted   = "conversation.started"
	TypeQuerySubmitted        = "conversation.query_submitted"
	TypeCandidateSelected     = "conversation.candidate_selected"
	TypeConversationCancelled = "conversation.cancelled"
	TypeDatasetReload         = "dataset.reload"
)

// BaseEvent is the single concrete event shape used across the bot.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}, at time.Time) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: at}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
