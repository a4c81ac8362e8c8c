package conversation

import (
	"context"

	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/events"
	"smart-support-bot/pkg/presentation"
	"smart-support-bot/pkg/store"
)

// Messenger delivers payloads to a chat. Edit fails when the referenced
// message cannot be changed any more; the engine then sends a new one.
type Messenger interface {
	Send(ctx context.Context, chatID int64, p presentation.Payload) (ref string, err error)
	Edit(ctx context.Context, chatID int64, ref string, p presentation.Payload) error
}

// DatasetReader is the read side of the dataset store.
type DatasetReader interface {
	Info() dataset.Info
	CurrentSnapshot() *dataset.Snapshot
}

// EventPublisher receives domain events after an event has been handled.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// SessionStore is the per-key serialized session table.
type SessionStore interface {
	Lock(key store.Key) (unlock func())
	Get(key store.Key) (*store.Session, bool)
	Save(session *store.Session)
	Delete(key store.Key)
}
