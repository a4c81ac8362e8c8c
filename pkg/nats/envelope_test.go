package nats

import (
	"testing"
	"time"

	"smart-support-bot/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_EncodeDecode(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ev := events.New(events.TypeQuerySubmitted, map[string]interface{}{"chat_id": float64(10)}, at)

	raw, err := encode(ev)
	require.NoError(t, err)

	got, err := decode(Subject(ev.EventType()), raw, time.Now())
	require.NoError(t, err)
	assert.Equal(t, events.TypeQuerySubmitted, got.EventType())
	assert.Equal(t, at, got.Timestamp())
	assert.Equal(t, float64(10), got.Payload()["chat_id"])
}

func TestDecode_BarePayloadUsesSubject(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	got, err := decode("events.dataset.reload", []byte(`{"requested_by":"ops"}`), now)
	require.NoError(t, err)
	assert.Equal(t, events.TypeDatasetReload, got.EventType())
	assert.Equal(t, "ops", got.Payload()["requested_by"])
	assert.Equal(t, now, got.Timestamp())
}

func TestDecode_Invalid(t *testing.T) {
	_, err := decode("events.dataset.reload", []byte(`not json`), time.Now())
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "events.conversation.started", Subject(events.TypeConversationStarted))
}
