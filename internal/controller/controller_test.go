package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smart-support-bot/internal/delivery"
	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/internal/pkg/serverutils"
	"smart-support-bot/internal/repository/memory"
	"smart-support-bot/internal/service"
	"smart-support-bot/pkg/conversation"
	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/presentation"
	"smart-support-bot/pkg/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	app   *fiber.App
	store *dataset.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := logger.NewNopLogger()

	store := dataset.NewStore(log)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	outbox := delivery.NewOutbox(log)
	engine := conversation.NewEngine(
		memory.NewSessionRepository(0),
		search.NewStubMatcher(),
		store,
		presentation.NewBuilder("Smart Support Bot"),
		outbox,
		log,
	)

	datasets := service.NewDatasetService(store, pubSub)
	consumer := service.NewConsumerService(pubSub, store, datasets, nil, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Consume(ctx))

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewConversationController(service.NewConversationService(engine, outbox)).RegisterRoutes(api)
	NewDatasetController(datasets).RegisterRoutes(api)

	return &testApp{app: app, store: store}
}

func (a *testApp) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.app.Test(req)
	require.NoError(t, err)

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func TestConversationController_Flow(t *testing.T) {
	a := newTestApp(t)

	status, env := a.do(t, "POST", "/api/conversation/v1/events",
		`{"chat_id":1,"user_id":2,"user_name":"Анна","kind":"command","command":"start"}`)
	require.Equal(t, 200, status)
	assert.True(t, env.Success)

	status, env = a.do(t, "POST", "/api/conversation/v1/events",
		`{"chat_id":1,"user_id":2,"kind":"text","text":"Хочу открыть кафе"}`)
	require.Equal(t, 200, status)

	var res struct {
		Phase    string `json:"phase"`
		Outcome  string `json:"outcome"`
		Messages []struct {
			Ref     string `json:"ref"`
			Payload struct {
				Keyboard [][]struct {
					Data string `json:"data"`
				} `json:"keyboard"`
			} `json:"payload"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "SHOWING_RESULTS", res.Phase)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "select_result_1", res.Messages[0].Payload.Keyboard[0][0].Data)

	status, env = a.do(t, "GET", "/api/conversation/v1/chats/1/messages", "")
	require.Equal(t, 200, status)
	assert.Contains(t, string(env.Data), res.Messages[0].Ref)
}

func TestConversationController_Validation(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing chat", `{"user_id":2,"kind":"text","text":"x"}`},
		{"unknown kind", `{"chat_id":1,"user_id":2,"kind":"voice"}`},
		{"callback without data", `{"chat_id":1,"user_id":2,"kind":"callback"}`},
		{"broken json", `{"chat_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := a.do(t, "POST", "/api/conversation/v1/events", tt.body)
			assert.Equal(t, 400, status)
			assert.False(t, env.Success)
		})
	}

	status, _ := a.do(t, "GET", "/api/conversation/v1/chats/abc/messages", "")
	assert.Equal(t, 400, status)
}

func TestDatasetController(t *testing.T) {
	a := newTestApp(t)

	status, env := a.do(t, "GET", "/api/dataset/v1/info", "")
	require.Equal(t, 200, status)
	assert.Contains(t, string(env.Data), `"status":"unloaded"`)

	status, _ = a.do(t, "POST", "/api/dataset/v1/reload", `{"requested_by":"ops"}`)
	require.Equal(t, 202, status)

	require.Eventually(t, func() bool { return a.store.Info().Loaded() }, 2*time.Second, 10*time.Millisecond)

	status, env = a.do(t, "GET", "/api/dataset/v1/sample?n=2", "")
	require.Equal(t, 200, status)
	var sample struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sample))
	assert.Equal(t, 2, sample.Count)

	status, _ = a.do(t, "GET", "/api/dataset/v1/sample?n=-1", "")
	assert.Equal(t, 400, status)
}
