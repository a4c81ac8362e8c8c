package handler

import (
	"strconv"

	"smart-support-bot/internal/pkg/logger"
	internalWS "smart-support-bot/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const logModule = "ChatStreamHandler"

// ChatStreamHandler streams outbound bot messages of one chat over a
// websocket.
type ChatStreamHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewChatStreamHandler(hub *internalWS.Hub, log logger.ILogger) *ChatStreamHandler {
	return &ChatStreamHandler{hub: hub, logger: log}
}

func (h *ChatStreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/conversation/v1/chats/:chatId/ws", h.ServeWs)
}

// ServeWs upgrades the request and attaches it to the chat in the path.
func (h *ChatStreamHandler) ServeWs(c *fiber.Ctx) error {
	chatID, err := strconv.ParseInt(c.Params("chatId"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(logModule, "Starting WebSocket session", map[string]interface{}{"chat_id": chatID})
		internalWS.ServeWs(h.hub, conn, chatID)
		h.logger.Info(logModule, "WebSocket session ended", map[string]interface{}{"chat_id": chatID})
	})(c)
}
