package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a websocket connection to the chat it watches and blocks
// until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, chatID int64) {
	client := &Client{Hub: hub, Conn: c, ChatID: chatID, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
