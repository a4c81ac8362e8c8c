package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"smart-support-bot/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	logModule = "Hub"

	// ClusterChannel carries outbound chat messages between instances.
	ClusterChannel = "bot_cluster_events"
)

type Hub struct {
	// Registered clients: ChatID -> connections watching that chat
	clients map[int64][]*Client

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out. Nil means local only.
	rdb *redis.Client

	logger logger.ILogger
}

type clusterMessage struct {
	ChatID  int64           `json:"chat_id"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[int64][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

// Run serves register/unregister requests until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ChatID] = append(h.clients[client.ChatID], client)
			h.mu.Unlock()
			h.logger.Info(logModule, "Client registered", map[string]interface{}{"chat_id": client.ChatID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// leave unregisters a client. After Run has returned it removes the client
// directly instead of blocking on the unregister channel.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.ChatID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.ChatID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.ChatID]) == 0 {
		delete(h.clients, client.ChatID)
		h.logger.Info(logModule, "Chat has no more watchers", map[string]interface{}{"chat_id": client.ChatID})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for chatID, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, chatID)
	}
}

// Publish pushes an encoded message to every connection watching chatID.
// With Redis configured the message goes through the cluster channel only,
// so every instance (this one included) delivers it exactly once.
func (h *Hub) Publish(ctx context.Context, chatID int64, data []byte) {
	if h.rdb == nil {
		h.deliverLocal(chatID, data)
		return
	}

	payload, err := json.Marshal(clusterMessage{ChatID: chatID, Message: data})
	if err != nil {
		h.logger.Error(logModule, "Failed to encode cluster message", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := h.rdb.Publish(ctx, ClusterChannel, payload).Err(); err != nil {
		h.logger.Warn(logModule, "Redis publish failed, delivering locally", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		h.deliverLocal(chatID, data)
	}
}

func (h *Hub) deliverLocal(chatID int64, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.clients[chatID] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn(logModule, "Client send buffer full, dropping connection", map[string]interface{}{"chat_id": chatID})
		go h.leave(client)
	}
}

// Watchers returns the number of local connections for a chat.
func (h *Hub) Watchers(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[chatID])
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	// Every instance subscribes to the single cluster channel and keeps only
	// the messages for chats it has local watchers for.
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn(logModule, "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			h.deliverLocal(payload.ChatID, payload.Message)
		}
	}
}
