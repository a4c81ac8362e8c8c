package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/pkg/presentation"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const logModule = "DELIVERY"

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageTooOld   = errors.New("message is too old to be edited")
)

const (
	defaultHistory   = 100
	defaultRetention = 24 * time.Hour
)

// Message is one outbound bot message as the chat currently shows it.
type Message struct {
	Ref      string               `json:"ref"`
	ChatID   int64                `json:"chat_id"`
	Payload  presentation.Payload `json:"payload"`
	Revision int                  `json:"revision"`
	SentAt   time.Time            `json:"sent_at"`
	EditedAt *time.Time           `json:"edited_at,omitempty"`
}

// Pusher forwards encoded updates to live watchers of a chat.
type Pusher interface {
	Publish(ctx context.Context, chatID int64, data []byte)
}

type update struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type chatLog struct {
	messages []*Message
}

// Outbox keeps the recent outbound messages of every chat and lets the
// conversation engine edit them in place.
type Outbox struct {
	mu         sync.Mutex
	chats      *cache.Cache
	editWindow time.Duration
	history    int
	pusher     Pusher
	logger     logger.ILogger
	now        func() time.Time
}

type Option func(*Outbox)

// WithEditWindow limits how long after sending a message can be edited.
// Zero disables the limit.
func WithEditWindow(d time.Duration) Option {
	return func(o *Outbox) { o.editWindow = d }
}

func WithPusher(p Pusher) Option {
	return func(o *Outbox) { o.pusher = p }
}

func WithClock(now func() time.Time) Option {
	return func(o *Outbox) { o.now = now }
}

// WithHistory caps the number of messages kept per chat.
func WithHistory(n int) Option {
	return func(o *Outbox) { o.history = n }
}

func NewOutbox(log logger.ILogger, opts ...Option) *Outbox {
	o := &Outbox{
		history: defaultHistory,
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	// A chat log must outlive the edit window, or edits inside the window
	// would find nothing.
	o.chats = cache.New(max(defaultRetention, o.editWindow), time.Hour)
	return o
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (o *Outbox) Send(ctx context.Context, chatID int64, p presentation.Payload) (string, error) {
	msg := &Message{
		Ref:      uuid.NewString(),
		ChatID:   chatID,
		Payload:  p,
		Revision: 1,
		SentAt:   o.now(),
	}

	o.mu.Lock()
	l := o.chatLocked(chatID)
	l.messages = append(l.messages, msg)
	if over := len(l.messages) - o.history; o.history > 0 && over > 0 {
		l.messages = append([]*Message(nil), l.messages[over:]...)
	}
	o.chats.SetDefault(chatKey(chatID), l)
	out := *msg
	o.mu.Unlock()

	o.push(ctx, "message.sent", out)
	return msg.Ref, nil
}

func (o *Outbox) Edit(ctx context.Context, chatID int64, ref string, p presentation.Payload) error {
	now := o.now()

	o.mu.Lock()
	msg := o.findLocked(chatID, ref)
	if msg == nil {
		o.mu.Unlock()
		return ErrMessageNotFound
	}
	if o.editWindow > 0 && now.Sub(msg.SentAt) > o.editWindow {
		o.mu.Unlock()
		return ErrMessageTooOld
	}
	msg.Payload = p
	msg.Revision++
	msg.EditedAt = &now
	o.touchLocked(chatID)
	out := *msg
	o.mu.Unlock()

	o.push(ctx, "message.edited", out)
	return nil
}

// Messages returns copies of the stored messages of a chat, oldest first.
func (o *Outbox) Messages(chatID int64) []Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	x, ok := o.chats.Get(chatKey(chatID))
	if !ok {
		return []Message{}
	}
	l := x.(*chatLog)
	out := make([]Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = *m
	}
	return out
}

// Forget drops the history of a chat.
func (o *Outbox) Forget(chatID int64) {
	o.mu.Lock()
	o.chats.Delete(chatKey(chatID))
	o.mu.Unlock()
}

func (o *Outbox) chatLocked(chatID int64) *chatLog {
	if x, ok := o.chats.Get(chatKey(chatID)); ok {
		return x.(*chatLog)
	}
	return &chatLog{}
}

// touchLocked restarts the retention period of a chat log.
func (o *Outbox) touchLocked(chatID int64) {
	if x, ok := o.chats.Get(chatKey(chatID)); ok {
		o.chats.SetDefault(chatKey(chatID), x)
	}
}

func (o *Outbox) findLocked(chatID int64, ref string) *Message {
	x, ok := o.chats.Get(chatKey(chatID))
	if !ok {
		return nil
	}
	for _, m := range x.(*chatLog).messages {
		if m.Ref == ref {
			return m
		}
	}
	return nil
}

func (o *Outbox) push(ctx context.Context, kind string, msg Message) {
	if o.pusher == nil {
		return
	}
	data, err := json.Marshal(update{Type: kind, Message: msg})
	if err != nil {
		o.logger.Error(logModule, "Failed to encode update", map[string]interface{}{
			"chat_id": msg.ChatID,
			"error":   err.Error(),
		})
		return
	}
	o.pusher.Publish(ctx, msg.ChatID, data)
}
