package bootstrap

import (
	"context"

	"smart-support-bot/internal/config"
	"smart-support-bot/internal/controller"
	"smart-support-bot/internal/delivery"
	"smart-support-bot/internal/handler"
	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/internal/repository/memory"
	"smart-support-bot/internal/service"
	"smart-support-bot/internal/websocket"
	"smart-support-bot/pkg/conversation"
	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/metrics"
	pktNats "smart-support-bot/pkg/nats"
	"smart-support-bot/pkg/presentation"
	"smart-support-bot/pkg/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	Logger logger.ILogger

	// Core
	DatasetStore *dataset.Store
	Sessions     *memory.SessionRepository
	Engine       *conversation.Engine
	Outbox       *delivery.Outbox

	// Controllers
	ConversationController controller.IConversationController
	DatasetController      controller.IDatasetController
	ChatStreamHandler      *handler.ChatStreamHandler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	DatasetService  service.IDatasetService
	WebSocketHub    *websocket.Hub

	closers []func()
}

// NewContainer wires every component. Optional infrastructure (NATS, Redis)
// is skipped with a warning when it is not configured or not reachable.
func NewContainer(cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Dataset
	source, err := cfg.DatasetSource()
	if err != nil {
		return nil, err
	}
	c.DatasetStore = dataset.NewStore(sysLogger,
		dataset.WithFetchTimeout(cfg.Dataset.FetchTimeout),
		dataset.WithSheetsClient(dataset.NewSheetsClient(
			cfg.Dataset.SheetsBaseURL,
			cfg.Dataset.SheetsAPIKey,
			cfg.Dataset.FetchTimeout,
		)),
	)
	c.DatasetStore.Configure(source)

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// NATS
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
			natsPub = nil
		} else {
			c.closers = append(c.closers, natsPub.Close)
		}

		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
			natsSub = nil
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to Redis, fan-out stays local", map[string]interface{}{"error": err.Error()})
			_ = rdb.Close()
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
	}

	// 3. Delivery
	c.WebSocketHub = websocket.NewHub(rdb, sysLogger)
	c.Outbox = delivery.NewOutbox(sysLogger,
		delivery.WithEditWindow(cfg.Session.MessageEditWindow),
		delivery.WithPusher(c.WebSocketHub),
	)

	// 4. Conversation
	c.Sessions = memory.NewSessionRepository(cfg.Session.IdleTTL)
	metrics.TrackSessions(c.Sessions.Count)

	opts := []conversation.Option{}
	if natsPub != nil {
		opts = append(opts, conversation.WithPublisher(natsPub))
	}
	c.Engine = conversation.NewEngine(
		c.Sessions,
		search.NewStubMatcher(),
		c.DatasetStore,
		presentation.NewBuilder(cfg.Bot.Name),
		c.Outbox,
		sysLogger,
		opts...,
	)

	// 5. Services
	c.DatasetService = service.NewDatasetService(c.DatasetStore, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, c.DatasetStore, c.DatasetService, natsSub, sysLogger)
	conversationService := service.NewConversationService(c.Engine, c.Outbox)

	// 6. Controllers
	c.ConversationController = controller.NewConversationController(conversationService)
	c.DatasetController = controller.NewDatasetController(c.DatasetService)
	c.ChatStreamHandler = handler.NewChatStreamHandler(c.WebSocketHub, sysLogger)

	return c, nil
}

// Close releases infrastructure connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Sessions.Flush()
}
