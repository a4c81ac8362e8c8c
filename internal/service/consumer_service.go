package service

import (
	"context"
	"encoding/json"
	"fmt"

	"smart-support-bot/internal/dto"
	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/events"
	pktNats "smart-support-bot/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerLogModule = "CONSUMER"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	store      *dataset.Store
	datasets   IDatasetService
	natsSub    *pktNats.Subscriber
	logger     logger.ILogger
}

// NewConsumerService wires the reload queue to the dataset store. natsSub
// may be nil when no NATS server is configured.
func NewConsumerService(
	subscriber message.Subscriber,
	store *dataset.Store,
	datasets IDatasetService,
	natsSub *pktNats.Subscriber,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		store:      store,
		datasets:   datasets,
		natsSub:    natsSub,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, ReloadTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	if cs.natsSub != nil {
		err := cs.natsSub.Subscribe(ctx, events.TypeDatasetReload, "bot-dataset-reload", func(ctx context.Context, ev events.Event) error {
			requestedBy, _ := ev.Payload()["requested_by"].(string)
			if requestedBy == "" {
				requestedBy = "nats"
			}
			return cs.datasets.RequestReload(ctx, requestedBy)
		})
		if err != nil {
			return fmt.Errorf("subscribe to dataset reload events: %w", err)
		}
	}

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.DatasetReloadMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerLogModule, "Failed to unmarshal reload request", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.logger.Info(consumerLogModule, "Reloading dataset", map[string]interface{}{
		"requested_by": payload.RequestedBy,
		"requested_at": payload.RequestedAt,
	})

	// A failed load keeps the previous snapshot; it is not retried.
	if _, err := cs.store.Load(ctx); err != nil {
		cs.logger.Warn(consumerLogModule, "Dataset reload failed", map[string]interface{}{
			"requested_by": payload.RequestedBy,
			"error":        err.Error(),
		})
	}
	msg.Ack()
}
