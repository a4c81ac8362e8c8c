package service

import (
	"context"
	"encoding/json"
	"time"

	"smart-support-bot/internal/dto"
	"smart-support-bot/pkg/dataset"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ReloadTopic is the in-process queue of dataset reload requests.
const ReloadTopic = "dataset.reload"

const maxSampleSize = 100

type IDatasetService interface {
	Info(ctx context.Context) dataset.Info
	Sample(ctx context.Context, n int) *dto.DatasetSampleResponse
	RequestReload(ctx context.Context, requestedBy string) error
}

type datasetService struct {
	store     *dataset.Store
	publisher message.Publisher
}

func NewDatasetService(store *dataset.Store, publisher message.Publisher) IDatasetService {
	return &datasetService{store: store, publisher: publisher}
}

func (s *datasetService) Info(ctx context.Context) dataset.Info {
	return s.store.Info()
}

func (s *datasetService) Sample(ctx context.Context, n int) *dto.DatasetSampleResponse {
	if n > maxSampleSize {
		n = maxSampleSize
	}
	records := s.store.Sample(n)
	return &dto.DatasetSampleResponse{Count: len(records), Records: records}
}

// RequestReload queues a reload; the consumer service performs it.
func (s *datasetService) RequestReload(ctx context.Context, requestedBy string) error {
	payload, err := json.Marshal(dto.DatasetReloadMessage{
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	return s.publisher.Publish(ReloadTopic, msg)
}
