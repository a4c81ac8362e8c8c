package dto

import "smart-support-bot/pkg/dataset"

type DatasetSampleResponse struct {
	Count   int              `json:"count"`
	Records []dataset.Record `json:"records"`
}

type DatasetReloadRequest struct {
	RequestedBy string `json:"requested_by" validate:"max=64"`
}

type DatasetReloadResponse struct {
	Queued bool `json:"queued"`
}

// DatasetReloadMessage is the payload of a queued reload request.
type DatasetReloadMessage struct {
	RequestedBy string `json:"requested_by"`
	RequestedAt string `json:"requested_at"`
}
