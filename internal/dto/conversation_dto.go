package dto

import (
	"time"

	"smart-support-bot/internal/delivery"
)

type InboundEventRequest struct {
	ChatID       int64  `json:"chat_id" validate:"required"`
	UserID       int64  `json:"user_id" validate:"required"`
	UserName     string `json:"user_name"`
	Kind         string `json:"kind" validate:"required,oneof=command text callback"`
	Command      string `json:"command" validate:"required_if=Kind command"`
	Text         string `json:"text"`
	CallbackData string `json:"callback_data" validate:"required_if=Kind callback"`
	MessageRef   string `json:"message_ref"`
}

type InboundEventResponse struct {
	Phase    string             `json:"phase"`
	Active   bool               `json:"active"`
	Outcome  string             `json:"outcome"`
	Session  *SessionResponse   `json:"session,omitempty"`
	Messages []delivery.Message `json:"messages"`
}

type CandidateResponse struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	MatchScore  float64 `json:"match_score"`
}

type SessionResponse struct {
	ChatID         int64               `json:"chat_id"`
	UserID         int64               `json:"user_id"`
	Phase          string              `json:"phase"`
	LastQuery      string              `json:"last_query,omitempty"`
	QueryTimestamp *time.Time          `json:"query_timestamp,omitempty"`
	Candidates     []CandidateResponse `json:"candidates"`
	Selected       *CandidateResponse  `json:"selected,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type ChatMessagesResponse struct {
	ChatID   int64              `json:"chat_id"`
	Messages []delivery.Message `json:"messages"`
}
