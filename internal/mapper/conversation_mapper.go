package mapper

import (
	"smart-support-bot/internal/dto"
	"smart-support-bot/pkg/conversation"
	"smart-support-bot/pkg/store"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) RequestToEvent(req *dto.InboundEventRequest) conversation.Event {
	return conversation.Event{
		Key:          store.Key{ChatID: req.ChatID, UserID: req.UserID},
		Kind:         conversation.EventKind(req.Kind),
		Command:      req.Command,
		Text:         req.Text,
		CallbackData: req.CallbackData,
		UserName:     req.UserName,
		MessageRef:   req.MessageRef,
	}
}

func (m *ConversationMapper) CandidateToResponse(c store.Candidate) dto.CandidateResponse {
	return dto.CandidateResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		MatchScore:  c.Score,
	}
}

func (m *ConversationMapper) SessionToResponse(s store.Session) *dto.SessionResponse {
	res := &dto.SessionResponse{
		ChatID:         s.Key.ChatID,
		UserID:         s.Key.UserID,
		Phase:          s.Phase.String(),
		LastQuery:      s.LastQuery,
		QueryTimestamp: s.QueryTimestamp,
		Candidates:     make([]dto.CandidateResponse, 0, len(s.Candidates)),
		UpdatedAt:      s.UpdatedAt,
	}
	for _, c := range s.Candidates {
		res.Candidates = append(res.Candidates, m.CandidateToResponse(c))
	}
	if s.Selected != nil {
		sel := m.CandidateToResponse(*s.Selected)
		res.Selected = &sel
	}
	return res
}
