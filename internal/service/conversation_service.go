package service

import (
	"context"

	"smart-support-bot/internal/delivery"
	"smart-support-bot/internal/dto"
	"smart-support-bot/internal/mapper"
	"smart-support-bot/pkg/conversation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type IConversationService interface {
	HandleEvent(ctx context.Context, req *dto.InboundEventRequest) (*dto.InboundEventResponse, error)
	ChatMessages(ctx context.Context, chatID int64) *dto.ChatMessagesResponse
}

type conversationService struct {
	engine *conversation.Engine
	outbox *delivery.Outbox
	mapper *mapper.ConversationMapper
}

func NewConversationService(engine *conversation.Engine, outbox *delivery.Outbox) IConversationService {
	return &conversationService{
		engine: engine,
		outbox: outbox,
		mapper: mapper.NewConversationMapper(),
	}
}

func (s *conversationService) HandleEvent(ctx context.Context, req *dto.InboundEventRequest) (*dto.InboundEventResponse, error) {
	ctx, span := otel.Tracer("conversation").Start(ctx, "conversation.handle")
	defer span.End()

	ev := s.mapper.RequestToEvent(req)
	before := s.revisions(req.ChatID)

	res := s.engine.Handle(ctx, ev)
	span.SetAttributes(
		attribute.Int64("chat.id", req.ChatID),
		attribute.String("event.kind", req.Kind),
		attribute.String("conversation.phase", res.Phase.String()),
		attribute.String("conversation.outcome", string(res.Outcome)),
	)

	out := &dto.InboundEventResponse{
		Phase:    res.Phase.String(),
		Active:   res.Active,
		Outcome:  string(res.Outcome),
		Messages: s.changedSince(req.ChatID, before),
	}
	if sess, ok := s.engine.Session(ev.Key); ok {
		out.Session = s.mapper.SessionToResponse(sess)
	}
	return out, nil
}

func (s *conversationService) ChatMessages(ctx context.Context, chatID int64) *dto.ChatMessagesResponse {
	return &dto.ChatMessagesResponse{ChatID: chatID, Messages: s.outbox.Messages(chatID)}
}

func (s *conversationService) revisions(chatID int64) map[string]int {
	msgs := s.outbox.Messages(chatID)
	out := make(map[string]int, len(msgs))
	for _, m := range msgs {
		out[m.Ref] = m.Revision
	}
	return out
}

// changedSince returns the messages sent or edited after the revisions
// snapshot was taken.
func (s *conversationService) changedSince(chatID int64, before map[string]int) []delivery.Message {
	out := []delivery.Message{}
	for _, m := range s.outbox.Messages(chatID) {
		if rev, ok := before[m.Ref]; !ok || rev != m.Revision {
			out = append(out, m)
		}
	}
	return out
}
