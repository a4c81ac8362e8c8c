package conversation

import (
	"context"
	"strings"
	"time"

	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/pkg/events"
	"smart-support-bot/pkg/metrics"
	"smart-support-bot/pkg/presentation"
	"smart-support-bot/pkg/search"
	"smart-support-bot/pkg/store"
)

const logModule = "CONVERSATION"

// Engine runs the conversation state machine. Events for different keys are
// handled concurrently; events for one key are handled one at a time in
// arrival order.
type Engine struct {
	sessions  SessionStore
	matcher   search.Matcher
	dataset   DatasetReader
	builder   *presentation.Builder
	messenger Messenger
	publisher EventPublisher
	logger    logger.ILogger
	now       func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithPublisher(p EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func NewEngine(
	sessions SessionStore,
	matcher search.Matcher,
	ds DatasetReader,
	builder *presentation.Builder,
	messenger Messenger,
	log logger.ILogger,
	opts ...Option,
) *Engine {
	e := &Engine{
		sessions:  sessions,
		matcher:   matcher,
		dataset:   ds,
		builder:   builder,
		messenger: messenger,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turn carries the state of one event through its handler.
type turn struct {
	ev      Event
	id      int
	session *store.Session
	events  []events.Event
}

type handlerFunc func(e *Engine, ctx context.Context, t *turn) (store.Phase, Outcome)

// handlers maps (phase, action) to the handler that serves it. Start and
// cancel commands are accepted in every phase and are handled before this
// lookup. A missing entry means the event is not supported in that phase.
var handlers = map[store.Phase]map[Action]handlerFunc{
	store.PhaseAwaitingQuery: {
		ActionQuery:        (*Engine).onQuery,
		ActionShowExamples: (*Engine).onExamples,
		ActionShowStats:    (*Engine).onStats,
		ActionSelect:       (*Engine).onSelect,
	},
	store.PhaseShowingResults: {
		ActionSelect:       (*Engine).onSelect,
		ActionNewSearch:    (*Engine).onNewSearch,
		ActionCancelSearch: (*Engine).onCancelSearch,
		ActionShowExamples: (*Engine).onExamples,
		ActionShowStats:    (*Engine).onStats,
	},
}

// Handle processes one event. Delivery and search failures are recovered
// here and never returned.
func (e *Engine) Handle(ctx context.Context, ev Event) Result {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	action, id := ev.action()
	metrics.IncEvent(string(ev.Kind))

	unlock := e.sessions.Lock(ev.Key)
	t := &turn{ev: ev, id: id}
	res := e.handleLocked(ctx, t, action)
	unlock()

	for _, out := range t.events {
		e.publish(ctx, out)
	}
	return res
}

func (e *Engine) handleLocked(ctx context.Context, t *turn, action Action) Result {
	key := t.ev.Key
	from := store.PhaseIdle

	// Stored sessions are never mutated in place; the turn works on a copy
	// that replaces the stored one only when the transition is accepted.
	if stored, ok := e.sessions.Get(key); ok {
		work := stored.Clone()
		t.session = &work
		from = work.Phase
	}

	switch action {
	case ActionStart:
		return e.onStart(ctx, t, from)
	case ActionCancel:
		return e.onCancel(ctx, t, from)
	}

	if t.session == nil {
		t.session = store.NewSession(key, t.ev.At)
		e.recordTransition(store.PhaseIdle, store.PhaseAwaitingQuery)
		from = store.PhaseAwaitingQuery
		e.logger.Debug(logModule, "Session created implicitly", map[string]interface{}{
			"key":    key.String(),
			"action": action.String(),
		})
	}

	h, ok := handlers[from][action]
	if !ok {
		e.send(ctx, key.ChatID, e.builder.Unsupported(from))
		e.sessions.Save(t.session)
		return Result{Phase: from, Active: true, Outcome: OutcomeUnsupported}
	}

	next, outcome := h(e, ctx, t)

	if !store.CanTransition(from, next) {
		metrics.IncRejectedTransition(from.String(), next.String())
		e.logger.Error(logModule, "Transition refused", map[string]interface{}{
			"key":    key.String(),
			"from":   from.String(),
			"to":     next.String(),
			"action": action.String(),
		})
		t.events = nil
		return Result{Phase: from, Active: true, Outcome: outcome}
	}

	e.recordTransition(from, next)
	if next == store.PhaseIdle {
		e.sessions.Delete(key)
		return Result{Phase: store.PhaseIdle, Active: false, Outcome: outcome}
	}

	t.session.Phase = next
	t.session.UpdatedAt = t.ev.At
	e.sessions.Save(t.session)
	return Result{Phase: next, Active: true, Outcome: outcome}
}

func (e *Engine) onStart(ctx context.Context, t *turn, from store.Phase) Result {
	if t.session == nil {
		t.session = store.NewSession(t.ev.Key, t.ev.At)
	} else {
		t.session.Reset(t.ev.At)
	}
	e.recordTransition(from, store.PhaseAwaitingQuery)

	info := e.dataset.Info()
	e.send(ctx, t.ev.Key.ChatID, e.builder.Welcome(t.ev.UserName, info))
	e.sessions.Save(t.session)

	e.logger.Info(logModule, "Conversation started", map[string]interface{}{
		"key":  t.ev.Key.String(),
		"user": t.ev.UserName,
		"from": from.String(),
		"rows": info.Rows,
	})
	t.emit(events.TypeConversationStarted, map[string]interface{}{
		"restart": from != store.PhaseIdle,
	})
	return Result{Phase: store.PhaseAwaitingQuery, Active: true, Outcome: OutcomeWelcome}
}

func (e *Engine) onCancel(ctx context.Context, t *turn, from store.Phase) Result {
	e.sessions.Delete(t.ev.Key)
	if from != store.PhaseIdle {
		e.recordTransition(from, store.PhaseIdle)
	}
	e.send(ctx, t.ev.Key.ChatID, e.builder.DialogCancelled())

	e.logger.Info(logModule, "Conversation cancelled", map[string]interface{}{
		"key":  t.ev.Key.String(),
		"from": from.String(),
	})
	if from != store.PhaseIdle {
		t.emit(events.TypeConversationCancelled, map[string]interface{}{"from": from.String()})
	}
	return Result{Phase: store.PhaseIdle, Active: false, Outcome: OutcomeCancelled}
}

func (e *Engine) onQuery(ctx context.Context, t *turn) (store.Phase, Outcome) {
	chatID := t.ev.Key.ChatID
	query := strings.TrimSpace(t.ev.Text)
	normalized := search.NormalizeQuery(query)
	if normalized == "" {
		e.send(ctx, chatID, e.builder.Reprompt())
		return store.PhaseAwaitingQuery, OutcomeReprompt
	}

	s := t.session
	s.ClearSearch()
	s.LastQuery = query
	ts := t.ev.At
	s.QueryTimestamp = &ts

	e.logger.Info(logModule, "Query received", map[string]interface{}{
		"key":   t.ev.Key.String(),
		"user":  t.ev.UserName,
		"query": query,
	})

	ref := e.send(ctx, chatID, e.builder.Searching(query))

	candidates, err := e.matcher.Search(ctx, normalized, e.dataset.CurrentSnapshot())
	if err != nil {
		e.logger.Error(logModule, "Search failed", map[string]interface{}{
			"key":   t.ev.Key.String(),
			"error": err.Error(),
		})
		candidates = nil
	}
	search.SortByScore(candidates)
	metrics.ObserveCandidates(len(candidates))

	t.emit(events.TypeQuerySubmitted, map[string]interface{}{
		"query":      query,
		"candidates": len(candidates),
	})

	if len(candidates) == 0 {
		s.LastMessageRef = ""
		e.deliver(ctx, chatID, ref, e.builder.NoResults())
		return store.PhaseAwaitingQuery, OutcomeNoResults
	}

	s.Candidates = candidates
	s.LastMessageRef = e.deliver(ctx, chatID, ref, e.builder.Results(query, candidates))
	return store.PhaseShowingResults, OutcomeResults
}

func (e *Engine) onExamples(ctx context.Context, t *turn) (store.Phase, Outcome) {
	e.send(ctx, t.ev.Key.ChatID, e.builder.Examples())
	return t.session.Phase, OutcomeAuxiliary
}

func (e *Engine) onStats(ctx context.Context, t *turn) (store.Phase, Outcome) {
	e.send(ctx, t.ev.Key.ChatID, e.builder.Stats(e.dataset.Info()))
	return t.session.Phase, OutcomeAuxiliary
}

// onSelect resolves a selector click against the current candidate list. A
// click from a superseded list never picks an arbitrary candidate.
func (e *Engine) onSelect(ctx context.Context, t *turn) (store.Phase, Outcome) {
	s := t.session
	c, ok := s.FindCandidate(t.id)
	if !ok {
		e.logger.Info(logModule, "Stale selection ignored", map[string]interface{}{
			"key":          t.ev.Key.String(),
			"candidate_id": t.id,
			"phase":        s.Phase.String(),
		})
		e.send(ctx, t.ev.Key.ChatID, e.builder.StaleSelection())
		return s.Phase, OutcomeStaleSelection
	}

	s.Selected = &c
	s.LastMessageRef = e.deliver(ctx, t.ev.Key.ChatID, t.clickedRef(), e.builder.Selected(c))

	t.emit(events.TypeCandidateSelected, map[string]interface{}{
		"candidate_id": c.ID,
		"title":        c.Title,
		"match_score":  c.Score,
	})
	// Stays in ShowingResults until consultation is implemented.
	return store.PhaseShowingResults, OutcomeSelected
}

func (e *Engine) onNewSearch(ctx context.Context, t *turn) (store.Phase, Outcome) {
	ref := t.clickedRef()
	t.session.ClearSearch()
	t.session.LastMessageRef = ""
	e.deliver(ctx, t.ev.Key.ChatID, ref, e.builder.NewSearch())
	return store.PhaseAwaitingQuery, OutcomeNewSearch
}

func (e *Engine) onCancelSearch(ctx context.Context, t *turn) (store.Phase, Outcome) {
	e.deliver(ctx, t.ev.Key.ChatID, t.clickedRef(), e.builder.SearchCancelled())
	t.emit(events.TypeConversationCancelled, map[string]interface{}{"from": t.session.Phase.String()})
	return store.PhaseIdle, OutcomeCancelled
}

// Session returns a copy of the stored session.
func (e *Engine) Session(key store.Key) (store.Session, bool) {
	s, ok := e.sessions.Get(key)
	if !ok {
		return store.Session{}, false
	}
	return s.Clone(), true
}

// send delivers a new message and returns its ref, or "" when it failed.
func (e *Engine) send(ctx context.Context, chatID int64, p presentation.Payload) string {
	ref, err := e.messenger.Send(ctx, chatID, p)
	if err != nil {
		e.logger.Error(logModule, "Failed to send message", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return ""
	}
	return ref
}

// deliver edits the message behind ref in place and falls back to a new
// message when there is no ref or the edit fails.
func (e *Engine) deliver(ctx context.Context, chatID int64, ref string, p presentation.Payload) string {
	if ref != "" {
		err := e.messenger.Edit(ctx, chatID, ref, p)
		if err == nil {
			return ref
		}
		metrics.IncDeliveryFallback()
		e.logger.Warn(logModule, "Failed to edit message, sending a new one", map[string]interface{}{
			"chat_id": chatID,
			"ref":     ref,
			"error":   err.Error(),
		})
	}
	return e.send(ctx, chatID, p)
}

func (e *Engine) recordTransition(from, to store.Phase) {
	metrics.IncTransition(from.String(), to.String())
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn(logModule, "Failed to publish event", map[string]interface{}{
			"type":  ev.EventType(),
			"error": err.Error(),
		})
	}
}

// clickedRef is the message a button belonged to, falling back to the last
// results message of the session.
func (t *turn) clickedRef() string {
	if t.ev.MessageRef != "" {
		return t.ev.MessageRef
	}
	return t.session.LastMessageRef
}

func (t *turn) emit(eventType string, data map[string]interface{}) {
	data["chat_id"] = t.ev.Key.ChatID
	data["user_id"] = t.ev.Key.UserID
	t.events = append(t.events, events.New(eventType, data, t.ev.At))
}
