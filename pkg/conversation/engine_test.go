package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/internal/repository/memory"
	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/events"
	"smart-support-bot/pkg/presentation"
	"smart-support-bot/pkg/search"
	"smart-support-bot/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	ChatID  int64
	Ref     string
	Edit    bool
	Payload presentation.Payload
}

type fakeMessenger struct {
	mu       sync.Mutex
	seq      int
	log      []sent
	failEdit bool
	failSend bool
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, p presentation.Payload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return "", errors.New("chat unavailable")
	}
	m.seq++
	ref := fmt.Sprintf("msg-%d", m.seq)
	m.log = append(m.log, sent{ChatID: chatID, Ref: ref, Payload: p})
	return ref, nil
}

func (m *fakeMessenger) Edit(_ context.Context, chatID int64, ref string, p presentation.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEdit {
		return errors.New("message to edit not found")
	}
	m.log = append(m.log, sent{ChatID: chatID, Ref: ref, Edit: true, Payload: p})
	return nil
}

func (m *fakeMessenger) last() sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log[len(m.log)-1]
}

func (m *fakeMessenger) all() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sent, len(m.log))
	copy(out, m.log)
	return out
}

type fakeDataset struct {
	info dataset.Info
}

func (d fakeDataset) Info() dataset.Info { return d.info }
func (d fakeDataset) CurrentSnapshot() *dataset.Snapshot { return nil }

type matcherFunc func(ctx context.Context, q string, snap *dataset.Snapshot) ([]store.Candidate, error)

func (f matcherFunc) Search(ctx context.Context, q string, snap *dataset.Snapshot) ([]store.Candidate, error) {
	return f(ctx, q, snap)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.EventType()
	}
	return out
}

type fixture struct {
	engine    *Engine
	sessions  *memory.SessionRepository
	messenger *fakeMessenger
	publisher *recordingPublisher
}

func newFixture(t *testing.T, matcher search.Matcher) *fixture {
	t.Helper()
	if matcher == nil {
		matcher = search.NewStubMatcher()
	}
	f := &fixture{
		sessions:  memory.NewSessionRepository(0),
		messenger: &fakeMessenger{},
		publisher: &recordingPublisher{},
	}
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f.engine = NewEngine(
		f.sessions,
		matcher,
		fakeDataset{info: dataset.Info{Status: dataset.StatusLoaded, Rows: 10}},
		presentation.NewBuilder("Smart Support Bot"),
		f.messenger,
		logger.NewNopLogger(),
		WithClock(func() time.Time { return now }),
		WithPublisher(f.publisher),
	)
	return f
}

var testKey = store.Key{ChatID: 100, UserID: 7}

func startEvent() Event { return Event{Key: testKey, Kind: KindCommand, Command: "start", UserName: "Анна"} }
func cancelEvent() Event { return Event{Key: testKey, Kind: KindCommand, Command: "/cancel"} }
func textEvent(s string) Event { return Event{Key: testKey, Kind: KindText, Text: s} }
func clickEvent(data, ref string) Event {
	return Event{Key: testKey, Kind: KindCallback, CallbackData: data, MessageRef: ref}
}

func TestEngine_QueryShowsResults(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	res := f.engine.Handle(ctx, textEvent("Хочу открыть кафе"))

	assert.Equal(t, Result{Phase: store.PhaseShowingResults, Active: true, Outcome: OutcomeResults}, res)

	s, ok := f.engine.Session(testKey)
	require.True(t, ok)
	assert.Equal(t, store.PhaseShowingResults, s.Phase)
	assert.Equal(t, "Хочу открыть кафе", s.LastQuery)
	require.NotNil(t, s.QueryTimestamp)
	assert.Len(t, s.Candidates, 3)

	// welcome, searching, then the searching message edited into results
	msgs := f.messenger.all()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[1].Payload.Text, "Ищу подходящие меры")
	assert.True(t, msgs[2].Edit)
	assert.Equal(t, msgs[1].Ref, msgs[2].Ref)
	assert.Contains(t, msgs[2].Payload.Text, "Нашёл 3")
	assert.Equal(t, msgs[1].Ref, s.LastMessageRef)

	assert.Equal(t, []string{events.TypeConversationStarted, events.TypeQuerySubmitted}, f.publisher.types())
}

func TestEngine_BlankQueryReprompts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	res := f.engine.Handle(ctx, textEvent(" \t\n "))

	assert.Equal(t, store.PhaseAwaitingQuery, res.Phase)
	assert.Equal(t, OutcomeReprompt, res.Outcome)

	s, _ := f.engine.Session(testKey)
	assert.Empty(t, s.Candidates)
	assert.Empty(t, s.LastQuery)
	assert.Contains(t, f.messenger.last().Payload.Text, "Пожалуйста, опишите ваш запрос")
}

func TestEngine_CancelRemovesSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	f.engine.Handle(ctx, textEvent("кафе"))
	res := f.engine.Handle(ctx, cancelEvent())

	assert.Equal(t, Result{Phase: store.PhaseIdle, Active: false, Outcome: OutcomeCancelled}, res)
	_, ok := f.engine.Session(testKey)
	assert.False(t, ok)
	assert.Contains(t, f.messenger.last().Payload.Text, "Диалог прерван")

	// the next event starts a fresh session instead of continuing the old one
	res = f.engine.Handle(ctx, clickEvent(presentation.SelectCallback(1), ""))
	assert.Equal(t, store.PhaseAwaitingQuery, res.Phase)
	assert.Equal(t, OutcomeStaleSelection, res.Outcome)

	s, ok := f.engine.Session(testKey)
	require.True(t, ok)
	assert.Empty(t, s.Candidates)
	assert.Nil(t, s.Selected)
}

func TestEngine_CancelWithoutSession(t *testing.T) {
	f := newFixture(t, nil)
	res := f.engine.Handle(context.Background(), cancelEvent())

	assert.Equal(t, store.PhaseIdle, res.Phase)
	assert.False(t, res.Active)
	assert.Empty(t, f.publisher.types())
}

func TestEngine_StartIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	first := f.messenger.last().Payload

	f.engine.Handle(ctx, textEvent("гранты"))
	res := f.engine.Handle(ctx, startEvent())
	second := f.messenger.last().Payload

	assert.Equal(t, store.PhaseAwaitingQuery, res.Phase)
	assert.Equal(t, OutcomeWelcome, res.Outcome)
	assert.Equal(t, first, second)

	s, _ := f.engine.Session(testKey)
	assert.Empty(t, s.Candidates)
	assert.Empty(t, s.LastQuery)
	assert.Empty(t, s.LastMessageRef)
}

func TestEngine_SelectionRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	f.engine.Handle(ctx, textEvent("кафе"))

	rendered := f.messenger.last()
	before, _ := f.engine.Session(testKey)

	for i, row := range rendered.Payload.Keyboard[:len(before.Candidates)] {
		action, id := ParseCallback(row[0].Data)
		require.Equal(t, ActionSelect, action)

		res := f.engine.Handle(ctx, clickEvent(row[0].Data, rendered.Ref))
		assert.Equal(t, store.PhaseShowingResults, res.Phase)
		assert.Equal(t, OutcomeSelected, res.Outcome)

		s, _ := f.engine.Session(testKey)
		require.NotNil(t, s.Selected)
		assert.Equal(t, before.Candidates[i], *s.Selected)
		assert.Equal(t, id, s.Selected.ID)
	}

	last := f.messenger.last()
	assert.True(t, last.Edit)
	assert.Equal(t, rendered.Ref, last.Ref)
	assert.Contains(t, last.Payload.Text, "Вы выбрали")
}

func TestEngine_StaleSelection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	f.engine.Handle(ctx, textEvent("кафе"))
	f.engine.Handle(ctx, clickEvent(presentation.SelectCallback(2), ""))
	before, _ := f.engine.Session(testKey)

	res := f.engine.Handle(ctx, clickEvent(presentation.SelectCallback(99), ""))

	assert.Equal(t, store.PhaseShowingResults, res.Phase)
	assert.Equal(t, OutcomeStaleSelection, res.Outcome)
	after, _ := f.engine.Session(testKey)
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.Selected, after.Selected)
	assert.Contains(t, f.messenger.last().Payload.Text, "больше недоступен")
}

func TestEngine_NewSearchClearsResults(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	f.engine.Handle(ctx, textEvent("кафе"))
	resultsRef := f.messenger.last().Ref

	res := f.engine.Handle(ctx, clickEvent(presentation.CallbackNewSearch, resultsRef))
	assert.Equal(t, Result{Phase: store.PhaseAwaitingQuery, Active: true, Outcome: OutcomeNewSearch}, res)

	s, _ := f.engine.Session(testKey)
	assert.Empty(t, s.Candidates)
	assert.Empty(t, s.LastQuery)
	assert.Nil(t, s.QueryTimestamp)

	last := f.messenger.last()
	assert.True(t, last.Edit)
	assert.Equal(t, resultsRef, last.Ref)

	// old selector buttons are now stale
	res = f.engine.Handle(ctx, clickEvent(presentation.SelectCallback(1), resultsRef))
	assert.Equal(t, store.PhaseAwaitingQuery, res.Phase)
	assert.Equal(t, OutcomeStaleSelection, res.Outcome)
}

func TestEngine_CancelSearchButton(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	f.engine.Handle(ctx, textEvent("кафе"))
	res := f.engine.Handle(ctx, clickEvent(presentation.CallbackCancelSearch, ""))

	assert.Equal(t, store.PhaseIdle, res.Phase)
	assert.False(t, res.Active)
	_, ok := f.engine.Session(testKey)
	assert.False(t, ok)
	assert.Contains(t, f.messenger.last().Payload.Text, "Поиск отменен")
	assert.Contains(t, f.publisher.types(), events.TypeConversationCancelled)
}

func TestEngine_EditFailureFallsBackToNewMessage(t *testing.T) {
	f := newFixture(t, nil)
	f.messenger.failEdit = true
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	res := f.engine.Handle(ctx, textEvent("кафе"))

	assert.Equal(t, store.PhaseShowingResults, res.Phase)
	msgs := f.messenger.all()
	require.Len(t, msgs, 3)
	assert.False(t, msgs[2].Edit)
	assert.Contains(t, msgs[2].Payload.Text, "Нашёл 3")

	s, _ := f.engine.Session(testKey)
	assert.Equal(t, msgs[2].Ref, s.LastMessageRef)
}

func TestEngine_SendFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.messenger.failSend = true
	ctx := context.Background()

	assert.NotPanics(t, func() {
		f.engine.Handle(ctx, startEvent())
		res := f.engine.Handle(ctx, textEvent("кафе"))
		assert.Equal(t, store.PhaseShowingResults, res.Phase)
	})
	s, _ := f.engine.Session(testKey)
	assert.Empty(t, s.LastMessageRef)
}

func TestEngine_EmptyResultsReturnToAwaitingQuery(t *testing.T) {
	tests := []struct {
		name    string
		matcher search.Matcher
	}{
		{"no candidates", matcherFunc(func(context.Context, string, *dataset.Snapshot) ([]store.Candidate, error) {
			return nil, nil
		})},
		{"matcher error", matcherFunc(func(context.Context, string, *dataset.Snapshot) ([]store.Candidate, error) {
			return nil, errors.New("index unavailable")
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.matcher)
			ctx := context.Background()

			f.engine.Handle(ctx, startEvent())
			res := f.engine.Handle(ctx, textEvent("кафе"))

			assert.Equal(t, store.PhaseAwaitingQuery, res.Phase)
			assert.Equal(t, OutcomeNoResults, res.Outcome)
			s, _ := f.engine.Session(testKey)
			assert.Empty(t, s.Candidates)
			assert.Contains(t, f.messenger.last().Payload.Text, "не найдено")
		})
	}
}

func TestEngine_UnsortedMatcherOutputIsSorted(t *testing.T) {
	f := newFixture(t, matcherFunc(func(context.Context, string, *dataset.Snapshot) ([]store.Candidate, error) {
		return []store.Candidate{{ID: 5, Score: 0.1}, {ID: 6, Score: 0.9}, {ID: 7, Score: 0.5}}, nil
	}))
	ctx := context.Background()

	f.engine.Handle(ctx, textEvent("кафе"))
	s, _ := f.engine.Session(testKey)
	require.Len(t, s.Candidates, 3)
	assert.Equal(t, []int{6, 7, 5}, []int{s.Candidates[0].ID, s.Candidates[1].ID, s.Candidates[2].ID})
}

func TestEngine_AuxiliaryButtonsKeepPhase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	res := f.engine.Handle(ctx, clickEvent(presentation.CallbackShowExamples, ""))
	assert.Equal(t, Result{Phase: store.PhaseAwaitingQuery, Active: true, Outcome: OutcomeAuxiliary}, res)
	assert.Contains(t, f.messenger.last().Payload.Text, "Примеры запросов")

	res = f.engine.Handle(ctx, clickEvent(presentation.CallbackShowStats, ""))
	assert.Equal(t, OutcomeAuxiliary, res.Outcome)
	assert.Contains(t, f.messenger.last().Payload.Text, "Всего записей: 10")
}

func TestEngine_UnsupportedEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.Handle(ctx, startEvent())
	f.engine.Handle(ctx, textEvent("кафе"))

	res := f.engine.Handle(ctx, textEvent("ещё один запрос"))
	assert.Equal(t, Result{Phase: store.PhaseShowingResults, Active: true, Outcome: OutcomeUnsupported}, res)

	res = f.engine.Handle(ctx, clickEvent("garbage", ""))
	assert.Equal(t, OutcomeUnsupported, res.Outcome)

	res = f.engine.Handle(ctx, Event{Key: testKey, Kind: KindCommand, Command: "help"})
	assert.Equal(t, OutcomeUnsupported, res.Outcome)

	s, _ := f.engine.Session(testKey)
	assert.Len(t, s.Candidates, 3)
}

func TestEngine_EmptyLocalDatasetStillSearches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measures.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,Название,Описание\n,,\n"), 0o600))

	ds := dataset.NewStore(logger.NewNopLogger())
	ds.Configure(dataset.LocalSource(path))
	_, err := ds.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, dataset.StatusLoaded, ds.Info().Status)
	require.Equal(t, 0, ds.Info().Rows)

	messenger := &fakeMessenger{}
	engine := NewEngine(memory.NewSessionRepository(0), search.NewStubMatcher(), ds,
		presentation.NewBuilder(""), messenger, logger.NewNopLogger())

	res := engine.Handle(context.Background(), textEvent("Хочу открыть кафе"))
	assert.Equal(t, store.PhaseShowingResults, res.Phase)

	s, _ := engine.Session(testKey)
	require.Len(t, s.Candidates, 3)
	for i := 1; i < len(s.Candidates); i++ {
		assert.GreaterOrEqual(t, s.Candidates[i-1].Score, s.Candidates[i].Score)
	}
}

// Every event either keeps the phase or moves along the transition table.
func TestEngine_PhasesStayInsideTransitionTable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	pool := []Event{
		startEvent(),
		cancelEvent(),
		textEvent("кафе"),
		textEvent("   "),
		clickEvent(presentation.CallbackShowExamples, ""),
		clickEvent(presentation.CallbackShowStats, ""),
		clickEvent(presentation.CallbackNewSearch, ""),
		clickEvent(presentation.CallbackCancelSearch, ""),
		clickEvent(presentation.SelectCallback(1), ""),
		clickEvent(presentation.SelectCallback(3), ""),
		clickEvent(presentation.SelectCallback(77), ""),
		clickEvent("select_result_-1", ""),
	}

	prev := store.PhaseIdle
	for i := 0; i < 2000; i++ {
		ev := pool[rng.Intn(len(pool))]
		res := f.engine.Handle(ctx, ev)

		if ev.Kind == KindCommand && ev.Command == "start" {
			assert.Equal(t, store.PhaseAwaitingQuery, res.Phase)
		}
		if prev == store.PhaseIdle && res.Phase != store.PhaseIdle {
			// implicit creation goes through AwaitingQuery first
			assert.Contains(t, []store.Phase{store.PhaseAwaitingQuery, store.PhaseShowingResults}, res.Phase)
		} else if res.Phase != prev {
			assert.True(t, store.CanTransition(prev, res.Phase), "%s -> %s on %+v", prev, res.Phase, ev)
		}
		assert.Equal(t, res.Phase != store.PhaseIdle, res.Active)
		assert.NotEqual(t, store.PhaseConsulting, res.Phase)
		assert.NotEqual(t, store.PhaseCollectingFeedback, res.Phase)
		prev = res.Phase
	}
}

func TestEngine_ConcurrentKeys(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const users = 20
	const rounds = 15

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		key := store.Key{ChatID: int64(1000 + u%4), UserID: int64(u)}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.Handle(ctx, Event{Key: key, Kind: KindCommand, Command: "start"})
			for r := 0; r < rounds; r++ {
				f.engine.Handle(ctx, Event{Key: key, Kind: KindText, Text: fmt.Sprintf("запрос %d", r)})
				f.engine.Handle(ctx, Event{Key: key, Kind: KindCallback, CallbackData: presentation.CallbackNewSearch})
			}
			f.engine.Handle(ctx, Event{Key: key, Kind: KindText, Text: "финал"})
		}()
	}
	wg.Wait()

	assert.Equal(t, users, f.sessions.Count())
	for u := 0; u < users; u++ {
		s, ok := f.engine.Session(store.Key{ChatID: int64(1000 + u%4), UserID: int64(u)})
		require.True(t, ok)
		assert.Equal(t, store.PhaseShowingResults, s.Phase)
		assert.Equal(t, "финал", s.LastQuery)
		assert.Len(t, s.Candidates, 3)
	}
}

// Concurrent events on one key never interleave: cancel and query racing on
// the same session always leave it in a state one of them could produce.
func TestEngine_SameKeySerialized(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.engine.Handle(ctx, textEvent("кафе"))
		}()
		go func() {
			defer wg.Done()
			f.engine.Handle(ctx, cancelEvent())
		}()
	}
	wg.Wait()

	if s, ok := f.engine.Session(testKey); ok {
		assert.Contains(t, []store.Phase{store.PhaseShowingResults, store.PhaseAwaitingQuery}, s.Phase)
		if s.Phase == store.PhaseShowingResults {
			assert.Len(t, s.Candidates, 3)
		}
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data   string
		action Action
		id     int
	}{
		{"show_examples", ActionShowExamples, 0},
		{"show_stats", ActionShowStats, 0},
		{"new_search", ActionNewSearch, 0},
		{"cancel_search", ActionCancelSearch, 0},
		{"select_result_0", ActionSelect, 0},
		{"select_result_12", ActionSelect, 12},
		{"select_result_", ActionUnknown, 0},
		{"select_result_-3", ActionUnknown, 0},
		{"select_result_1a", ActionUnknown, 0},
		{"select_result_99999999999999999999999", ActionUnknown, 0},
		{"", ActionUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			action, id := ParseCallback(tt.data)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestEngine_FirstEventCreatesSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, ok := f.engine.Session(testKey)
	require.False(t, ok)

	res := f.engine.Handle(ctx, textEvent("Хочу открыть кафе"))
	assert.Equal(t, Result{Phase: store.PhaseShowingResults, Active: true, Outcome: OutcomeResults}, res)

	s, ok := f.engine.Session(testKey)
	require.True(t, ok)
	assert.Equal(t, "Хочу открыть кафе", s.LastQuery)
	assert.Len(t, s.Candidates, 3)
}
