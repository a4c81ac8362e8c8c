package conversation

import (
	"strconv"
	"strings"
	"time"

	"smart-support-bot/pkg/presentation"
	"smart-support-bot/pkg/store"
)

type EventKind string

const (
	KindCommand  EventKind = "command"
	KindText     EventKind = "text"
	KindCallback EventKind = "callback"
)

const (
	CommandStart  = "start"
	CommandCancel = "cancel"
)

// Event is one inbound user interaction, already stripped of transport
// details.
type Event struct {
	Key          store.Key
	Kind         EventKind
	Command      string
	Text         string
	CallbackData string
	UserName     string
	// MessageRef is the message a button was attached to, when known.
	MessageRef string
	At         time.Time
}

// Action is what the engine makes of an event.
type Action uint8

const (
	ActionUnknown Action = iota
	ActionStart
	ActionCancel
	ActionQuery
	ActionShowExamples
	ActionShowStats
	ActionSelect
	ActionNewSearch
	ActionCancelSearch
)

var actionNames = map[Action]string{
	ActionUnknown:      "unknown",
	ActionStart:        "start",
	ActionCancel:       "cancel",
	ActionQuery:        "query",
	ActionShowExamples: "show_examples",
	ActionShowStats:    "show_stats",
	ActionSelect:       "select",
	ActionNewSearch:    "new_search",
	ActionCancelSearch: "cancel_search",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseCallback decodes button callback data. The id is only meaningful for
// ActionSelect.
func ParseCallback(data string) (Action, int) {
	switch data {
	case presentation.CallbackShowExamples:
		return ActionShowExamples, 0
	case presentation.CallbackShowStats:
		return ActionShowStats, 0
	case presentation.CallbackNewSearch:
		return ActionNewSearch, 0
	case presentation.CallbackCancelSearch:
		return ActionCancelSearch, 0
	}

	raw, ok := strings.CutPrefix(data, presentation.CallbackSelectPrefix)
	if !ok || raw == "" {
		return ActionUnknown, 0
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return ActionUnknown, 0
		}
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return ActionUnknown, 0
	}
	return ActionSelect, id
}

func (e Event) action() (Action, int) {
	switch e.Kind {
	case KindCommand:
		switch strings.ToLower(strings.TrimPrefix(e.Command, "/")) {
		case CommandStart:
			return ActionStart, 0
		case CommandCancel:
			return ActionCancel, 0
		}
	case KindText:
		return ActionQuery, 0
	case KindCallback:
		return ParseCallback(e.CallbackData)
	}
	return ActionUnknown, 0
}

// Outcome tells the caller what the engine rendered.
type Outcome string

const (
	OutcomeWelcome        Outcome = "welcome"
	OutcomeResults        Outcome = "results"
	OutcomeNoResults      Outcome = "no_results"
	OutcomeReprompt       Outcome = "reprompt"
	OutcomeAuxiliary      Outcome = "auxiliary"
	OutcomeSelected       Outcome = "selected"
	OutcomeStaleSelection Outcome = "stale_selection"
	OutcomeNewSearch      Outcome = "new_search"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeUnsupported    Outcome = "unsupported"
)

// Result is the state of the session after one event.
type Result struct {
	Phase   store.Phase `json:"phase"`
	Active  bool        `json:"active"`
	Outcome Outcome     `json:"outcome"`
}
