package store

// Phase is the current step of the conversation state machine.
type Phase uint8

const (
	// PhaseIdle stands for "no session": before start and after cancellation.
	PhaseIdle Phase = iota
	PhaseAwaitingQuery
	PhaseShowingResults
	// PhaseConsulting is declared but not reachable yet.
	PhaseConsulting
	PhaseCollectingFeedback
)

var phaseNames = map[Phase]string{
	PhaseIdle:               "IDLE",
	PhaseAwaitingQuery:      "AWAITING_QUERY",
	PhaseShowingResults:     "SHOWING_RESULTS",
	PhaseConsulting:         "CONSULTING",
	PhaseCollectingFeedback: "COLLECTING_FEEDBACK",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Phases lists every declared phase in order.
func Phases() []Phase {
	return []Phase{
		PhaseIdle,
		PhaseAwaitingQuery,
		PhaseShowingResults,
		PhaseConsulting,
		PhaseCollectingFeedback,
	}
}

// transitions is the closed set of allowed phase changes. Every phase may be
// restarted (-> AwaitingQuery) or cancelled (-> Idle).
var transitions = map[Phase][]Phase{
	PhaseIdle:               {PhaseAwaitingQuery},
	PhaseAwaitingQuery:      {PhaseAwaitingQuery, PhaseShowingResults, PhaseIdle},
	PhaseShowingResults:     {PhaseShowingResults, PhaseAwaitingQuery, PhaseIdle},
	PhaseConsulting:         {PhaseAwaitingQuery, PhaseIdle},
	PhaseCollectingFeedback: {PhaseAwaitingQuery, PhaseIdle},
}

// Transitions returns the phases reachable from p in one step.
func Transitions(from Phase) []Phase {
	out := make([]Phase, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
