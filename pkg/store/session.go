package store

import (
	"fmt"
	"time"
)

// Key identifies one conversation: a user inside a chat.
type Key struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

// Candidate is one dataset-derived item offered to the user for a query
type Candidate struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"match_score"`
}

// Session represents the active dialogue state of one user in one chat.
// It lives in memory only and is owned by the conversation engine.
type Session struct {
	Key   Key   `json:"key"`
	Phase Phase `json:"phase"`

	// Metadata for the last submitted query
	LastQuery      string     `json:"last_query,omitempty"`
	QueryTimestamp *time.Time `json:"query_timestamp,omitempty"`

	// THE WAITING ROOM (Candidates found but not yet selected)
	Candidates []Candidate `json:"candidates"`

	// Handle of the last results message, used to edit it in place
	LastMessageRef string `json:"last_message_ref,omitempty"`

	// THE WORKBENCH (The candidate the user picked)
	Selected *Candidate `json:"selected,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session in the initial phase.
func NewSession(key Key, now time.Time) *Session {
	return &Session{
		Key:       key,
		Phase:     PhaseAwaitingQuery,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset puts the session back into the state of a freshly created one.
func (s *Session) Reset(now time.Time) {
	s.Phase = PhaseAwaitingQuery
	s.ClearSearch()
	s.LastMessageRef = ""
	s.UpdatedAt = now
}

// ClearSearch drops the query, its candidates and any selection.
func (s *Session) ClearSearch() {
	s.LastQuery = ""
	s.QueryTimestamp = nil
	s.Candidates = nil
	s.Selected = nil
}

// FindCandidate looks up a candidate of the current list by id.
func (s *Session) FindCandidate(id int) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// Clone returns a deep copy safe to hand out of the engine.
func (s *Session) Clone() Session {
	out := *s
	if s.Candidates != nil {
		out.Candidates = make([]Candidate, len(s.Candidates))
		copy(out.Candidates, s.Candidates)
	}
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	if s.QueryTimestamp != nil {
		ts := *s.QueryTimestamp
		out.QueryTimestamp = &ts
	}
	return out
}
