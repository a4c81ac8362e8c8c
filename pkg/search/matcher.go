package search

import (
	"context"
	"sort"

	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/store"
)

// Matcher finds dataset items for a free-text query. Implementations must
// return candidates ordered by score, highest first, and must not reject an
// empty query.
type Matcher interface {
	Search(ctx context.Context, query string, snap *dataset.Snapshot) ([]store.Candidate, error)
}

// StubMatcher answers every query with the same three candidates. It does
// not look at the query or the snapshot.
type StubMatcher struct{}

func NewStubMatcher() *StubMatcher {
	return &StubMatcher{}
}

var stubCandidates = []store.Candidate{
	{ID: 1, Title: "Грант для начинающих предпринимателей", Score: 0.95},
	{ID: 2, Title: "Субсидия на открытие бизнеса", Score: 0.87},
	{ID: 3, Title: "Льготный кредит для малого бизнеса", Score: 0.78},
}

func (m *StubMatcher) Search(ctx context.Context, _ string, _ *dataset.Snapshot) ([]store.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]store.Candidate, len(stubCandidates))
	copy(out, stubCandidates)
	SortByScore(out)
	return out, nil
}

// SortByScore orders candidates by score, highest first. Equal scores keep
// their relative order.
func SortByScore(cs []store.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Score > cs[j].Score
	})
}

// ClampScore bounds a score to [0, 1].
func ClampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
