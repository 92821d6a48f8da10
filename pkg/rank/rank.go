// Package rank combines matcher scores into a single relevance value and
// orders results deterministically.
package rank

import (
	"slices"

	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/match"
)

// Scores holds the matcher outcomes for one item. A matcher that did not
// match, or did not run, leaves its Has flag unset.
type Scores struct {
	Name    match.NameScore
	HasName bool
	Type    match.TypeScore
	HasType bool
}

// Matched reports whether any matcher matched.
func (s Scores) Matched() bool {
	return s.HasName || s.HasType
}

// Entry is a scored item.
type Entry struct {
	Item   *catalog.Item
	Score  float64
	Scores Scores
}

// Ranker turns matcher scores into ranked entries.
type Ranker struct {
	weights Weights
}

// NewRanker returns a ranker using w, which must validate.
func NewRanker(w Weights) (*Ranker, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{weights: w}, nil
}

// Default returns a ranker with DefaultWeights.
func Default() *Ranker {
	return &Ranker{weights: DefaultWeights()}
}

// Weights returns the ranker's weights.
func (r *Ranker) Weights() Weights {
	return r.weights
}

// Rank returns the relevance of item. Name and type contributions add up
// when both matched.
func (r *Ranker) Rank(item *catalog.Item, s Scores) float64 {
	w := r.weights
	var score float64

	if s.HasName {
		score += r.tierWeight(s.Name.Tier) + clamp(s.Name.Bonus)*w.Bonus
	}
	if s.HasType {
		base := w.TypePartial
		if s.Type.Full {
			base = w.TypeFull
		}
		score += base + clamp(s.Type.Bonus)*w.Bonus
	}
	if item.Deprecated {
		score -= w.DeprecatedPenalty
	}
	return score
}

// Entry scores item and wraps it as an Entry.
func (r *Ranker) Entry(item *catalog.Item, s Scores) Entry {
	return Entry{Item: item, Score: r.Rank(item, s), Scores: s}
}

func (r *Ranker) tierWeight(t match.Tier) float64 {
	switch t {
	case match.TierExact:
		return r.weights.Exact
	case match.TierPathSuffix:
		return r.weights.PathSuffix
	case match.TierPrefix:
		return r.weights.Prefix
	case match.TierSubsequence:
		return r.weights.Subsequence
	case match.TierDescription:
		return r.weights.Description
	default:
		return 0
	}
}

func clamp(b float64) float64 {
	switch {
	case b < 0:
		return 0
	case b > 1:
		return 1
	default:
		return b
	}
}

// Compare orders entries by descending score, then by match.Less.
func Compare(a, b Entry) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	case match.Less(a.Item, b.Item):
		return -1
	case match.Less(b.Item, a.Item):
		return 1
	default:
		return 0
	}
}

// Sort orders entries in place.
func Sort(entries []Entry) {
	slices.SortFunc(entries, Compare)
}

// Top sorts entries and truncates them to at most limit. A limit of zero or
// less keeps everything.
func Top(entries []Entry, limit int) []Entry {
	Sort(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
