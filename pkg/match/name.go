package match

import (
	"strings"
	"unicode/utf8"

	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/tokenize"
)

// Tier is a name-matching priority level. Higher tiers rank first.
type Tier uint8

const (
	TierNone Tier = iota
	TierDescription
	TierSubsequence
	TierPrefix
	TierPathSuffix
	TierExact
)

var tierNames = [...]string{"none", "description", "subsequence", "prefix", "path_suffix", "exact"}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// NameScore is the outcome of a successful name match. Bonus lies in [0, 1]
// and only orders items within the same tier.
type NameScore struct {
	Tier  Tier
	Bonus float64
}

// NameQuery is a normalized name-shaped query. Build it once per query with
// NewNameQuery and score it against every item.
type NameQuery struct {
	Raw      string
	Tokens   []string
	Segments []string

	folded  string
	compact []rune
	pathed  bool
}

// NewNameQuery normalizes text for name matching.
func NewNameQuery(text string) NameQuery {
	text = strings.TrimSpace(text)
	q := NameQuery{
		Raw:    text,
		Tokens: tokenize.Normalize(text),
		folded: tokenize.Fold(text),
		pathed: tokenize.HasPathDelimiter(text),
	}
	q.compact = []rune(tokenize.Compact(q.Tokens))
	if q.pathed {
		for _, seg := range tokenize.Segments(text) {
			q.Segments = append(q.Segments, tokenize.Fold(seg))
		}
	}
	return q
}

// Empty reports whether the query has nothing to match on.
func (q NameQuery) Empty() bool {
	return len(q.Tokens) == 0
}

// Narrows reports whether every item matching q is guaranteed to also match
// prev, so a search for q may start from prev's matches. It holds when q's
// tokens extend prev's: every token before prev's last is equal, and prev's
// last token prefixes q's token at the same position. Path-qualified queries
// never narrow.
func (q NameQuery) Narrows(prev NameQuery) bool {
	if q.pathed || prev.pathed || prev.Empty() || len(prev.Tokens) > len(q.Tokens) {
		return false
	}
	last := len(prev.Tokens) - 1
	for i := 0; i < last; i++ {
		if prev.Tokens[i] != q.Tokens[i] {
			return false
		}
	}
	return strings.HasPrefix(q.Tokens[last], prev.Tokens[last])
}

// Score matches q against item and returns the highest tier reached. The
// boolean is false when no tier matches.
func Score(q NameQuery, item *catalog.Item) (NameScore, bool) {
	if q.Empty() {
		return NameScore{}, false
	}

	if q.folded == item.FoldedName() || tokenize.Equal(q.Tokens, item.NameTokens()) {
		bonus := 0.5
		if q.Raw == item.Name {
			bonus = 1
		}
		return NameScore{Tier: TierExact, Bonus: bonus}, true
	}

	if q.pathed && len(q.Segments) > 1 {
		if s, ok := scorePathSuffix(q.Segments, item.FoldedSegments()); ok {
			return s, true
		}
	}

	if s, ok := scorePrefix(q.Tokens, item); ok {
		return s, true
	}

	if s, ok := scoreSubsequence(q.compact, item); ok {
		return s, true
	}

	if s, ok := scoreDescription(q.Tokens, item.DescriptionTokens()); ok {
		return s, true
	}

	return NameScore{}, false
}

func scorePathSuffix(query, segments []string) (NameScore, bool) {
	if len(query) > len(segments) {
		return NameScore{}, false
	}
	offset := len(segments) - len(query)
	for i, seg := range query {
		if segments[offset+i] != seg {
			return NameScore{}, false
		}
	}
	return NameScore{Tier: TierPathSuffix, Bonus: float64(len(query)) / float64(len(segments))}, true
}

// scorePrefix requires every query token to prefix an item token, in order.
// Earliest placement is used, which finds a match whenever one exists.
func scorePrefix(query []string, item *catalog.Item) (NameScore, bool) {
	tokens := item.Tokens()
	nameStart := len(tokens) - len(item.NameTokens())

	first, prev := -1, -1
	contiguous := true
	nameChars := 0
	for _, qt := range query {
		j := prev + 1
		for ; j < len(tokens); j++ {
			if strings.HasPrefix(tokens[j], qt) {
				break
			}
		}
		if j >= len(tokens) {
			return NameScore{}, false
		}
		if first < 0 {
			first = j
		} else if j != prev+1 {
			contiguous = false
		}
		if j >= nameStart {
			nameChars += utf8.RuneCountInString(qt)
		}
		prev = j
	}

	var bonus float64
	if total := runeCount(item.NameTokens()); total > 0 {
		bonus += 0.5 * float64(nameChars) / float64(total)
	}
	if first == nameStart {
		bonus += 0.3
	}
	if contiguous {
		bonus += 0.2
	}
	return NameScore{Tier: TierPrefix, Bonus: bonus}, true
}

// scoreSubsequence matches the query characters in order against the item's
// compact token text, then tightens the window from its end.
func scoreSubsequence(query []rune, item *catalog.Item) (NameScore, bool) {
	if len(query) == 0 {
		return NameScore{}, false
	}
	text := item.Compact()

	qi, end := 0, -1
	for i, r := range text {
		if r == query[qi] {
			qi++
			if qi == len(query) {
				end = i
				break
			}
		}
	}
	if end < 0 {
		return NameScore{}, false
	}

	start := end
	qi = len(query) - 1
	for pos := end + utf8.RuneLen(query[qi]); pos > 0 && qi >= 0; {
		r, size := utf8.DecodeLastRuneInString(text[:pos])
		pos -= size
		if r == query[qi] {
			qi--
			start = pos
		}
	}

	span := utf8.RuneCountInString(text[start:end]) + 1
	bonus := 0.7 * float64(len(query)) / float64(span)

	nameStart := len(text) - byteCount(item.NameTokens())
	if start >= nameStart {
		bonus += 0.3
	}
	return NameScore{Tier: TierSubsequence, Bonus: bonus}, true
}

// scoreDescription matches when each query token prefixes some description
// token, in any order.
func scoreDescription(query, desc []string) (NameScore, bool) {
	if len(desc) == 0 {
		return NameScore{}, false
	}
	for _, qt := range query {
		found := false
		for _, dt := range desc {
			if strings.HasPrefix(dt, qt) {
				found = true
				break
			}
		}
		if !found {
			return NameScore{}, false
		}
	}
	bonus := float64(len(query)) / float64(len(desc))
	if bonus > 1 {
		bonus = 1
	}
	return NameScore{Tier: TierDescription, Bonus: bonus}, true
}

// Less is the deterministic tie-break between equally scored items: shorter
// path, then namespace insertion order, then name, then catalog order.
func Less(a, b *catalog.Item) bool {
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	if a.NamespaceOrder() != b.NamespaceOrder() {
		return a.NamespaceOrder() < b.NamespaceOrder()
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

func runeCount(tokens []string) int {
	n := 0
	for _, t := range tokens {
		n += utf8.RuneCountInString(t)
	}
	return n
}

func byteCount(tokens []string) int {
	n := 0
	for _, t := range tokens {
		n += len(t)
	}
	return n
}
