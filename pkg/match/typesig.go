package match

import (
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/docsearch/pkg/catalog"
)

// ErrEmptyTypeQuery is returned when a type query names neither inputs nor
// an output.
var ErrEmptyTypeQuery = errors.New("type query has no types")

// arrows separate inputs from the output in a type query.
var arrows = []string{"->", "=>"}

// TypeQuery is a parsed type-shaped query: ordered inputs and an optional
// output.
type TypeQuery struct {
	Raw    string
	Inputs []catalog.TypeRef
	Output *catalog.TypeRef
	// Arrow is set when the query separated inputs from an output.
	Arrow bool
}

// TypeScore is the outcome of a successful signature match.
type TypeScore struct {
	// Full is set when the query's inputs cover every declared input.
	Full     bool
	Matched  int
	Declared int
	Bonus    float64
}

// IsTypeShaped reports whether text reads as a type expression rather than a
// name: it contains an arrow, generic brackets or a comma separated list.
func IsTypeShaped(text string) bool {
	for _, a := range arrows {
		if strings.Contains(text, a) {
			return true
		}
	}
	return strings.ContainsAny(text, "<>,")
}

// ParseTypeQuery parses "A, B -> C", "(A, B) -> C", "-> C" or "A, B".
func ParseTypeQuery(text string) (TypeQuery, error) {
	q := TypeQuery{Raw: strings.TrimSpace(text)}

	left, right := q.Raw, ""
	for _, a := range arrows {
		if i := strings.Index(q.Raw, a); i >= 0 {
			left, right = q.Raw[:i], q.Raw[i+len(a):]
			q.Arrow = true
			break
		}
	}

	left = stripParens(strings.TrimSpace(left))
	inputs, err := catalog.ParseTypeList(left)
	if err != nil {
		return TypeQuery{}, fmt.Errorf("parse inputs: %w", err)
	}
	q.Inputs = inputs

	if right = strings.TrimSpace(right); right != "" {
		out, err := catalog.ParseTypeRef(right)
		if err != nil {
			return TypeQuery{}, fmt.Errorf("parse output: %w", err)
		}
		q.Output = &out
	}

	if len(q.Inputs) == 0 && q.Output == nil {
		return TypeQuery{}, ErrEmptyTypeQuery
	}
	return q, nil
}

// stripParens removes one pair of parentheses enclosing the whole string.
func stripParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

// ScoreType matches q against the signature of item. Items that are not
// function-like, or carry no signature, never match. Query inputs must match
// item inputs in order, possibly skipping some; the output, when given, must
// match the item's output.
func ScoreType(q TypeQuery, item *catalog.Item) (TypeScore, bool) {
	if !item.Kind.IsFunctionLike() || item.Signature == nil {
		return TypeScore{}, false
	}
	sig := item.Signature
	if len(q.Inputs) > len(sig.Inputs) {
		return TypeScore{}, false
	}

	j := 0
	for _, want := range q.Inputs {
		for j < len(sig.Inputs) && !TypeMatches(want, sig.Inputs[j]) {
			j++
		}
		if j == len(sig.Inputs) {
			return TypeScore{}, false
		}
		j++
	}

	outputMatched := false
	if q.Output != nil {
		if !outputMatches(*q.Output, sig.Output) {
			return TypeScore{}, false
		}
		outputMatched = true
	}

	s := TypeScore{
		Full:     len(q.Inputs) == len(sig.Inputs),
		Matched:  len(q.Inputs),
		Declared: len(sig.Inputs),
	}
	coverage := 1.0
	if s.Declared > 0 {
		coverage = float64(s.Matched) / float64(s.Declared)
	}
	s.Bonus = 0.8 * coverage
	if outputMatched {
		s.Bonus += 0.2
	}
	return s, true
}

// TypeMatches compares a query type against an item type structurally. The
// base names must agree by key; query arguments are compared positionally and
// any argument the query omits, or spells "_", matches anything. An item type
// recorded without arguments accepts any query arguments.
func TypeMatches(query, item catalog.TypeRef) bool {
	if query.IsWildcard() {
		return true
	}
	if query.Key() != item.Key() {
		return false
	}
	if len(item.Args) == 0 {
		return true
	}
	if len(query.Args) > len(item.Args) {
		return false
	}
	for i, qa := range query.Args {
		if !TypeMatches(qa, item.Args[i]) {
			return false
		}
	}
	return true
}

// outputMatches treats a missing item output as the unit type.
func outputMatches(query catalog.TypeRef, out *catalog.TypeRef) bool {
	if out == nil {
		return query.IsWildcard() || (query.Key() == "()" && len(query.Args) == 0)
	}
	return TypeMatches(query, *out)
}
