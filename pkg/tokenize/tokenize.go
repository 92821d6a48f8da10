// Package tokenize turns item names, paths and raw query text into comparable
// token sequences.
//
// Tokens are produced by splitting on lower-to-upper case transitions,
// non-alphanumeric separators and path delimiters, then case folding each
// piece. The same function is used when the catalog is built and when a
// live query is normalized, so both sides always agree.
//
//	tokenize.Normalize("Widget::renderHTML") // [widget render html]
//	tokenize.Normalize("widget_render")      // [widget render]
//	tokenize.Segments("alpha::Widget.render") // [alpha Widget render]
package tokenize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize splits text into lower-cased tokens. Empty tokens are dropped.
// The result is nil when text has no letters or digits.
func Normalize(text string) []string {
	if text == "" {
		return nil
	}
	text = norm.NFKC.String(text)

	var tokens []string
	start := -1
	var prev rune

	flush := func(end int) {
		if start >= 0 && end > start {
			tokens = append(tokens, Fold(text[start:end]))
		}
		start = -1
	}

	for i, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			prev = r
			continue
		}
		if start >= 0 && unicode.IsUpper(r) && unicode.IsLower(prev) {
			flush(i)
		}
		if start < 0 {
			start = i
		}
		prev = r
	}
	flush(len(text))

	return tokens
}

var folder = cases.Fold()

// Fold returns the Unicode case-folded form of s.
func Fold(s string) string {
	return folder.String(s)
}

// Segments splits a path-like string on "::", "." and "/" and returns the
// trimmed, non-empty pieces. Case is preserved.
func Segments(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ':' || r == '.' || r == '/'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// HasPathDelimiter reports whether text contains a path delimiter.
func HasPathDelimiter(text string) bool {
	return strings.Contains(text, "::") || strings.ContainsAny(text, "./")
}

// Compact concatenates tokens without separators. It is the surface used for
// character subsequence matching.
func Compact(tokens []string) string {
	return strings.Join(tokens, "")
}

// Equal reports whether two token sequences are identical.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
