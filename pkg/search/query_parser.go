package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/platinummonkey/docsearch/pkg/catalog"
)

// ParsedQuery is a raw query split into free text and filters.
type ParsedQuery struct {
	// Text is the query with filters removed and whitespace collapsed.
	Text string `json:"text"`

	// Kinds restricts results to items of these kinds.
	Kinds []catalog.Kind `json:"kinds,omitempty"`

	// NamespacePattern restricts results to matching namespaces ("*" wildcards).
	NamespacePattern string `json:"namespace,omitempty"`

	// Limit overrides the request limit when positive.
	Limit int `json:"limit,omitempty"`

	// Raw is the original query string.
	Raw string `json:"-"`
}

// QueryParser extracts key:value filters from query text. Unknown keys are
// left in the text, so path queries like "Widget::render" survive intact.
type QueryParser struct {
	filterPattern *regexp.Regexp
}

// NewQueryParser creates a new query parser
func NewQueryParser() *QueryParser {
	// key:value or key:"quoted value"; the key must start a word.
	filterPattern := regexp.MustCompile(`(^|\s)([\w-]+):("([^"]+)"|([^\s:]\S*))`)

	return &QueryParser{
		filterPattern: filterPattern,
	}
}

// Parse splits queryStr into text and filters. It fails with ErrInvalidQuery
// when a known filter has an unusable value.
func (p *QueryParser) Parse(queryStr string) (*ParsedQuery, error) {
	query := &ParsedQuery{Raw: queryStr}

	var parseErr error
	cleaned := p.filterPattern.ReplaceAllStringFunc(queryStr, func(m string) string {
		sub := p.filterPattern.FindStringSubmatch(m)
		lead, key := sub[1], sub[2]
		value := sub[4]
		if value == "" {
			value = sub[5]
		}

		known, err := p.parseFilter(query, key, value)
		if err != nil && parseErr == nil {
			parseErr = err
		}
		if !known {
			return m
		}
		return lead
	})
	if parseErr != nil {
		return nil, parseErr
	}

	query.Text = strings.Join(strings.Fields(cleaned), " ")
	return query, nil
}

// parseFilter applies one filter. It reports false for keys it does not know.
func (p *QueryParser) parseFilter(query *ParsedQuery, key, value string) (bool, error) {
	switch strings.ToLower(key) {
	case "kind", "type":
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			k, err := catalog.ParseKind(v)
			if err != nil {
				return true, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
			}
			query.Kinds = append(query.Kinds, k)
		}

	case "ns", "namespace", "crate":
		query.NamespacePattern = value

	case "limit":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return true, fmt.Errorf("%w: limit must be a positive integer, got %q", ErrInvalidQuery, value)
		}
		query.Limit = n

	default:
		return false, nil
	}

	return true, nil
}

// HasFilters returns true if the query has any filters
func (q *ParsedQuery) HasFilters() bool {
	return len(q.Kinds) > 0 || q.NamespacePattern != ""
}

// filterKey identifies the filter set, for cache keys and session reuse.
func (q *ParsedQuery) filterKey() string {
	kinds := make([]string, len(q.Kinds))
	for i, k := range q.Kinds {
		kinds[i] = k.String()
	}
	return strings.Join(kinds, ",") + "|" + strings.ToLower(q.NamespacePattern)
}

// accepts reports whether item passes the kind and namespace filters.
func (q *ParsedQuery) accepts(item *catalog.Item) bool {
	if len(q.Kinds) > 0 {
		ok := false
		for _, k := range q.Kinds {
			if item.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return matchesPattern(item.Namespace, q.NamespacePattern)
}

// String returns a human-readable representation of the query
func (q *ParsedQuery) String() string {
	parts := make([]string, 0)

	if q.Text != "" {
		parts = append(parts, fmt.Sprintf("text:%q", q.Text))
	}
	if len(q.Kinds) > 0 {
		parts = append(parts, fmt.Sprintf("kind:%v", q.Kinds))
	}
	if q.NamespacePattern != "" {
		parts = append(parts, fmt.Sprintf("ns:%s", q.NamespacePattern))
	}
	if q.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit:%d", q.Limit))
	}

	return strings.Join(parts, ", ")
}

// matchesPattern checks if a string matches a pattern (supports * wildcard)
func matchesPattern(s, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return strings.EqualFold(s, pattern)
	}

	s = strings.ToLower(s)
	parts := strings.Split(strings.ToLower(pattern), "*")

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}

// Examples:
//
//	"render"                    items named like render
//	"Widget::render"            path-qualified name
//	"rend kind:method"          methods only
//	"parse ns:serde*"           namespaces starting with serde
//	"Context -> Html"           functions taking Context and returning Html
//	"Vec<u8>, usize limit:5"    signature query, five results
