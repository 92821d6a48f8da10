package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/platinummonkey/docsearch/pkg/catalog"
)

// Format identifies an index encoding.
type Format string

const (
	// FormatJSON is a JSON object keyed by namespace.
	FormatJSON Format = "json"
	// FormatScript is the generated script form, one
	// `searchIndex["ns"] = {...};` assignment per namespace.
	FormatScript Format = "script"
)

var assignPattern = regexp.MustCompile(`(?m)^\s*searchIndex\[("(?:[^"\\]|\\.)*")\]\s*=\s*(.*?);?\s*$`)

// Detect guesses the format of data.
func Detect(data []byte) Format {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatScript
}

// Parse decodes an index in either format.
func Parse(data []byte) (*catalog.RawIndex, error) {
	switch Detect(data) {
	case FormatJSON:
		return ParseJSON(data)
	default:
		return ParseScript(data)
	}
}

// ParseJSON decodes a JSON index.
func ParseJSON(data []byte) (*catalog.RawIndex, error) {
	var raw catalog.RawIndex
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrMalformedIndex, err)
	}
	return &raw, nil
}

// ParseScript decodes the script form. Lines other than namespace
// assignments, such as the variable declaration and the init call, are
// ignored. A namespace assigned twice keeps its last value in its first
// position.
func ParseScript(data []byte) (*catalog.RawIndex, error) {
	matches := assignPattern.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no namespace assignments found", catalog.ErrMalformedIndex)
	}

	raw := &catalog.RawIndex{}
	seen := make(map[string]int, len(matches))
	for _, m := range matches {
		var id string
		if err := json.Unmarshal(m[1], &id); err != nil {
			return nil, fmt.Errorf("%w: bad namespace key %s: %v", catalog.ErrMalformedIndex, m[1], err)
		}

		var ns catalog.RawNamespace
		if err := json.Unmarshal(m[2], &ns); err != nil {
			return nil, fmt.Errorf("%w: namespace %q: %v", catalog.ErrMalformedIndex, id, err)
		}
		ns.ID = id

		if i, ok := seen[id]; ok {
			raw.Namespaces[i] = ns
			continue
		}
		seen[id] = len(raw.Namespaces)
		raw.Namespaces = append(raw.Namespaces, ns)
	}
	return raw, nil
}

// Load parses data and builds a catalog from it.
func Load(data []byte) (*catalog.Catalog, error) {
	raw, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return catalog.Build(raw)
}

// EncodeJSON writes raw as indented JSON, the normalized form served to
// other tools.
func EncodeJSON(raw *catalog.RawIndex) ([]byte, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
