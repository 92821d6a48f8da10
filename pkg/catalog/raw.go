package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RawIndex is the decoded, unvalidated input of Build: namespaces in the
// order they appeared in the source document.
type RawIndex struct {
	Namespaces []RawNamespace
}

// RawNamespace holds the item records of one originating library.
type RawNamespace struct {
	ID    string
	Doc   string
	Items []RawItem
	// Paths is the optional parent table. When present, RawItem.Parent
	// indexes into it instead of into Items.
	Paths []RawPath
}

// RawItem is one item record. Kind holds a kind name or numeric code and is
// validated by Build. An empty Path places the item at the namespace root
// unless InheritPath is set.
type RawItem struct {
	Kind        string
	Name        string
	Path        string
	Description string
	Parent      *int
	Signature   *RawSignature
	Deprecated  bool
	// InheritPath marks a tuple record with an empty path, which repeats
	// the previous item's path.
	InheritPath bool
}

// RawPath is a parent table entry.
type RawPath struct {
	Kind string
	Name string
}

// RawSignature is a signature as it appears in the index.
type RawSignature struct {
	Inputs []RawType `json:"inputs"`
	Output *RawType  `json:"output"`
}

// RawType is either a bare type expression or a name with generics.
type RawType struct {
	Name     string    `json:"name"`
	Generics []RawType `json:"generics,omitempty"`
}

// UnmarshalJSON decodes a JSON object keyed by namespace ID, keeping the
// key order of the document.
func (r *RawIndex) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("index must be a JSON object, got %v", tok)
	}

	r.Namespaces = r.Namespaces[:0]
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected namespace key, got %v", keyTok)
		}

		var ns RawNamespace
		if err := dec.Decode(&ns); err != nil {
			return fmt.Errorf("namespace %q: %w", key, err)
		}
		ns.ID = key
		r.Namespaces = append(r.Namespaces, ns)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON writes the index back as an object keyed by namespace ID in
// namespace order.
func (r RawIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ns := range r.Namespaces {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ns.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		body, err := json.Marshal(ns)
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type rawNamespaceJSON struct {
	Doc   string    `json:"doc,omitempty"`
	Items []RawItem `json:"items"`
	Paths []RawPath `json:"paths,omitempty"`
}

func (n *RawNamespace) UnmarshalJSON(data []byte) error {
	var aux rawNamespaceJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.Doc = aux.Doc
	n.Items = aux.Items
	n.Paths = aux.Paths
	return nil
}

// MarshalJSON writes inherited paths out in full, since the object form
// has no inheritance.
func (n RawNamespace) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawNamespaceJSON{Doc: n.Doc, Items: resolveInheritedPaths(n.Items), Paths: n.Paths})
}

func resolveInheritedPaths(items []RawItem) []RawItem {
	if items == nil {
		return nil
	}
	out := make([]RawItem, len(items))
	last := ""
	for i, it := range items {
		if p := strings.TrimSpace(it.Path); p != "" {
			last = p
		} else if it.InheritPath {
			it.Path = last
		}
		it.InheritPath = false
		out[i] = it
	}
	return out
}

type rawItemJSON struct {
	Kind        json.RawMessage `json:"kind"`
	Name        string          `json:"name"`
	Path        string          `json:"path,omitempty"`
	Description string          `json:"desc,omitempty"`
	Parent      *int            `json:"parent,omitempty"`
	Signature   *RawSignature   `json:"signature,omitempty"`
	Deprecated  bool            `json:"deprecated,omitempty"`
}

// UnmarshalJSON accepts the compact tuple form
// [kind, name, path, desc, parent, signature, deprecated?] as well as an
// object with named fields.
func (it *RawItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return it.unmarshalTuple(data)
	}

	var aux rawItemJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	kind, err := kindText(aux.Kind)
	if err != nil {
		return err
	}
	*it = RawItem{
		Kind:        kind,
		Name:        aux.Name,
		Path:        aux.Path,
		Description: aux.Description,
		Parent:      aux.Parent,
		Signature:   aux.Signature,
		Deprecated:  aux.Deprecated,
	}
	return nil
}

func (it *RawItem) unmarshalTuple(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*it = RawItem{}
	for i, f := range fields {
		if isNull(f) {
			continue
		}
		var err error
		switch i {
		case 0:
			it.Kind, err = kindText(f)
		case 1:
			err = json.Unmarshal(f, &it.Name)
		case 2:
			err = json.Unmarshal(f, &it.Path)
		case 3:
			err = json.Unmarshal(f, &it.Description)
		case 4:
			var p int
			err = json.Unmarshal(f, &p)
			it.Parent = &p
		case 5:
			it.Signature = &RawSignature{}
			err = json.Unmarshal(f, it.Signature)
		case 6:
			err = json.Unmarshal(f, &it.Deprecated)
		}
		if err != nil {
			return fmt.Errorf("item field %d: %w", i, err)
		}
	}
	it.InheritPath = strings.TrimSpace(it.Path) == ""
	return nil
}

// MarshalJSON always writes the object form.
func (it RawItem) MarshalJSON() ([]byte, error) {
	kind := json.RawMessage(strconv.Quote(it.Kind))
	return json.Marshal(rawItemJSON{
		Kind:        kind,
		Name:        it.Name,
		Path:        it.Path,
		Description: it.Description,
		Parent:      it.Parent,
		Signature:   it.Signature,
		Deprecated:  it.Deprecated,
	})
}

// UnmarshalJSON accepts [kind, name] tuples and {"kind","name"} objects.
func (p *RawPath) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var fields []json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		if len(fields) < 2 {
			return fmt.Errorf("path entry needs kind and name, got %d fields", len(fields))
		}
		kind, err := kindText(fields[0])
		if err != nil {
			return err
		}
		p.Kind = kind
		return json.Unmarshal(fields[1], &p.Name)
	}

	var aux struct {
		Kind json.RawMessage `json:"kind"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	kind, err := kindText(aux.Kind)
	if err != nil {
		return err
	}
	p.Kind = kind
	p.Name = aux.Name
	return nil
}

func (p RawPath) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{p.Kind, p.Name})
}

// UnmarshalJSON accepts "Vec<u8>" as well as {"name": "vec", "generics": [...]}.
func (t *RawType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		t.Generics = nil
		return json.Unmarshal(data, &t.Name)
	}
	type plain RawType
	var aux plain
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = RawType(aux)
	return nil
}

// kindText turns a JSON number or string into the textual kind form that
// ParseKind understands.
func kindText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		return strconv.Itoa(code), nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", fmt.Errorf("kind must be a number or string: %w", err)
	}
	return name, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
