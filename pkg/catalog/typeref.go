package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/platinummonkey/docsearch/pkg/tokenize"
)

// Wildcard is the type name that matches any type.
const Wildcard = "_"

// TypeRef is a structural type reference: a base name plus ordered type
// arguments. "Result<Vec<u8>, Error>" is {Result [{Vec [{u8}]} {Error}]}.
type TypeRef struct {
	Name string    `json:"name"`
	Args []TypeRef `json:"args,omitempty"`

	key string
}

// Signature is the input/output shape of a function-like item.
type Signature struct {
	Inputs []TypeRef `json:"inputs"`
	Output *TypeRef  `json:"output,omitempty"`
}

// NewTypeRef returns a TypeRef with its comparison key computed.
func NewTypeRef(name string, args ...TypeRef) TypeRef {
	t := TypeRef{Name: name, Args: args}
	t.key = typeKey(name)
	return t
}

// Key returns the case-folded last path segment of the name, which is what
// structural comparison uses: "std::vec::Vec" and "vec" share a key.
func (t TypeRef) Key() string {
	if t.key != "" {
		return t.key
	}
	return typeKey(t.Name)
}

// IsWildcard reports whether t matches any type.
func (t TypeRef) IsWildcard() bool {
	return t.Name == Wildcard || t.Name == "?"
}

func (t TypeRef) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// withKeys returns a deep copy of t with every comparison key precomputed.
func (t TypeRef) withKeys() TypeRef {
	out := TypeRef{Name: t.Name, key: typeKey(t.Name)}
	if len(t.Args) > 0 {
		out.Args = make([]TypeRef, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = a.withKeys()
		}
	}
	return out
}

func typeKey(name string) string {
	segs := tokenize.Segments(name)
	if len(segs) == 0 {
		return tokenize.Fold(strings.TrimSpace(name))
	}
	return tokenize.Fold(segs[len(segs)-1])
}

func (s Signature) String() string {
	in := make([]string, len(s.Inputs))
	for i, t := range s.Inputs {
		in[i] = t.String()
	}
	out := "(" + strings.Join(in, ", ") + ")"
	if s.Output != nil {
		out += " -> " + s.Output.String()
	}
	return out
}

// ParseTypeRef parses a single type expression such as "Vec<String>",
// "&mut Formatter", "[u8]", "(A, B)" or "_".
func ParseTypeRef(s string) (TypeRef, error) {
	p := &typeParser{src: []rune(s)}
	t, err := p.parseType()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if !p.done() {
		return TypeRef{}, fmt.Errorf("unexpected %q at offset %d in type %q", p.peek(), p.pos, s)
	}
	return t, nil
}

// ParseTypeList parses a comma separated list of type expressions. Commas
// nested inside brackets do not split. An empty string yields an empty list.
func ParseTypeList(s string) ([]TypeRef, error) {
	p := &typeParser{src: []rune(s)}
	p.skipSpace()
	if p.done() {
		return nil, nil
	}

	var out []TypeRef
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		p.skipSpace()
		if p.done() {
			return out, nil
		}
		if p.peek() != ',' {
			return nil, fmt.Errorf("expected ',' at offset %d in %q", p.pos, s)
		}
		p.pos++
		p.skipSpace()
		if p.done() {
			return out, nil
		}
	}
}

type typeParser struct {
	src []rune
	pos int
}

func (p *typeParser) done() bool { return p.pos >= len(p.src) }

func (p *typeParser) peek() rune {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) skipSpace() {
	for !p.done() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *typeParser) parseType() (TypeRef, error) {
	p.skipSpace()
	if p.done() {
		return TypeRef{}, fmt.Errorf("expected type at offset %d", p.pos)
	}

	switch r := p.peek(); {
	case r == '&' || r == '*':
		// References and raw pointers compare as their pointee.
		p.pos++
		p.skipSpace()
		p.skipLifetime()
		p.skipKeyword("mut")
		p.skipKeyword("const")
		return p.parseType()

	case r == '[':
		p.pos++
		elem, err := p.parseType()
		if err != nil {
			return TypeRef{}, err
		}
		p.skipSpace()
		if p.peek() == ';' {
			for !p.done() && p.peek() != ']' {
				p.pos++
			}
		}
		if err := p.expect(']'); err != nil {
			return TypeRef{}, err
		}
		return NewTypeRef("[]", elem), nil

	case r == '(':
		p.pos++
		var elems []TypeRef
		for {
			p.skipSpace()
			if p.peek() == ')' {
				p.pos++
				return NewTypeRef("()", elems...), nil
			}
			elem, err := p.parseType()
			if err != nil {
				return TypeRef{}, err
			}
			elems = append(elems, elem)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
			}
		}
	}

	p.skipKeyword("dyn")
	p.skipKeyword("impl")
	name := p.parsePath()
	if name == "" {
		return TypeRef{}, fmt.Errorf("unexpected %q at offset %d", p.peek(), p.pos)
	}

	t := NewTypeRef(name)
	p.skipSpace()
	if p.peek() != '<' {
		return t, nil
	}
	p.pos++
	for {
		p.skipSpace()
		if p.peek() == '>' {
			p.pos++
			return t, nil
		}
		p.skipLifetime()
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() == '>' {
			continue
		}
		arg, err := p.parseType()
		if err != nil {
			return TypeRef{}, err
		}
		t.Args = append(t.Args, arg)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '>':
		default:
			return TypeRef{}, fmt.Errorf("expected ',' or '>' at offset %d", p.pos)
		}
	}
}

func (p *typeParser) parsePath() string {
	start := p.pos
	for !p.done() {
		r := p.peek()
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || r == '?':
			p.pos++
		case r == ':' && p.pos+1 < len(p.src) && p.src[p.pos+1] == ':':
			p.pos += 2
		default:
			return string(p.src[start:p.pos])
		}
	}
	return string(p.src[start:p.pos])
}

func (p *typeParser) skipKeyword(kw string) {
	kr := []rune(kw)
	end := p.pos + len(kr)
	if end > len(p.src) || string(p.src[p.pos:end]) != kw {
		return
	}
	if end < len(p.src) && (unicode.IsLetter(p.src[end]) || p.src[end] == '_') {
		return
	}
	p.pos = end
	p.skipSpace()
}

func (p *typeParser) skipLifetime() {
	if p.peek() != '\'' {
		return
	}
	p.pos++
	for !p.done() && (unicode.IsLetter(p.peek()) || p.peek() == '_') {
		p.pos++
	}
	p.skipSpace()
}

func (p *typeParser) expect(r rune) error {
	p.skipSpace()
	if p.peek() != r {
		return fmt.Errorf("expected %q at offset %d", r, p.pos)
	}
	p.pos++
	return nil
}
