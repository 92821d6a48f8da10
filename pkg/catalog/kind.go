package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a documentable item. The numeric values match the item
// type codes used by generated search indexes, so a code can be converted
// with a bounds check.
type Kind uint8

const (
	KindModule Kind = iota
	KindExternCrate
	KindImport
	KindStruct
	KindEnum
	KindFunction
	KindTypeAlias
	KindStatic
	KindTrait
	KindImpl
	KindTyMethod
	KindMethod
	KindStructField
	KindVariant
	KindMacro
	KindPrimitive
	KindAssocType
	KindConstant
	KindAssocConst

	kindCount
)

var kindNames = [kindCount]string{
	"mod",
	"externcrate",
	"import",
	"struct",
	"enum",
	"fn",
	"type",
	"static",
	"trait",
	"impl",
	"tymethod",
	"method",
	"structfield",
	"variant",
	"macro",
	"primitive",
	"associatedtype",
	"constant",
	"associatedconstant",
}

var kindAliases = map[string]Kind{
	"module":     KindModule,
	"crate":      KindExternCrate,
	"use":        KindImport,
	"function":   KindFunction,
	"func":       KindFunction,
	"typealias":  KindTypeAlias,
	"typedef":    KindTypeAlias,
	"field":      KindStructField,
	"const":      KindConstant,
	"assoctype":  KindAssocType,
	"assocconst": KindAssocConst,
}

// String returns the canonical lower-case name of the kind.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k < kindCount
}

// IsFunctionLike reports whether items of this kind carry a signature and
// take part in type-signature matching.
func (k Kind) IsFunctionLike() bool {
	switch k {
	case KindFunction, KindTyMethod, KindMethod:
		return true
	default:
		return false
	}
}

// ParseKind accepts a canonical kind name, a common alias or a numeric item
// type code.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty kind")
	}

	if code, err := strconv.Atoi(s); err == nil {
		if code < 0 || code >= int(kindCount) {
			return 0, fmt.Errorf("unknown kind code: %d", code)
		}
		return Kind(code), nil
	}

	normalized := strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
	for i, name := range kindNames {
		if name == normalized {
			return Kind(i), nil
		}
	}
	if k, ok := kindAliases[normalized]; ok {
		return k, nil
	}

	return 0, fmt.Errorf("unknown kind: %s", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid kind: %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
