// Package value defines the configuration value model shared by the
// resolution environment, module contexts and flow configuration: a tagged
// variant of scalar strings, sequences and order-preserving mappings.
package value

import (
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a scalar string, an ordered sequence of values, or a mapping from
// string keys to values. The zero Value is the empty scalar.
type Value struct {
	kind   Kind
	scalar string
	items  []Value
	fields *Mapping
}

// Scalar wraps a string.
func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Sequence wraps an ordered list of values. A nil or empty argument list
// produces an explicitly empty sequence.
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, items: append([]Value{}, items...)}
}

// Strings builds a sequence of scalars.
func Strings(items ...string) Value {
	out := make([]Value, len(items))
	for i, s := range items {
		out[i] = Scalar(s)
	}
	return Value{kind: KindSequence, items: out}
}

// Map wraps a mapping. A nil mapping becomes an empty one.
func Map(m *Mapping) Value {
	if m == nil {
		m = NewMapping()
	}
	return Value{kind: KindMapping, fields: m}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsScalar reports whether v holds a string.
func (v Value) IsScalar() bool { return v.kind == KindScalar }

// IsSequence reports whether v holds a sequence.
func (v Value) IsSequence() bool { return v.kind == KindSequence }

// IsMapping reports whether v holds a mapping.
func (v Value) IsMapping() bool { return v.kind == KindMapping }

// Str returns the scalar contents.
func (v Value) Str() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	return v.scalar, true
}

// Items returns a copy of the sequence elements.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return append([]Value{}, v.items...)
}

// Len returns the number of sequence items or mapping entries, and the
// length of the string for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.items)
	case KindMapping:
		return v.fields.Len()
	default:
		return len(v.scalar)
	}
}

// Mapping returns the underlying mapping. The mapping is shared, not copied.
func (v Value) Mapping() (*Mapping, bool) {
	if v.kind != KindMapping {
		return nil, false
	}
	return v.fields, true
}

// StringSlice flattens a scalar or a sequence of scalars into strings. Nested
// sequences are flattened in order; mappings are not convertible.
func (v Value) StringSlice() ([]string, bool) {
	switch v.kind {
	case KindScalar:
		return []string{v.scalar}, true
	case KindSequence:
		out := make([]string, 0, len(v.items))
		for _, item := range v.items {
			sub, ok := item.StringSlice()
			if !ok {
				return nil, false
			}
			out = append(out, sub...)
		}
		return out, true
	default:
		return nil, false
	}
}

// String renders the value the way it is passed to external tools: scalars
// verbatim, sequences space-joined, mappings as `{k: v, ...}`.
func (v Value) String() string {
	switch v.kind {
	case KindSequence:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		return strings.Join(parts, " ")
	case KindMapping:
		var b strings.Builder
		b.WriteByte('{')
		for i, key := range v.fields.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			item, _ := v.fields.Get(key)
			b.WriteString(key)
			b.WriteString(": ")
			b.WriteString(item.String())
		}
		b.WriteByte('}')
		return b.String()
	default:
		return v.scalar
	}
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Clone()
		}
		return Value{kind: KindSequence, items: items}
	case KindMapping:
		return Value{kind: KindMapping, fields: v.fields.Clone()}
	default:
		return v
	}
}

// Equal reports structural equality. Mapping order is not significant.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindSequence:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return v.fields.Equal(other.fields)
	default:
		return v.scalar == other.scalar
	}
}
