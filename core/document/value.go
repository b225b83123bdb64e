// Package document defines the data model shared by every layer of the store:
// a closed set of JSON-like values, insertion-ordered documents, and the
// insertion-ordered collections that hold them.
package document

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

// Supported value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase name of the kind as it appears in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged JSON-like value. The zero Value is Null.
//
// Values are treated as immutable once built: containers are never mutated in
// place by this package. Use Clone when a caller needs an independent copy it
// intends to change.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	a    []Value
	o    *Document
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64. All numbers are stored as float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a list of values. The slice is not copied.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, a: elems}
}

// Object wraps a nested document. A nil document becomes an empty one.
func Object(d *Document) Value {
	if d == nil {
		d = New()
	}
	return Value{kind: KindObject, o: d}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsContainer reports whether v is an array or an object.
func (v Value) IsContainer() bool { return v.kind == KindArray || v.kind == KindObject }

// Bool returns the boolean held by v and whether v is a boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Number returns the number held by v and whether v is a number.
func (v Value) Number() (float64, bool) { return v.n, v.kind == KindNumber }

// Str returns the string held by v and whether v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Array returns the elements held by v and whether v is an array. The
// returned slice is shared with v and must not be modified.
func (v Value) Array() ([]Value, bool) { return v.a, v.kind == KindArray }

// Document returns the nested document held by v and whether v is an object.
func (v Value) Document() (*Document, bool) { return v.o, v.kind == KindObject }

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.a))
		for i, e := range v.a {
			out[i] = e.Clone()
		}
		return Value{kind: KindArray, a: out}
	case KindObject:
		return Value{kind: KindObject, o: v.o.Clone()}
	default:
		return v
	}
}

// Equal reports strict type-and-value equality. Numbers never equal strings,
// arrays compare element-wise in order, and objects compare field-wise
// regardless of field order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.a) != len(other.a) {
			return false
		}
		for i := range v.a {
			if !v.a[i].Equal(other.a[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.o.Equal(other.o)
	default:
		return false
	}
}

// Compare orders two scalars of the same comparable kind. Numbers compare
// numerically and strings lexicographically by bytes. ok is false when the
// kinds differ or are not orderable.
func Compare(a, b Value) (cmp int, ok bool) {
	switch {
	case a.kind == KindNumber && b.kind == KindNumber:
		switch {
		case a.n < b.n:
			return -1, true
		case a.n > b.n:
			return 1, true
		default:
			return 0, true
		}
	case a.kind == KindString && b.kind == KindString:
		return strings.Compare(a.s, b.s), true
	default:
		return 0, false
	}
}

// String renders v as compact JSON. It is meant for logs and error messages.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(data)
}
