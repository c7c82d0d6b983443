package value

import (
	"fmt"
	"math"
	"strings"
)

// Kind identifies which variant of the Value union is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindFloat
	KindString
	KindArray
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is the tagged union carried on data ports and stored in variables.
// The zero Value is Null. Values are immutable; Array values own a private
// copy of their items.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	items []Value
}

// Null is the absent value.
var Null = Value{}

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Float wraps a 64-bit float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array builds an array value from a copy of items.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, items: cp}
}

// Kind reports the populated variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the absent value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsZero reports whether v is Null. Encoders use it for omitempty.
func (v Value) IsZero() bool { return v.kind == KindNull }

// IsNumeric reports whether v is an Integer or a Float.
func (v Value) IsNumeric() bool { return v.kind == KindInteger || v.kind == KindFloat }

// Items returns a copy of the array items, or nil for non-array values.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Len returns the number of items of an array, or the rune count of a string.
// Other kinds have length zero.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindString:
		return len([]rune(v.s))
	default:
		return 0
	}
}

// Index returns the element at i of an array, or the rune at i of a string.
func (v Value) Index(i int) (Value, bool) {
	switch v.kind {
	case KindArray:
		if i < 0 || i >= len(v.items) {
			return Null, false
		}
		return v.items[i], true
	case KindString:
		runes := []rune(v.s)
		if i < 0 || i >= len(runes) {
			return Null, false
		}
		return String(string(runes[i])), true
	default:
		return Null, false
	}
}

// With returns a copy of the array with item i replaced by x. The array is
// extended with Null items when i is past the end. Non-array values are
// treated as empty arrays. Negative indexes and math.MaxInt leave v unchanged.
func (v Value) With(i int, x Value) Value {
	if i < 0 || i == math.MaxInt {
		return v
	}
	n := len(v.items)
	if v.kind != KindArray {
		n = 0
	}
	size := n
	if i >= size {
		size = i + 1
	}
	cp := make([]Value, size)
	if v.kind == KindArray {
		copy(cp, v.items)
	}
	cp[i] = x
	return Value{kind: KindArray, items: cp}
}

// Append returns a copy of the array with x added at the end.
func (v Value) Append(x Value) Value {
	var items []Value
	if v.kind == KindArray {
		items = v.items
	}
	cp := make([]Value, len(items), len(items)+1)
	copy(cp, items)
	return Value{kind: KindArray, items: append(cp, x)}
}

// Pop returns a copy of the array without its last item, and that item.
func (v Value) Pop() (Value, Value, bool) {
	if v.kind != KindArray || len(v.items) == 0 {
		return v, Null, false
	}
	last := v.items[len(v.items)-1]
	return Array(v.items[:len(v.items)-1]...), last, true
}

// Equal reports whether a and b compare as equal under Compare.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Identical reports structural identity: same kind and same payload.
func Identical(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInteger:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f || (a.f != a.f && b.f != b.f)
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Identical(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String implements fmt.Stringer with the ToString coercion.
func (v Value) String() string { return v.ToString() }

// GoString renders the value with its kind, for test failure messages.
func (v Value) GoString() string {
	if v.kind == KindString {
		return fmt.Sprintf("%s(%q)", v.kind, v.s)
	}
	return fmt.Sprintf("%s(%s)", v.kind, v.ToString())
}

func joinItems(items []Value) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.ToString()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
