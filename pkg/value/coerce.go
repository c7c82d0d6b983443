package value

import (
	"cmp"
	"math"
	"strconv"
	"strings"
)

// ToBool converts v to a boolean. It never fails.
//
// Numbers are true when nonzero. Strings are true when they read "true"
// (case-insensitive) or hold a nonzero number. Arrays are true when non-empty.
func (v Value) ToBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInteger:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		s := strings.TrimSpace(v.s)
		if strings.EqualFold(s, "true") {
			return true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0
		}
		return false
	case KindArray:
		return len(v.items) > 0
	default:
		return false
	}
}

// ToInteger converts v to an int64. Floats truncate toward zero and saturate
// at the int64 bounds; NaN and unparseable strings become 0.
func (v Value) ToInteger() int64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInteger:
		return v.i
	case KindFloat:
		return truncate(v.f)
	case KindString:
		s := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return truncate(f)
		}
		return 0
	default:
		return 0
	}
}

// ToFloat converts v to a float64; unparseable strings become 0.
func (v Value) ToFloat() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInteger:
		return float64(v.i)
	case KindFloat:
		return v.f
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ToString converts v to its display form. Null renders as the empty string
// and arrays as "[a, b, c]".
func (v Value) ToString() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindArray:
		return joinItems(v.items)
	default:
		return ""
	}
}

func truncate(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

// number is an operand reduced for arithmetic or comparison.
type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

// numeric reduces v to an integer or float operand. ok is false when v has no
// numeric reading; the returned operand is then integer zero.
func numeric(v Value) (number, bool) {
	switch v.kind {
	case KindInteger:
		return number{i: v.i}, true
	case KindFloat:
		return number{f: v.f, isFloat: true}, true
	case KindBool:
		if v.b {
			return number{i: 1}, true
		}
		return number{}, true
	case KindString:
		s := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return number{i: i}, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return number{f: f, isFloat: true}, true
		}
	}
	return number{}, false
}

// Compare orders a and b. When both sides have a numeric reading the
// comparison is numeric (exact for integer pairs); otherwise the ToString
// forms are compared.
func Compare(a, b Value) int {
	na, okA := numeric(a)
	nb, okB := numeric(b)
	if okA && okB {
		if !na.isFloat && !nb.isFloat {
			return cmp.Compare(na.i, nb.i)
		}
		return cmp.Compare(na.float(), nb.float())
	}
	return strings.Compare(a.ToString(), b.ToString())
}

// Coerce converts v to the declared type t. Any and ExecutionFlow leave v
// unchanged.
func Coerce(v Value, t DataType) Value {
	switch t {
	case TypeBool:
		return Bool(v.ToBool())
	case TypeInteger:
		return Int(v.ToInteger())
	case TypeFloat:
		return Float(v.ToFloat())
	case TypeString:
		return String(v.ToString())
	case TypeArray:
		if v.kind == KindArray {
			return v
		}
		if v.kind == KindNull {
			return Array()
		}
		return Array(v)
	default:
		return v
	}
}
