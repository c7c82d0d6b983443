package value

import "math"

// Operator names a binary arithmetic operation.
type Operator string

const (
	OpAdd Operator = "add"
	OpSub Operator = "sub"
	OpMul Operator = "mul"
	OpDiv Operator = "div"
	OpMod Operator = "mod"
)

// Arith applies op to a and b. Operands without a numeric reading count as
// integer zero. The result is a Float when either operand is a Float, an
// Integer otherwise. A zero divisor is replaced by one, so Div and Mod never
// fail.
func Arith(op Operator, a, b Value) Value {
	x, _ := numeric(a)
	y, _ := numeric(b)
	if x.isFloat || y.isFloat {
		return Float(floatOp(op, x.float(), y.float()))
	}
	return Int(intOp(op, x.i, y.i))
}

func intOp(op Operator, x, y int64) int64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			y = 1
		}
		return x / y
	case OpMod:
		if y == 0 {
			y = 1
		}
		return x % y
	}
	return 0
}

func floatOp(op Operator, x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			y = 1
		}
		return x / y
	case OpMod:
		if y == 0 {
			y = 1
		}
		return math.Mod(x, y)
	}
	return 0
}

// Add returns a + b.
func Add(a, b Value) Value { return Arith(OpAdd, a, b) }

// Sub returns a - b.
func Sub(a, b Value) Value { return Arith(OpSub, a, b) }

// Mul returns a * b.
func Mul(a, b Value) Value { return Arith(OpMul, a, b) }

// Div returns a / b, dividing by one when b is zero.
func Div(a, b Value) Value { return Arith(OpDiv, a, b) }

// Mod returns a % b, using one when b is zero.
func Mod(a, b Value) Value { return Arith(OpMod, a, b) }

// Pow returns base raised to exp as a Float.
func Pow(base, exp Value) Value { return Float(math.Pow(base.ToFloat(), exp.ToFloat())) }

// Abs returns |v|, keeping Integer operands integral.
func Abs(v Value) Value {
	n, _ := numeric(v)
	if n.isFloat {
		return Float(math.Abs(n.f))
	}
	if n.i < 0 {
		return Int(-n.i)
	}
	return Int(n.i)
}

// Min returns the smaller operand as a Float.
func Min(a, b Value) Value { return Float(math.Min(a.ToFloat(), b.ToFloat())) }

// Max returns the larger operand as a Float.
func Max(a, b Value) Value { return Float(math.Max(a.ToFloat(), b.ToFloat())) }

// Clamp limits v to [lo, hi] as a Float. When lo > hi the result is lo.
func Clamp(v, lo, hi Value) Value {
	return Float(math.Max(lo.ToFloat(), math.Min(v.ToFloat(), hi.ToFloat())))
}
