package value

// DataType is the declared type of a port or variable.
type DataType string

const (
	TypeInteger DataType = "integer"
	TypeFloat   DataType = "float"
	TypeString  DataType = "string"
	TypeBool    DataType = "bool"
	TypeArray   DataType = "array"
	// TypeFlow marks execution-flow ports, which carry control and no value.
	TypeFlow DataType = "flow"
	// TypeAny marks dynamically typed data ports.
	TypeAny DataType = "any"
)

// Valid reports whether t is one of the declared data types.
func (t DataType) Valid() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeString, TypeBool, TypeArray, TypeFlow, TypeAny:
		return true
	}
	return false
}

// IsScalar reports whether t is Integer, Float, String or Bool.
func (t DataType) IsScalar() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeString, TypeBool:
		return true
	}
	return false
}

// Compatible reports whether an output of type t may feed an input of type
// other: identical types, either side Any, or both scalar. Flow ports only
// connect to flow ports.
func (t DataType) Compatible(other DataType) bool {
	if t == TypeFlow || other == TypeFlow {
		return t == other
	}
	if t == other || t == TypeAny || other == TypeAny {
		return true
	}
	return t.IsScalar() && other.IsScalar()
}

// Zero returns the typed default used when an input has no source.
func Zero(t DataType) Value {
	switch t {
	case TypeInteger:
		return Int(0)
	case TypeFloat:
		return Float(0)
	case TypeString:
		return String("")
	case TypeBool:
		return Bool(false)
	case TypeArray:
		return Array()
	default:
		return Null
	}
}

// TypeOf returns the data type matching the kind of v. Null maps to Any.
func TypeOf(v Value) DataType {
	switch v.kind {
	case KindBool:
		return TypeBool
	case KindInteger:
		return TypeInteger
	case KindFloat:
		return TypeFloat
	case KindString:
		return TypeString
	case KindArray:
		return TypeArray
	default:
		return TypeAny
	}
}
