package workflow

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/dshills/nodeflow/pkg/value"
)

// Variable is a named, graph-scoped value. Default is the value the variable
// holds at the start of every run.
type Variable struct {
	Name        string
	Type        value.DataType
	Default     value.Value
	Description string
}

// validVariableNameRegex matches valid variable names (alphanumeric + underscore, not starting with underscore or number)
var validVariableNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidVariableName reports whether name may be used as a variable name.
func ValidVariableName(name string) bool {
	return validVariableNameRegex.MatchString(name)
}

// Validate checks if the variable is valid
func (v *Variable) Validate() error {
	if v.Name == "" {
		return errors.New("variable: empty variable name")
	}

	if !ValidVariableName(v.Name) {
		return fmt.Errorf("variable: invalid variable name format: %s (must start with letter, contain only alphanumeric and underscore)", v.Name)
	}

	if v.Type == "" {
		return nil
	}
	if !v.Type.Valid() || v.Type == value.TypeFlow {
		return fmt.Errorf("variable: invalid variable type: %s", v.Type)
	}

	if !v.Default.IsNull() && !value.TypeOf(v.Default).Compatible(v.Type) {
		return fmt.Errorf("variable: default value type mismatch for %s: expected %s, got %s", v.Name, v.Type, v.Default.Kind())
	}

	return nil
}

// Initial returns the default coerced to the declared type. Variables
// without a default start at the zero value of their type.
func (v *Variable) Initial() value.Value {
	if v.Default.IsNull() {
		return value.Zero(v.declared())
	}
	return value.Coerce(v.Default, v.declared())
}

// Assign coerces x to the declared type.
func (v *Variable) Assign(x value.Value) value.Value {
	return value.Coerce(x, v.declared())
}

func (v *Variable) declared() value.DataType {
	if v.Type == "" {
		return value.TypeAny
	}
	return v.Type
}
