package transform

import "errors"

// Sentinel errors shared across all transform operations
var (
	// JSON query errors
	ErrInvalidJSONPath = errors.New("invalid JSON path syntax")
	ErrInvalidJSON     = errors.New("invalid JSON document")
	ErrTypeMismatch    = errors.New("type mismatch in JSON query")

	// Expression errors
	ErrUnsafeOperation   = errors.New("unsafe operation attempted")
	ErrEvaluationTimeout = errors.New("expression evaluation timed out")
	ErrInvalidExpression = errors.New("invalid expression syntax")
	ErrEmptyExpression   = errors.New("empty expression")

	// Shared undefined variable error
	ErrUndefinedVariable = errors.New("undefined variable")
)
