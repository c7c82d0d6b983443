package transform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultTimeout bounds a single evaluation when the context has no deadline.
const DefaultTimeout = 5 * time.Second

// Evaluator evaluates expressions for the Expression node. Supports:
//   - Comparison operators: >, <, >=, <=, ==, !=
//   - Logical operators: && (AND), || (OR), ! (NOT)
//   - Arithmetic operators: +, -, *, /, %
//   - String helpers: contains(s, sub), upper, lower, trim and the expr builtins
//   - Variable references from the environment map
//
// Sandboxed: no access to the filesystem, processes or network.
type Evaluator struct {
	mu           sync.Mutex
	programCache map[string]*vm.Program
}

// NewEvaluator creates an evaluator with an empty program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{programCache: make(map[string]*vm.Program)}
}

// Evaluate runs expression against env and converts the result to a Value.
// env values may be Values or plain Go values.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, env map[string]any) (value.Value, error) {
	select {
	case <-ctx.Done():
		return value.Null, ctx.Err()
	default:
	}

	if strings.TrimSpace(expression) == "" {
		return value.Null, ErrEmptyExpression
	}
	if err := validateExpression(expression); err != nil {
		return value.Null, err
	}

	program, err := e.program(expression)
	if err != nil {
		return value.Null, err
	}

	plain := make(map[string]any, len(env))
	for k, v := range env {
		if vv, ok := v.(value.Value); ok {
			plain[k] = vv.ToAny()
			continue
		}
		plain[k] = v
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := vm.Run(program, plain)
		if err != nil {
			if strings.Contains(err.Error(), "undefined") || strings.Contains(err.Error(), "unknown name") {
				err = fmt.Errorf("%w: %v", ErrUndefinedVariable, err)
			} else {
				err = fmt.Errorf("%w: %v", ErrInvalidExpression, err)
			}
		}
		done <- outcome{result: result, err: err}
	}()

	timeout := DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return value.Null, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return value.Null, out.err
		}
		return value.FromAny(out.result), nil
	case <-timer.C:
		return value.Null, ErrEvaluationTimeout
	}
}

// EvaluateBool evaluates expression and coerces the result to a boolean.
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, env map[string]any) (bool, error) {
	v, err := e.Evaluate(ctx, expression, env)
	if err != nil {
		return false, err
	}
	return v.ToBool(), nil
}

// validateExpression rejects identifiers that suggest host access.
func validateExpression(expression string) error {
	unsafePatterns := []string{
		"os.",
		"exec.",
		"http.",
		"net.",
		"syscall.",
		"unsafe.",
		"__proto__",
		"ReadFile",
		"WriteFile",
		"Command",
	}

	lowerExpr := strings.ToLower(expression)
	for _, pattern := range unsafePatterns {
		if strings.Contains(lowerExpr, strings.ToLower(pattern)) {
			return ErrUnsafeOperation
		}
	}
	return nil
}

// program returns the cached compiled program for expression.
func (e *Evaluator) program(expression string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.programCache[expression]; ok {
		return program, nil
	}

	options := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("contains", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("contains requires 2 arguments")
			}
			str, err := extractParam[string](params, 0, "string")
			if err != nil {
				return false, nil
			}
			substr, err := extractParam[string](params, 1, "substring")
			if err != nil {
				return false, nil
			}
			return strings.Contains(str, substr), nil
		}),
		expr.Function("str", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("str() requires 1 argument")
			}
			return value.FromAny(params[0]).ToString(), nil
		}),
		expr.Function("num", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("num() requires 1 argument")
			}
			return value.FromAny(params[0]).ToFloat(), nil
		}),
	}

	program, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	e.programCache[expression] = program
	return program, nil
}
