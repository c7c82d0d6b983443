package execution

import (
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/dshills/nodeflow/pkg/transform"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

func registerValues(r *Registry) {
	r.RegisterValue(workflow.TypeGetVariable, getVariable)
	r.RegisterFlow(workflow.TypeSetVariable, setVariable)

	arith := map[workflow.NodeType]func(a, b value.Value) value.Value{
		workflow.TypeAdd:      value.Add,
		workflow.TypeSubtract: value.Sub,
		workflow.TypeMultiply: value.Mul,
		workflow.TypeDivide:   value.Div,
		workflow.TypeModulo:   value.Mod,
		workflow.TypeMin:      value.Min,
		workflow.TypeMax:      value.Max,
	}
	for t, op := range arith {
		r.RegisterValue(t, binary(op))
	}
	r.RegisterValue(workflow.TypePower, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Pow(c.Input("Base"), c.Input("Exponent"))}
	})
	r.RegisterValue(workflow.TypeAbs, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Abs(c.Input(workflow.PortIn))}
	})
	r.RegisterValue(workflow.TypeClamp, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Clamp(c.Input("Value"), c.Input("Min"), c.Input("Max"))}
	})
	r.RegisterValue(workflow.TypeRandom, random)
	r.RegisterValue(workflow.TypeConstant, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: c.Input(workflow.PortValue)}
	})

	compare := map[workflow.NodeType]func(int) bool{
		workflow.TypeEquals:             func(n int) bool { return n == 0 },
		workflow.TypeNotEquals:          func(n int) bool { return n != 0 },
		workflow.TypeGreaterThan:        func(n int) bool { return n > 0 },
		workflow.TypeGreaterThanOrEqual: func(n int) bool { return n >= 0 },
		workflow.TypeLessThan:           func(n int) bool { return n < 0 },
		workflow.TypeLessThanOrEqual:    func(n int) bool { return n <= 0 },
	}
	for t, test := range compare {
		r.RegisterValue(t, comparison(test))
	}

	logic := map[workflow.NodeType]func(a, b bool) bool{
		workflow.TypeAnd: func(a, b bool) bool { return a && b },
		workflow.TypeOr:  func(a, b bool) bool { return a || b },
		workflow.TypeXor: func(a, b bool) bool { return a != b },
	}
	for t, op := range logic {
		r.RegisterValue(t, func(c *Call) Outputs {
			return Outputs{workflow.PortOut: value.Bool(op(c.Bool("A"), c.Bool("B")))}
		})
	}
	r.RegisterValue(workflow.TypeNot, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Bool(!c.Bool(workflow.PortIn))}
	})

	registerStrings(r)

	r.RegisterValue(workflow.TypeToInteger, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Int(c.Int(workflow.PortIn))}
	})
	r.RegisterValue(workflow.TypeToFloat, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Float(c.Float(workflow.PortIn))}
	})
	r.RegisterValue(workflow.TypeToString, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.String(c.String(workflow.PortIn))}
	})
	r.RegisterValue(workflow.TypeGetTimestamp, func(c *Call) Outputs {
		c.Volatile()
		now := c.Now()
		ts := now.Unix()
		if c.Bool("Milliseconds") {
			ts = now.UnixMilli()
		}
		return Outputs{"Timestamp": value.Int(ts)}
	})

	registerArrays(r)

	r.RegisterValue(workflow.TypeJSONParse, func(c *Call) Outputs {
		v, ok := value.ParseJSON(c.String("JSON"))
		return Outputs{workflow.PortValue: v, workflow.PortSuccess: value.Bool(ok)}
	})
	r.RegisterValue(workflow.TypeJSONStringify, func(c *Call) Outputs {
		return Outputs{"JSON": value.String(c.Input(workflow.PortValue).JSON())}
	})
	r.RegisterValue(workflow.TypeJSONQuery, jsonQuery)
	r.RegisterValue(workflow.TypeExpression, expression)
}

func getVariable(c *Call) Outputs {
	v, ok := c.Variable(c.node.Name)
	if !ok {
		v = value.Null
	}
	return Outputs{workflow.PortValue: v}
}

func setVariable(c *Call) (string, error) {
	v := c.SetVariable(c.node.Name, c.Input(workflow.PortValue))
	c.Set(workflow.PortValue, v)
	return workflow.PortNext, nil
}

func binary(op func(a, b value.Value) value.Value) ValueFunc {
	return func(c *Call) Outputs {
		return Outputs{workflow.PortOut: op(c.Input("A"), c.Input("B"))}
	}
}

func comparison(test func(int) bool) ValueFunc {
	return func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Bool(test(value.Compare(c.Input("A"), c.Input("B"))))}
	}
}

// random draws once per run, even when its bounds come from variables.
func random(c *Call) Outputs {
	lo, hi := c.Float("Min"), c.Float("Max")
	c.Once()
	if hi < lo {
		lo, hi = hi, lo
	}
	return Outputs{workflow.PortOut: value.Float(lo + rand.Float64()*(hi-lo))}
}

func jsonQuery(c *Call) Outputs {
	v, found, err := transform.Query(c.String("JSON"), c.String("Path"))
	if err != nil {
		c.Warn("json query failed", "error", err)
	}
	return Outputs{workflow.PortValue: v, workflow.PortFound: value.Bool(found)}
}

// expression evaluates with A, B, C and every variable in scope. Inputs
// shadow variables of the same name.
func expression(c *Call) Outputs {
	env := make(map[string]any)
	for name, v := range c.Variables() {
		env[name] = v
	}
	for _, port := range []string{"A", "B", "C"} {
		env[port] = c.Input(port)
	}
	src := c.String("Expression")
	out, err := c.run.engine.evaluator.Evaluate(c.Context(), src, env)
	if err != nil {
		c.Warn("expression failed", "expression", src, "error", err)
		return Outputs{workflow.PortOut: value.Null, workflow.PortSuccess: value.Bool(false)}
	}
	return Outputs{workflow.PortOut: out, workflow.PortSuccess: value.Bool(true)}
}

func registerStrings(r *Registry) {
	r.RegisterValue(workflow.TypeConcat, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.String(c.String("A") + c.String("B"))}
	})
	r.RegisterValue(workflow.TypeSplit, func(c *Call) Outputs {
		parts := strings.Split(c.String("String"), c.String("Delimiter"))
		items := make([]value.Value, len(parts))
		for i, p := range parts {
			items[i] = value.String(p)
		}
		out := ""
		if i := c.Int("Index"); i >= 0 && i < int64(len(parts)) {
			out = parts[i]
		}
		return Outputs{workflow.PortOut: value.String(out), "Parts": value.Array(items...)}
	})
	r.RegisterValue(workflow.TypeLength, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Int(int64(value.String(c.String("String")).Len()))}
	})
	r.RegisterValue(workflow.TypeContains, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.Bool(strings.Contains(c.String("String"), c.String("Substring")))}
	})
	r.RegisterValue(workflow.TypeReplace, func(c *Call) Outputs {
		s, from := c.String("String"), c.String("From")
		if from == "" {
			return Outputs{workflow.PortOut: value.String(s)}
		}
		return Outputs{workflow.PortOut: value.String(strings.ReplaceAll(s, from, c.String("To")))}
	})
	r.RegisterValue(workflow.TypeFormat, format)
	r.RegisterValue(workflow.TypeStringJoin, func(c *Call) Outputs {
		ports := c.FamilyInputs()
		parts := make([]string, len(ports))
		for i, p := range ports {
			parts[i] = c.String(p)
		}
		return Outputs{workflow.PortOut: value.String(strings.Join(parts, c.String("Separator")))}
	})
	r.RegisterValue(workflow.TypeStringBetween, func(c *Call) Outputs {
		out, found := between(c.String("Source"), c.String("Before"), c.String("After"))
		return Outputs{workflow.PortOut: value.String(out), workflow.PortFound: value.Bool(found)}
	})
	r.RegisterValue(workflow.TypeStringTrim, func(c *Call) Outputs {
		return Outputs{workflow.PortOut: value.String(trim(c.String("String"), c.Int("Mode")))}
	})
	r.RegisterValue(workflow.TypeExtractAfter, func(c *Call) Outputs {
		out, found := extractAfter(c.String("Source"), c.String("Keyword"), int(c.Int("Length")))
		return Outputs{"Result": value.String(out), workflow.PortFound: value.Bool(found)}
	})
	r.RegisterValue(workflow.TypeExtractUntil, func(c *Call) Outputs {
		out, found := extractUntil(c.String("Source"), c.String("Keyword"), c.String("Delimiter"))
		return Outputs{"Result": value.String(out), workflow.PortFound: value.Bool(found)}
	})
}

// format replaces each {} of the template with the next connected Arg.
// Placeholders without an argument are left in place.
func format(c *Call) Outputs {
	tmpl := c.String("Template")
	var b strings.Builder
	args := c.FamilyInputs()
	if len(args) == 0 {
		args = []string{c.spec.InputFamily.Name(c.spec.InputFamily.Start)}
	}
	next := 0
	for {
		i := strings.Index(tmpl, "{}")
		if i < 0 || next >= len(args) {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:i])
		b.WriteString(c.String(args[next]))
		next++
		tmpl = tmpl[i+2:]
	}
	return Outputs{workflow.PortOut: value.String(b.String())}
}

// between returns the text after before and up to after. An empty marker
// matches the start or end of the source.
func between(source, before, after string) (string, bool) {
	rest := source
	if before != "" {
		_, tail, ok := strings.Cut(source, before)
		if !ok {
			return "", false
		}
		rest = tail
	}
	if after == "" {
		return rest, true
	}
	head, _, ok := strings.Cut(rest, after)
	return head, ok
}

func trim(s string, mode int64) string {
	switch mode {
	case 1:
		return strings.TrimLeftFunc(s, unicode.IsSpace)
	case 2:
		return strings.TrimRightFunc(s, unicode.IsSpace)
	case 3:
		return strings.Join(strings.Fields(s), "")
	default:
		return strings.TrimSpace(s)
	}
}

// extractAfter returns up to n runes following keyword, with leading spaces
// skipped. A non-positive n takes the rest of the source.
func extractAfter(source, keyword string, n int) (string, bool) {
	_, tail, ok := strings.Cut(source, keyword)
	if !ok || keyword == "" {
		return "", false
	}
	runes := []rune(strings.TrimLeftFunc(tail, unicode.IsSpace))
	if n > 0 && n < len(runes) {
		runes = runes[:n]
	}
	return string(runes), true
}

// extractUntil returns the text following keyword up to delimiter, trimmed.
func extractUntil(source, keyword, delimiter string) (string, bool) {
	_, tail, ok := strings.Cut(source, keyword)
	if !ok || keyword == "" {
		return "", false
	}
	if delimiter != "" {
		tail, _, _ = strings.Cut(tail, delimiter)
	}
	return strings.TrimSpace(tail), true
}

func registerArrays(r *Registry) {
	r.RegisterValue(workflow.TypeArrayCreate, func(c *Call) Outputs {
		ports := c.FamilyInputs()
		items := make([]value.Value, len(ports))
		for i, p := range ports {
			items[i] = c.Input(p)
		}
		return Outputs{"Array": value.Array(items...)}
	})
	r.RegisterValue(workflow.TypeArrayGet, func(c *Call) Outputs {
		v, _ := c.Input("Array").Index(int(c.Int("Index")))
		return Outputs{workflow.PortValue: v}
	})
	r.RegisterValue(workflow.TypeArrayLength, func(c *Call) Outputs {
		return Outputs{"Length": value.Int(int64(c.Input("Array").Len()))}
	})
	r.RegisterFlow(workflow.TypeArrayPush, func(c *Call) (string, error) {
		name := c.String("Variable")
		arr, _ := c.Variable(name)
		c.SetVariable(name, arr.Append(c.Input(workflow.PortValue)))
		return workflow.PortNext, nil
	})
	r.RegisterFlow(workflow.TypeArrayPop, func(c *Call) (string, error) {
		name := c.String("Variable")
		arr, _ := c.Variable(name)
		rest, last, ok := arr.Pop()
		if ok {
			c.SetVariable(name, rest)
		}
		c.Set(workflow.PortValue, last)
		c.Set(workflow.PortSuccess, value.Bool(ok))
		return workflow.PortNext, nil
	})
	r.RegisterFlow(workflow.TypeArraySet, func(c *Call) (string, error) {
		name := c.String("Variable")
		i := c.Int("Index")
		if i < 0 {
			c.Warn("negative array index", "index", i)
			return workflow.PortNext, nil
		}
		arr, _ := c.Variable(name)
		if i > int64(arr.Len())+int64(c.Limits().MaxLoopIterations) {
			c.Warn("array index too far past the end", "index", i, "length", arr.Len())
			return workflow.PortNext, nil
		}
		c.SetVariable(name, arr.With(int(i), c.Input(workflow.PortValue)))
		return workflow.PortNext, nil
	})
}
