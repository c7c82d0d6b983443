package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var graphSchema []byte

// ValidationError collects every problem found in a graph.
type ValidationError struct {
	Problems []string
}

// Error joins the problems into one message
func (e *ValidationError) Error() string {
	return "invalid graph: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks all graph invariants. It returns a *ValidationError listing
// every violation, or nil.
func (g *Graph) Validate() error {
	verr := &ValidationError{}

	// Node IDs are unique and every node matches its catalog entry
	nodes := make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			verr.add("found node with empty node ID")
			continue
		}
		if _, dup := nodes[n.ID]; dup {
			verr.add("duplicate node ID found: %s", n.ID)
		}
		nodes[n.ID] = n
		if err := n.Validate(); err != nil {
			verr.add("%v", err)
		}
	}

	// Exactly one enabled Entry node
	if _, err := g.EntryNode(); err != nil {
		verr.add("%v", err)
	}

	// Variable names are identifiers and unique
	variables := make(map[string]bool, len(g.Variables))
	for _, v := range g.Variables {
		if err := v.Validate(); err != nil {
			verr.add("%v", err)
			continue
		}
		if variables[v.Name] {
			verr.add("duplicate variable name found: %s", v.Name)
		}
		variables[v.Name] = true
	}
	for _, n := range g.Nodes {
		if (n.Type == TypeGetVariable || n.Type == TypeSetVariable) && n.Name != "" && !variables[n.Name] {
			verr.add("node %s: undefined variable: %s", n.ID, n.Name)
		}
	}

	// Connections reference declared ports in the right direction
	drivenInputs := make(map[Endpoint]bool)
	drivenFlows := make(map[Endpoint]bool)
	for _, c := range g.Connections {
		if err := c.Validate(); err != nil {
			verr.add("%v", err)
			continue
		}
		src, okSrc := nodes[c.From.Node]
		dst, okDst := nodes[c.To.Node]
		if !okSrc {
			verr.add("connection references invalid node (from): %s", c.From.Node)
		}
		if !okDst {
			verr.add("connection references invalid node (to): %s", c.To.Node)
		}
		if !okSrc || !okDst {
			continue
		}
		out, err := outputPort(src, c.From.Port)
		if err != nil {
			verr.add("connection %s: %v", c, err)
			continue
		}
		in, err := inputPort(dst, c.To.Port)
		if err != nil {
			verr.add("connection %s: %v", c, err)
			continue
		}
		if !out.Type.Compatible(in.Type) {
			verr.add("connection %s: incompatible types %s and %s", c, out.Type, in.Type)
		}
		if in.Type != value.TypeFlow {
			if drivenInputs[c.To] {
				verr.add("input %s has more than one connection", c.To)
			}
			drivenInputs[c.To] = true
		}
		if out.Type == value.TypeFlow {
			if drivenFlows[c.From] {
				verr.add("flow output %s has more than one connection", c.From)
			}
			drivenFlows[c.From] = true
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// ValidateAgainstSchema validates a YAML or JSON graph document against the
// embedded JSON schema
func ValidateAgainstSchema(doc []byte) error {
	if len(doc) == 0 {
		return errors.New("empty document")
	}

	// YAML is a superset of JSON, so one decoder covers both formats
	var data interface{}
	if err := yaml.Unmarshal(doc, &data); err != nil {
		return fmt.Errorf("failed to decode document for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(graphSchema)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		verr := &ValidationError{}
		for _, desc := range result.Errors() {
			verr.add("%s: %s", desc.Field(), desc.Description())
		}
		return verr
	}

	return nil
}
