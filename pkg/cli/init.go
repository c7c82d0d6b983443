package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// GraphTemplate names a starting point for a new graph
type GraphTemplate string

const (
	TemplateBasic GraphTemplate = "basic"
	TemplateLoop  GraphTemplate = "loop"
	TemplateHTTP  GraphTemplate = "http"
)

var validGraphName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		description string
		template    string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init <graph-name>",
		Short: "Initialize a new graph",
		Long: `Create a new graph from a template.

The graph is created in ~/.nodeflow/graphs/<graph-name>.yaml

Templates:
  basic  Entry followed by a Print node (default)
  loop   ForLoop summing its indices into a variable
  http   HTTP request whose JSON response is queried and printed

Examples:
  nodeflow init hello
  nodeflow init summer --template loop --description "Sums 0..count"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !isValidGraphName(name) {
				return fmt.Errorf("invalid graph name: %s\n\nGraph names must:\n  - Start with a letter\n  - Contain only letters, numbers, hyphens, and underscores\n  - Be between 1 and 64 characters", name)
			}

			repo, err := graphRepository()
			if err != nil {
				return err
			}
			path := filepath.Join(repo.Dir(), name+".yaml")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("graph already exists: %s\n\nLocation: %s", name, path)
			}

			if template == "" {
				template = string(TemplateBasic)
			}
			g, err := createGraphFromTemplate(name, description, GraphTemplate(template))
			if err != nil {
				return fmt.Errorf("failed to create graph from template: %w", err)
			}
			if err := repo.Save(g); err != nil {
				return fmt.Errorf("failed to save graph: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "✓ Created graph: %s\n", name)
			_, _ = fmt.Fprintf(out, "  Location: %s\n", path)
			_, _ = fmt.Fprintln(out, "\nNext steps:")
			_, _ = fmt.Fprintf(out, "  1. Edit the graph: %s\n", path)
			_, _ = fmt.Fprintf(out, "  2. Validate: nodeflow validate %s\n", name)
			_, _ = fmt.Fprintf(out, "  3. Execute: nodeflow run %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Graph description")
	cmd.Flags().StringVarP(&template, "template", "t", "", "Template to use (basic, loop, http)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing graph")

	return cmd
}

// isValidGraphName validates graph name format
func isValidGraphName(name string) bool {
	return validGraphName.MatchString(name)
}

// graphBuilder adds nodes and wires to a graph, keeping the first error
type graphBuilder struct {
	g   *workflow.Graph
	err error
}

func (b *graphBuilder) node(id string, t workflow.NodeType, inputs map[string]value.Value) *workflow.Node {
	n := &workflow.Node{ID: id, Type: t, Inputs: inputs}
	if b.err == nil {
		b.err = b.g.AddNode(n)
	}
	return n
}

func (b *graphBuilder) variable(name string, t value.DataType, def value.Value) {
	if b.err == nil {
		b.err = b.g.AddVariable(&workflow.Variable{Name: name, Type: t, Default: def})
	}
}

func (b *graphBuilder) wire(from, fromPort, to, toPort string) {
	if b.err != nil {
		return
	}
	_, b.err = b.g.Connect(workflow.Endpoint{Node: from, Port: fromPort}, workflow.Endpoint{Node: to, Port: toPort})
}

// flow wires a Next output to an In input
func (b *graphBuilder) flow(from, to string) {
	b.wire(from, workflow.PortNext, to, workflow.PortIn)
}

func (b *graphBuilder) done() (*workflow.Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.g.Validate(); err != nil {
		return nil, err
	}
	return b.g, nil
}

// createGraphFromTemplate creates a graph from a predefined template
func createGraphFromTemplate(name, description string, tmpl GraphTemplate) (*workflow.Graph, error) {
	switch tmpl {
	case TemplateBasic:
		return createBasicGraph(name, description)
	case TemplateLoop:
		return createLoopGraph(name, description)
	case TemplateHTTP:
		return createHTTPGraph(name, description)
	default:
		return nil, fmt.Errorf("unknown template: %s", tmpl)
	}
}

func newBuilder(name, description, fallback string) (*graphBuilder, error) {
	if description == "" {
		description = fallback
	}
	g, err := workflow.NewGraph(name, description)
	if err != nil {
		return nil, err
	}
	return &graphBuilder{g: g}, nil
}

// createBasicGraph creates Entry followed by a Print node
func createBasicGraph(name, description string) (*workflow.Graph, error) {
	b, err := newBuilder(name, description, "Prints a greeting")
	if err != nil {
		return nil, err
	}
	b.node("entry", workflow.TypeEntry, nil)
	b.node("print", workflow.TypePrint, map[string]value.Value{"String": value.String("Hello from " + name)})
	b.flow("entry", "print")
	return b.done()
}

// createLoopGraph sums the indices of a ForLoop into a variable
func createLoopGraph(name, description string) (*workflow.Graph, error) {
	b, err := newBuilder(name, description, "Sums the numbers below count")
	if err != nil {
		return nil, err
	}
	b.variable("count", value.TypeInteger, value.Int(5))
	b.variable("total", value.TypeInteger, value.Int(0))

	b.node("entry", workflow.TypeEntry, nil)
	b.node("loop", workflow.TypeForLoop, map[string]value.Value{"Start": value.Int(0)})
	count := b.node("count", workflow.TypeGetVariable, nil)
	count.Name = "count"
	read := b.node("read_total", workflow.TypeGetVariable, nil)
	read.Name = "total"
	b.node("add", workflow.TypeAdd, nil)
	set := b.node("set_total", workflow.TypeSetVariable, nil)
	set.Name = "total"
	b.node("format", workflow.TypeFormat, map[string]value.Value{"Template": value.String("total = {}")})
	b.node("print", workflow.TypePrint, nil)

	b.wire("entry", workflow.PortNext, "loop", workflow.PortIn)
	b.wire("count", workflow.PortValue, "loop", "End")
	b.wire("loop", workflow.PortLoop, "set_total", workflow.PortIn)
	b.wire("read_total", workflow.PortValue, "add", "A")
	b.wire("loop", workflow.PortIndex, "add", "B")
	b.wire("add", workflow.PortOut, "set_total", workflow.PortValue)
	b.wire("loop", workflow.PortDone, "print", workflow.PortIn)
	b.wire("read_total", workflow.PortValue, "format", "Arg0")
	b.wire("format", workflow.PortOut, "print", "String")
	return b.done()
}

// createHTTPGraph fetches JSON, queries one field and prints it
func createHTTPGraph(name, description string) (*workflow.Graph, error) {
	b, err := newBuilder(name, description, "Fetches a JSON document and prints one field")
	if err != nil {
		return nil, err
	}
	b.variable("url", value.TypeString, value.String("https://api.github.com/repos/golang/go"))

	b.node("entry", workflow.TypeEntry, nil)
	url := b.node("url", workflow.TypeGetVariable, nil)
	url.Name = "url"
	b.node("fetch", workflow.TypeHTTPRequest, map[string]value.Value{"Method": value.String("GET")})
	b.node("check", workflow.TypeBranch, nil)
	b.node("query", workflow.TypeJSONQuery, map[string]value.Value{"Path": value.String("description")})
	b.node("print", workflow.TypePrint, nil)
	b.node("failed", workflow.TypePrint, map[string]value.Value{"String": value.String("request failed")})

	b.flow("entry", "fetch")
	b.wire("url", workflow.PortValue, "fetch", "URL")
	b.wire("fetch", workflow.PortNext, "check", workflow.PortIn)
	b.wire("fetch", workflow.PortSuccess, "check", "Condition")
	b.wire("check", workflow.PortTrue, "print", workflow.PortIn)
	b.wire("check", workflow.PortFalse, "failed", workflow.PortIn)
	b.wire("fetch", "Response", "query", "JSON")
	b.wire("query", workflow.PortValue, "print", "String")
	return b.done()
}
