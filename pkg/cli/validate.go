package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Validate a graph",
		Long: `Validate a graph document for correctness.

This checks:
- Document structure against the graph schema
- Known node types and declared ports
- Exactly one enabled Entry node
- Connection directions and data type compatibility
- At most one wire into each input and out of each flow output
- Variable declarations and references

Flow nodes that cannot be reached from Entry and credential-looking literals
are reported as warnings.

Examples:
  nodeflow validate counter
  nodeflow validate ./graphs/click-button.yaml --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateGraph(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed validation information")

	return cmd
}

func validateGraph(out, errOut io.Writer, ref string, verbose bool) error {
	data, path, err := graphSource(ref)
	if err != nil {
		return err
	}

	if err := workflow.ValidateAgainstSchema(data); err != nil {
		_, _ = fmt.Fprintln(errOut, "✗ Document does not match the graph schema")
		printProblems(errOut, err)
		return err
	}
	_, _ = fmt.Fprintln(out, "✓ Document matches the graph schema")

	var g *workflow.Graph
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		g, err = workflow.ParseJSON(data)
	} else {
		g, err = workflow.Decode(data)
	}
	if err != nil {
		_, _ = fmt.Fprintln(errOut, "✗ Failed to decode graph")
		if verbose {
			_, _ = fmt.Fprintf(errOut, "  Error: %v\n", err)
		}
		return err
	}

	if err := g.Validate(); err != nil {
		_, _ = fmt.Fprintln(errOut, "✗ Graph structure invalid")
		printProblems(errOut, err)
		return err
	}
	_, _ = fmt.Fprintln(out, "✓ Graph structure valid")

	flowNodes := 0
	for _, n := range g.Nodes {
		if n.IsFlow() {
			flowNodes++
		}
	}
	_, _ = fmt.Fprintf(out, "✓ %d nodes (%d flow), %d connections, %d variables\n",
		len(g.Nodes), flowNodes, len(g.Connections), len(g.Variables))

	if unreachable := unreachableFlowNodes(g); len(unreachable) > 0 {
		_, _ = fmt.Fprintf(out, "⚠ %d flow nodes are not reachable from Entry\n", len(unreachable))
		if verbose {
			for _, id := range unreachable {
				_, _ = fmt.Fprintf(out, "  - %s\n", id)
			}
		}
	}

	if warnings := workflow.ScanForCredentials(g); len(warnings) > 0 {
		_, _ = fmt.Fprintf(out, "⚠ %d literals look like credentials (use 'nodeflow export' to share)\n", len(warnings))
		if verbose {
			for _, w := range warnings {
				_, _ = fmt.Fprintf(out, "  - [%s] %s: %s\n", w.Severity, w.Location, w.Message)
			}
		}
	}

	_, _ = fmt.Fprintln(out, "\n✓ Graph validation passed")
	_, _ = fmt.Fprintf(out, "Graph '%s' is valid and ready to run\n", g.Name)
	return nil
}

func printProblems(w io.Writer, err error) {
	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		for _, p := range verr.Problems {
			_, _ = fmt.Fprintf(w, "  - %s\n", p)
		}
		return
	}
	_, _ = fmt.Fprintf(w, "  Error: %v\n", err)
}

// unreachableFlowNodes lists enabled flow nodes no flow path from the
// Entry node leads to
func unreachableFlowNodes(g *workflow.Graph) []string {
	entry, err := g.EntryNode()
	if err != nil {
		return nil
	}
	idx := workflow.NewIndex(g)

	reached := map[string]bool{entry.ID: true}
	queue := []*workflow.Node{entry}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		_, outputs := g.Ports(n)
		for _, p := range outputs {
			if p.Type != value.TypeFlow {
				continue
			}
			for _, target := range idx.Targets(n.ID, p.Name) {
				if reached[target.Node] {
					continue
				}
				reached[target.Node] = true
				if next, ok := idx.Node(target.Node); ok {
					queue = append(queue, next)
				}
			}
		}
	}

	var out []string
	for _, n := range g.Nodes {
		if n.IsFlow() && n.Enabled() && !reached[n.ID] && n.Type != workflow.TypeNotes {
			out = append(out, n.ID)
		}
	}
	sort.Strings(out)
	return out
}
