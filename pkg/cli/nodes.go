package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// NewNodesCommand creates the nodes command
func NewNodesCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "nodes [category|type]",
		Short: "List the available node types",
		Long: `List the node catalog.

With no argument every node type is listed by category. A category name
limits the list; a node type name prints that node's ports.

Examples:
  nodeflow nodes
  nodeflow nodes Math
  nodeflow nodes ForLoop`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				printCatalog(out, workflow.Catalog(), verbose)
				return nil
			}

			if spec, ok := workflow.Lookup(workflow.NodeType(args[0])); ok {
				printNodeSpec(out, spec)
				return nil
			}

			var specs []*workflow.NodeSpec
			for _, spec := range workflow.Catalog() {
				if strings.EqualFold(spec.Category, args[0]) {
					specs = append(specs, spec)
				}
			}
			if len(specs) == 0 {
				return fmt.Errorf("no node type or category named %q", args[0])
			}
			printCatalog(out, specs, verbose)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the ports of every node")

	return cmd
}

func printCatalog(w io.Writer, specs []*workflow.NodeSpec, verbose bool) {
	if verbose {
		for i, spec := range specs {
			if i > 0 {
				_, _ = fmt.Fprintln(w)
			}
			printNodeSpec(w, spec)
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	category := ""
	for _, spec := range specs {
		if spec.Category != category {
			if category != "" {
				_, _ = fmt.Fprintln(tw)
			}
			category = spec.Category
			_, _ = fmt.Fprintf(tw, "%s\n", category)
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", spec.Type, spec.Description)
	}
	_ = tw.Flush()
}

func printNodeSpec(w io.Writer, spec *workflow.NodeSpec) {
	_, _ = fmt.Fprintf(w, "%s (%s)\n", spec.Type, spec.Category)
	if spec.Description != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", spec.Description)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	printPorts(tw, "Inputs", spec.Inputs, spec.InputFamily)
	printPorts(tw, "Outputs", spec.Outputs, spec.OutputFamily)
	_ = tw.Flush()
}

func printPorts(w io.Writer, title string, ports []workflow.PortSpec, family *workflow.PortFamily) {
	if len(ports) == 0 && family == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "  %s:\n", title)
	for _, p := range ports {
		_, _ = fmt.Fprintf(w, "    %s\t%s\t%s\n", p.Name, p.Type, portDefault(p.Type, p.Default))
	}
	if family != nil {
		name := fmt.Sprintf("%s%d, %s%d, ...", family.Prefix, family.Start, family.Prefix, family.Start+1)
		_, _ = fmt.Fprintf(w, "    %s\t%s\t%s\n", name, family.Type, portDefault(family.Type, family.Default))
	}
}

func portDefault(t value.DataType, def value.Value) string {
	if t == value.TypeFlow || def.IsNull() {
		return ""
	}
	return "= " + formatValue(def)
}
