package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

const credentialPlaceholder = "<CREDENTIAL_REQUIRED>"

// placeholder is one literal left blank by export
type placeholder struct {
	location string
	set      func(value.Value)
}

// NewImportCommand creates the import command
func NewImportCommand() *cobra.Command {
	var (
		name       string
		force      bool
		noInteract bool
	)

	cmd := &cobra.Command{
		Use:   "import <graph-file>",
		Short: "Import a graph from a file",
		Long: `Import a graph from a YAML or JSON file and validate it.

This command:
- Loads and validates the graph file
- Detects <CREDENTIAL_REQUIRED> placeholders left by 'nodeflow export'
  and prompts for their values
- Saves the graph to the graphs directory

The imported graph is saved in ~/.nodeflow/graphs/<graph-name>.yaml

Examples:
  nodeflow import ./shared-counter.yaml
  nodeflow import shared.yaml --name my-counter
  nodeflow import shared.yaml --no-interact`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			data, err := os.ReadFile(file)
			if os.IsNotExist(err) {
				return fmt.Errorf("graph file not found: %s", file)
			}
			if err != nil {
				return fmt.Errorf("failed to read graph file: %w", err)
			}

			var g *workflow.Graph
			if strings.EqualFold(filepath.Ext(file), ".json") {
				g, err = workflow.ParseJSON(data)
			} else {
				g, err = workflow.Parse(data)
			}
			if err != nil {
				return fmt.Errorf("invalid graph: %w", err)
			}
			if name != "" {
				g.Name = name
			}
			if !isValidGraphName(g.Name) {
				return fmt.Errorf("invalid graph name %q (use --name to rename)", g.Name)
			}

			repo, err := graphRepository()
			if err != nil {
				return err
			}
			path := filepath.Join(repo.Dir(), g.Name+".yaml")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("graph already exists: %s (use --force to overwrite)", g.Name)
			}

			out := cmd.OutOrStdout()
			if holes := findPlaceholders(g); len(holes) > 0 {
				_, _ = fmt.Fprintf(out, "⚠ %d values must be filled in:\n", len(holes))
				if noInteract {
					for _, h := range holes {
						_, _ = fmt.Fprintf(out, "  - %s\n", h.location)
					}
				} else if err := fillPlaceholders(cmd.InOrStdin(), out, holes); err != nil {
					return err
				}
			}

			if err := repo.Save(g); err != nil {
				return fmt.Errorf("failed to save graph: %w", err)
			}
			_, _ = fmt.Fprintf(out, "✓ Imported graph: %s\n", g.Name)
			_, _ = fmt.Fprintf(out, "  Location: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Save the graph under this name")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing graph")
	cmd.Flags().BoolVar(&noInteract, "no-interact", false, "Skip prompts for placeholder values")

	return cmd
}

// findPlaceholders lists the variable defaults and node literals holding
// the export placeholder
func findPlaceholders(g *workflow.Graph) []placeholder {
	var holes []placeholder
	for _, v := range g.Variables {
		if isPlaceholder(v.Default) {
			v := v
			holes = append(holes, placeholder{
				location: "variable " + v.Name,
				set:      func(x value.Value) { v.Default = v.Assign(x) },
			})
		}
	}
	for _, n := range g.Nodes {
		ports := make([]string, 0, len(n.Inputs))
		for port, lit := range n.Inputs {
			if isPlaceholder(lit) {
				ports = append(ports, port)
			}
		}
		sort.Strings(ports)
		for _, port := range ports {
			n, port := n, port
			holes = append(holes, placeholder{
				location: fmt.Sprintf("node %s input %s", n.ID, port),
				set:      func(x value.Value) { n.Inputs[port] = x },
			})
		}
	}
	return holes
}

func isPlaceholder(v value.Value) bool {
	return v.Kind() == value.KindString && v.ToString() == credentialPlaceholder
}

// fillPlaceholders prompts for each value; an empty answer keeps the placeholder
func fillPlaceholders(in io.Reader, out io.Writer, holes []placeholder) error {
	reader := bufio.NewReader(in)
	for _, h := range holes {
		_, _ = fmt.Fprintf(out, "  %s: ", h.location)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read value: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			h.set(value.String(line))
		}
		if err == io.EOF {
			_, _ = fmt.Fprintln(out)
			return nil
		}
	}
	return nil
}
