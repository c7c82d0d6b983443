package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/domain/types"
)

// NewVariablesCommand creates the variables command
func NewVariablesCommand() *cobra.Command {
	var clearDefaults bool

	cmd := &cobra.Command{
		Use:   "variables [graph]",
		Short: "Show or clear persisted variable defaults",
		Long: `Show the variable defaults stored by runs with --persist-vars.

With no argument, lists the graphs that have stored defaults.

Examples:
  nodeflow variables
  nodeflow variables counter
  nodeflow variables counter --clear`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := historyRepository()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				graphs, err := repo.ListDefaultGraphs()
				if err != nil {
					return fmt.Errorf("failed to list stored defaults: %w", err)
				}
				if len(graphs) == 0 {
					_, _ = fmt.Fprintln(out, "No stored variable defaults")
					return nil
				}
				for _, g := range graphs {
					_, _ = fmt.Fprintln(out, g)
				}
				return nil
			}

			graph := types.GraphID(args[0])
			if clearDefaults {
				if err := repo.ClearDefaults(graph); err != nil {
					return fmt.Errorf("failed to clear defaults: %w", err)
				}
				_, _ = fmt.Fprintf(out, "✓ Cleared stored defaults of %s\n", graph)
				return nil
			}

			defaults, err := repo.LoadDefaults(graph)
			if err != nil {
				return fmt.Errorf("failed to load defaults: %w", err)
			}
			if len(defaults) == 0 {
				_, _ = fmt.Fprintf(out, "No stored defaults for %s\n", graph)
				return nil
			}
			for _, name := range sortedNames(defaults) {
				_, _ = fmt.Fprintf(out, "%s = %s\n", name, formatValue(defaults[name]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearDefaults, "clear", false, "Forget the stored defaults")

	return cmd
}
