package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/workflow"
)

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <graph>",
		Short: "Export a graph with credentials stripped for sharing",
		Long: `Export a graph to YAML with credential-looking literals removed.

Literals that look like API keys, tokens, private keys or URLs with embedded
passwords, and defaults of variables with sensitive names, are replaced by
<CREDENTIAL_REQUIRED>. Recipients fill them in before running the graph.

Examples:
  # Export to stdout
  nodeflow export counter

  # Export to a file
  nodeflow export counter --output shared-counter.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(args[0])
			if err != nil {
				return fmt.Errorf("failed to load graph: %w", err)
			}

			exported, warnings, err := workflow.ExportWithWarnings(g)
			if err != nil {
				return fmt.Errorf("failed to export graph: %w", err)
			}

			for _, w := range warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "⚠ [%s] %s: %s\n", w.Severity, w.Location, w.Message)
			}

			if outputPath == "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), string(exported))
				return nil
			}
			if err := os.WriteFile(outputPath, exported, 0644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Graph exported successfully to: %s\n", outputPath)
			if len(warnings) > 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %d credential-looking values were replaced\n", len(warnings))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")

	return cmd
}
