package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// RunsListFlags holds the flags for the runs list command
type RunsListFlags struct {
	Limit   int
	Offset  int
	Graph   string
	Status  string
	Since   string
	NoColor bool
}

// RunDetailFlags holds the flags for the runs show command
type RunDetailFlags struct {
	JSON    bool
	NoColor bool
}

// NewRunsCommand creates the runs command and its subcommands
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
		Long:  `List, inspect and delete recorded runs.`,
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsDeleteCommand())

	return cmd
}

func newRunsListCommand() *cobra.Command {
	flags := &RunsListFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Long: `List recorded runs, newest first.

Examples:
  nodeflow runs list
  nodeflow runs list --graph counter --status failed
  nodeflow runs list --since 24h --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(cmd, flags)
		},
	}

	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "Maximum number of runs to display")
	cmd.Flags().IntVar(&flags.Offset, "offset", 0, "Number of runs to skip")
	cmd.Flags().StringVar(&flags.Graph, "graph", "", "Filter by graph name")
	cmd.Flags().StringVar(&flags.Status, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	cmd.Flags().StringVar(&flags.Since, "since", "", "Filter by start date (e.g., 7d, 24h, 2025-01-05)")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "Disable colored output")

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	flags := &RunDetailFlags{}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Display a recorded run",
		Long:  `Display a run with its node activations, error and final variables.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := historyRepository()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			exec, err := repo.Load(types.ExecutionID(args[0]))
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}
			if flags.JSON {
				return printRunJSON(cmd.OutOrStdout(), exec)
			}
			printRunDetail(cmd.OutOrStdout(), exec, flags.NoColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output run details as JSON")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "Disable colored output")

	return cmd
}

func newRunsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete recorded runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := historyRepository()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			for _, id := range args {
				if err := repo.Delete(types.ExecutionID(id)); err != nil {
					return fmt.Errorf("failed to delete run %s: %w", id, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", id)
			}
			return nil
		},
	}
}

var validStatuses = []execution.Status{
	execution.StatusPending,
	execution.StatusRunning,
	execution.StatusCompleted,
	execution.StatusFailed,
	execution.StatusCancelled,
}

// runRunsList handles the runs list command
func runRunsList(cmd *cobra.Command, flags *RunsListFlags) error {
	if flags.Limit < 0 || flags.Offset < 0 {
		return fmt.Errorf("--limit and --offset cannot be negative")
	}

	var status execution.Status
	if flags.Status != "" {
		status = execution.Status(flags.Status)
		valid := false
		for _, vs := range validStatuses {
			if status == vs {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid status: %s (valid: pending, running, completed, failed, cancelled)", flags.Status)
		}
	}

	var since time.Time
	if flags.Since != "" {
		t, err := parseSinceFlag(flags.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		since = t
	}

	repo, err := historyRepository()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	var runs []*execution.Execution
	switch {
	case flags.Graph != "":
		runs, err = repo.ListByGraph(types.GraphID(flags.Graph))
		if err == nil && len(runs) == 0 {
			// Graphs with a document id are recorded under it; match by name.
			runs, err = repo.List(0)
			runs = runsOfGraph(runs, flags.Graph)
		}
	case status != "":
		runs, err = repo.ListByStatus(status)
	default:
		runs, err = repo.List(0)
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	runs = filterRuns(runs, status, since)
	total := len(runs)
	runs = pageRuns(runs, flags.Offset, flags.Limit)

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	printRunsTable(out, runs, flags.NoColor)
	if total > len(runs) {
		_, _ = fmt.Fprintf(out, "\nShowing %d-%d of %d total runs\n", flags.Offset+1, flags.Offset+len(runs), total)
	}
	return nil
}

// filterRuns keeps runs with the given status that started at or after since.
// Zero arguments do not filter.
func filterRuns(runs []*execution.Execution, status execution.Status, since time.Time) []*execution.Execution {
	out := runs[:0:0]
	for _, r := range runs {
		if status != "" && r.Status != status {
			continue
		}
		if !since.IsZero() && r.StartedAt.Before(since) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// runsOfGraph keeps the runs of the named graph
func runsOfGraph(runs []*execution.Execution, name string) []*execution.Execution {
	out := runs[:0:0]
	for _, r := range runs {
		if r.GraphName == name {
			out = append(out, r)
		}
	}
	return out
}

// pageRuns applies offset and limit; a limit of 0 keeps everything after offset
func pageRuns(runs []*execution.Execution, offset, limit int) []*execution.Execution {
	if offset >= len(runs) {
		return nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs
}

// printRunsTable displays runs in a formatted table
func printRunsTable(w io.Writer, runs []*execution.Execution, noColor bool) {
	_, _ = fmt.Fprintf(w, "%-38s %-20s %-12s %-6s %-10s %s\n",
		"ID", "Graph", "Status", "Steps", "Duration", "Started")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 105))

	for _, r := range runs {
		graph := r.GraphName
		if graph == "" {
			graph = string(r.GraphID)
		}
		// Pad before coloring so escape codes do not break alignment.
		status := colorizeStatus(fmt.Sprintf("%-12s", r.Status), noColor)
		_, _ = fmt.Fprintf(w, "%-38s %-20s %s %-6d %-10s %s\n",
			r.ID, truncateString(graph, 20), status, r.Steps, formatDuration(r), r.StartedAt.Format("2006-01-02 15:04"))
	}
}

// printRunDetail displays detailed run information
func printRunDetail(w io.Writer, exec *execution.Execution, noColor bool) {
	_, _ = fmt.Fprintf(w, "Run: %s\n", paint(string(exec.ID), colorCyan, noColor))
	_, _ = fmt.Fprintf(w, "Graph: %s (v%s)\n", exec.GraphName, exec.GraphVersion)
	_, _ = fmt.Fprintf(w, "Status: %s\n", colorizeStatus(string(exec.Status), noColor))
	_, _ = fmt.Fprintf(w, "Started: %s\n", exec.StartedAt.Format("2006-01-02 15:04:05"))
	if !exec.CompletedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Completed: %s\n", exec.CompletedAt.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "Duration: %s\n", formatDurationValue(exec.Duration()))
	}
	_, _ = fmt.Fprintf(w, "Steps: %d  Warnings: %d\n\n", exec.Steps, exec.Warnings)

	if exec.Error != nil {
		_, _ = fmt.Fprintln(w, paint("Error:", colorRed, noColor))
		_, _ = fmt.Fprintf(w, "  Type: %s\n", exec.Error.Type)
		_, _ = fmt.Fprintf(w, "  Message: %s\n", exec.Error.Message)
		if exec.Error.NodeID != "" {
			_, _ = fmt.Fprintf(w, "  Node: %s\n", exec.Error.NodeID)
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(exec.NodeExecutions) > 0 {
		_, _ = fmt.Fprintln(w, "Node Activations:")
		for _, ne := range exec.NodeExecutions {
			port := ne.Port
			if port == "" {
				port = "-"
			}
			_, _ = fmt.Fprintf(w, "  %s %-20s (%-16s) → %-10s %s\n",
				getNodeSymbol(ne.Status, noColor),
				truncateString(string(ne.NodeID), 20),
				truncateString(ne.NodeType, 16),
				port,
				formatDurationValue(ne.Duration()))
			if ne.Error != nil {
				_, _ = fmt.Fprintf(w, "      %s\n", paint("Error: "+ne.Error.Message, colorRed, noColor))
			}
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(exec.Variables) > 0 {
		_, _ = fmt.Fprintln(w, "Variables:")
		for _, name := range sortedNames(exec.Variables) {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", name, formatValue(exec.Variables[name]))
		}
	}
}

// printRunJSON outputs a run as JSON
func printRunJSON(w io.Writer, exec *execution.Execution) error {
	output := map[string]interface{}{
		"id":            exec.ID,
		"graph_id":      exec.GraphID,
		"graph_name":    exec.GraphName,
		"graph_version": exec.GraphVersion,
		"status":        exec.Status,
		"started_at":    exec.StartedAt,
		"completed_at":  exec.CompletedAt,
		"duration_ms":   exec.Duration().Milliseconds(),
		"steps":         exec.Steps,
		"warnings":      exec.Warnings,
	}

	if exec.Error != nil {
		output["error"] = map[string]interface{}{
			"type":    exec.Error.Type,
			"message": exec.Error.Message,
			"node_id": exec.Error.NodeID,
			"context": exec.Error.Context,
		}
	}

	if len(exec.NodeExecutions) > 0 {
		nodeExecs := make([]map[string]interface{}, len(exec.NodeExecutions))
		for i, ne := range exec.NodeExecutions {
			nodeExecs[i] = map[string]interface{}{
				"id":           ne.ID,
				"node_id":      ne.NodeID,
				"node_type":    ne.NodeType,
				"status":       ne.Status,
				"started_at":   ne.StartedAt,
				"completed_at": ne.CompletedAt,
				"duration_ms":  ne.Duration().Milliseconds(),
				"port":         ne.Port,
				"inputs":       ne.Inputs,
				"outputs":      ne.Outputs,
			}
			if ne.Error != nil {
				nodeExecs[i]["error"] = map[string]interface{}{
					"type":    ne.Error.Type,
					"message": ne.Error.Message,
					"context": ne.Error.Context,
				}
			}
		}
		output["node_executions"] = nodeExecs
	}

	if len(exec.Variables) > 0 {
		output["variables"] = exec.Variables
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	_, _ = fmt.Fprintln(w, string(data))
	return nil
}

// Helper functions

// parseSinceFlag parses the --since flag into a time.Time
// Supports formats: "7d" (7 days), "24h" (24 hours), "2025-01-05" (date)
func parseSinceFlag(since string) (time.Time, error) {
	now := time.Now()

	if strings.HasSuffix(since, "d") {
		var d int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &d); err == nil {
			return now.AddDate(0, 0, -d), nil
		}
	}
	if strings.HasSuffix(since, "h") {
		var h int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &h); err == nil {
			return now.Add(-time.Duration(h) * time.Hour), nil
		}
	}

	layouts := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, since); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format (use: 7d, 24h, or 2025-01-05)")
}

// colorizeStatus returns a colored status string
func colorizeStatus(status string, noColor bool) string {
	switch execution.Status(strings.TrimSpace(status)) {
	case execution.StatusCompleted:
		return paint(status, colorGreen, noColor)
	case execution.StatusFailed:
		return paint(status, colorRed, noColor)
	case execution.StatusRunning:
		return paint(status, colorYellow, noColor)
	case execution.StatusPending, execution.StatusCancelled:
		return paint(status, colorGray, noColor)
	default:
		return status
	}
}

// getNodeSymbol returns a status symbol for a node activation
func getNodeSymbol(status execution.NodeStatus, noColor bool) string {
	switch status {
	case execution.NodeStatusCompleted:
		return paint("✓", colorGreen, noColor)
	case execution.NodeStatusFailed:
		return paint("✗", colorRed, noColor)
	case execution.NodeStatusRunning:
		return paint("●", colorYellow, noColor)
	case execution.NodeStatusSkipped, execution.NodeStatusPending:
		return paint("○", colorGray, noColor)
	default:
		return " "
	}
}

// formatDuration returns formatted duration for a run
func formatDuration(exec *execution.Execution) string {
	if exec.CompletedAt.IsZero() {
		return "-"
	}
	return formatDurationValue(exec.Duration())
}

// formatDurationValue formats a duration value
func formatDurationValue(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}

// formatValue renders a value for display, quoting strings
func formatValue(v value.Value) string {
	var s string
	switch v.Kind() {
	case value.KindString:
		str := v.ToString()
		if len(str) > 100 {
			return fmt.Sprintf("%q...", str[:97])
		}
		return fmt.Sprintf("%q", str)
	case value.KindNull:
		return "null"
	default:
		s = v.JSON()
	}
	if len(s) > 100 {
		return s[:97] + "..."
	}
	return s
}

func sortedNames(vars map[string]value.Value) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
