package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/storage"
)

// auditEventType categorizes entries of a run's audit trail
type auditEventType string

const (
	auditRunStarted    auditEventType = "run_started"
	auditRunCompleted  auditEventType = "run_completed"
	auditRunFailed     auditEventType = "run_failed"
	auditRunCancelled  auditEventType = "run_cancelled"
	auditNodeStarted   auditEventType = "node_started"
	auditNodeCompleted auditEventType = "node_completed"
	auditNodeFailed    auditEventType = "node_failed"
	auditNodeSkipped   auditEventType = "node_skipped"
	auditVariableSet   auditEventType = "variable_set"
)

// auditEvent is one line of the audit trail
type auditEvent struct {
	Type      auditEventType
	Timestamp time.Time
	NodeID    types.NodeID
	NodeType  string
	Message   string
	Error     string
	Duration  time.Duration
}

// buildAuditTrail orders the recorded facts of a run by time
func buildAuditTrail(exec *execution.Execution, snapshots []execution.VariableSnapshot) []auditEvent {
	events := []auditEvent{{
		Type:      auditRunStarted,
		Timestamp: exec.StartedAt,
		Message:   fmt.Sprintf("Run of %s started", exec.GraphName),
	}}

	for _, ne := range exec.NodeExecutions {
		events = append(events, auditEvent{
			Type:      auditNodeStarted,
			Timestamp: ne.StartedAt,
			NodeID:    ne.NodeID,
			NodeType:  ne.NodeType,
			Message:   fmt.Sprintf("%s activated", ne.NodeID),
		})
		if ne.CompletedAt.IsZero() {
			continue
		}
		end := auditEvent{
			Timestamp: ne.CompletedAt,
			NodeID:    ne.NodeID,
			NodeType:  ne.NodeType,
			Duration:  ne.Duration(),
		}
		switch ne.Status {
		case execution.NodeStatusFailed:
			end.Type = auditNodeFailed
			end.Message = fmt.Sprintf("%s failed", ne.NodeID)
			if ne.Error != nil {
				end.Error = ne.Error.Message
			}
		case execution.NodeStatusSkipped:
			end.Type = auditNodeSkipped
			end.Message = fmt.Sprintf("%s skipped (disabled)", ne.NodeID)
		default:
			end.Type = auditNodeCompleted
			end.Message = fmt.Sprintf("%s completed", ne.NodeID)
		}
		if ne.Port != "" {
			end.Message += " → " + ne.Port
		}
		events = append(events, end)
	}

	for _, s := range snapshots {
		events = append(events, auditEvent{
			Type:      auditVariableSet,
			Timestamp: s.Timestamp,
			Message:   fmt.Sprintf("%s: %s → %s", s.VariableName, formatValue(s.OldValue), formatValue(s.NewValue)),
		})
	}

	if exec.Status.IsTerminal() && !exec.CompletedAt.IsZero() {
		end := auditEvent{Timestamp: exec.CompletedAt, Duration: exec.Duration()}
		switch exec.Status {
		case execution.StatusFailed:
			end.Type = auditRunFailed
			end.Message = "Run failed"
		case execution.StatusCancelled:
			end.Type = auditRunCancelled
			end.Message = "Run stopped"
		default:
			end.Type = auditRunCompleted
			end.Message = "Run completed"
		}
		if exec.Error != nil {
			end.Error = exec.Error.Message
		}
		events = append(events, end)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// NewLogsCommand creates the logs command
func NewLogsCommand() *cobra.Command {
	var (
		follow       bool
		eventType    string
		tailCount    int
		noColor      bool
		showVariable bool
	)

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Display the audit trail of a run",
		Long: `Display the recorded node activations of a run in chronological order.

Examples:
  # View the trail of a run
  nodeflow logs 6f1c...

  # Include variable changes
  nodeflow logs 6f1c... --show-variables

  # Show only failures, last 20 entries
  nodeflow logs 6f1c... --type error --tail 20

  # Follow a run still in progress
  nodeflow logs 6f1c... --follow

Event Types:
  run_started, run_completed, run_failed, run_cancelled,
  node_started, node_completed, node_failed, node_skipped, variable_set`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := types.ExecutionID(args[0])

			repo, err := historyRepository()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			exec, err := repo.Load(id)
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}
			if follow && exec.Status.IsTerminal() {
				return fmt.Errorf("cannot follow finished run (status: %s)\nUse without --follow to view its trail", exec.Status)
			}

			filter := trailFilter{types: parseEventTypeFilter(eventType), variables: showVariable}
			events, err := loadTrail(repo, exec, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTrailHeader(out, exec, noColor)
			shown := events
			if tailCount > 0 && tailCount < len(shown) {
				shown = shown[len(shown)-tailCount:]
			}
			for _, ev := range shown {
				displayEvent(out, ev, exec.StartedAt, noColor)
			}

			if !follow {
				if !exec.CompletedAt.IsZero() {
					_, _ = fmt.Fprintf(out, "\nCompleted in %s\n", exec.Duration().Round(time.Millisecond))
				}
				return nil
			}
			return followTrail(cmd, repo, exec, filter, len(events), noColor)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow a run still in progress")
	cmd.Flags().StringVar(&eventType, "type", "", "Filter by event type (error, info, node_started, ...)")
	cmd.Flags().IntVar(&tailCount, "tail", 0, "Show last N entries (0 = show all)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&showVariable, "show-variables", false, "Include variable changes")

	return cmd
}

type trailFilter struct {
	types     []auditEventType
	variables bool
}

func (f trailFilter) apply(events []auditEvent) []auditEvent {
	out := events[:0:0]
	for _, ev := range events {
		if ev.Type == auditVariableSet && !f.variables {
			continue
		}
		if len(f.types) > 0 && !containsType(f.types, ev.Type) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func containsType(ts []auditEventType, t auditEventType) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

func loadTrail(repo *storage.SQLiteExecutionRepository, exec *execution.Execution, filter trailFilter) ([]auditEvent, error) {
	var snapshots []execution.VariableSnapshot
	if filter.variables {
		var err error
		snapshots, err = repo.LoadVariableSnapshots(exec.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load variable changes: %w", err)
		}
	}
	return filter.apply(buildAuditTrail(exec, snapshots)), nil
}

// followTrail polls the history for new entries until the run finishes
func followTrail(cmd *cobra.Command, repo *storage.SQLiteExecutionRepository, exec *execution.Execution, filter trailFilter, seen int, noColor bool) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "\n%s\n", paint("[waiting for more events...]", colorGray, noColor))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			updated, err := repo.Load(exec.ID)
			if err != nil {
				return fmt.Errorf("failed to reload run: %w", err)
			}
			events, err := loadTrail(repo, updated, filter)
			if err != nil {
				return err
			}
			for i := seen; i < len(events); i++ {
				displayEvent(out, events[i], updated.StartedAt, noColor)
			}
			if len(events) > seen {
				seen = len(events)
			}
			if updated.Status.IsTerminal() {
				_, _ = fmt.Fprintf(out, "\nRun finished with status: %s\n", colorizeStatus(string(updated.Status), noColor))
				return nil
			}
		}
	}
}

func printTrailHeader(w io.Writer, exec *execution.Execution, noColor bool) {
	_, _ = fmt.Fprintf(w, "Run Logs: %s\n", exec.ID)
	_, _ = fmt.Fprintf(w, "Graph: %s (version %s)\n", exec.GraphName, exec.GraphVersion)
	_, _ = fmt.Fprintf(w, "Status: %s\n", colorizeStatus(string(exec.Status), noColor))
	_, _ = fmt.Fprintf(w, "Summary: %d activations, %d warnings\n\n", len(exec.NodeExecutions), exec.Warnings)
}

// displayEvent formats and displays a single audit event
func displayEvent(w io.Writer, event auditEvent, startTime time.Time, noColor bool) {
	timestamp := event.Timestamp.Format("15:04:05.000")
	offset := fmt.Sprintf("+%.3fs", event.Timestamp.Sub(startTime).Seconds())

	line := getEventIcon(event.Type) + " " + event.Message
	_, _ = fmt.Fprintf(w, "%s  %8s  %s", timestamp, offset, paint(line, getEventColor(event.Type), noColor))
	if event.Duration > 0 {
		_, _ = fmt.Fprintf(w, " %s", paint(fmt.Sprintf("(%.3fs)", event.Duration.Seconds()), colorGray, noColor))
	}
	_, _ = fmt.Fprintln(w)

	if event.NodeType != "" && event.Type == auditNodeStarted {
		_, _ = fmt.Fprintf(w, "           %s\n", paint("Node: "+string(event.NodeID)+" ("+event.NodeType+")", colorGray, noColor))
	}
	if event.Error != "" {
		_, _ = fmt.Fprintf(w, "           %s\n", paint("Error: "+event.Error, colorRed, noColor))
	}
}

// getEventIcon returns an icon for the event type
func getEventIcon(eventType auditEventType) string {
	switch eventType {
	case auditRunStarted, auditNodeStarted:
		return "▶"
	case auditRunCompleted, auditNodeCompleted:
		return "✓"
	case auditRunFailed, auditNodeFailed:
		return "✗"
	case auditRunCancelled:
		return "⊗"
	case auditNodeSkipped:
		return "⊘"
	case auditVariableSet:
		return "≔"
	default:
		return "◆"
	}
}

// getEventColor returns the color code for an event type
func getEventColor(eventType auditEventType) string {
	switch eventType {
	case auditRunCompleted, auditNodeCompleted:
		return colorGreen
	case auditRunFailed, auditNodeFailed:
		return colorRed
	case auditRunCancelled, auditNodeSkipped:
		return colorYellow
	case auditVariableSet:
		return colorCyan
	default:
		return colorGray
	}
}

// parseEventTypeFilter parses a comma-separated event type filter
func parseEventTypeFilter(filter string) []auditEventType {
	if filter == "" {
		return nil
	}

	parts := strings.Split(filter, ",")
	eventTypes := make([]auditEventType, 0, len(parts))
	for _, part := range parts {
		switch p := strings.ToLower(strings.TrimSpace(part)); p {
		case "error", "errors":
			eventTypes = append(eventTypes, auditNodeFailed, auditRunFailed)
		case "info":
			eventTypes = append(eventTypes, auditRunStarted, auditRunCompleted, auditNodeStarted, auditNodeCompleted)
		case "warning", "warnings":
			eventTypes = append(eventTypes, auditNodeSkipped, auditRunCancelled)
		default:
			eventTypes = append(eventTypes, auditEventType(p))
		}
	}
	return eventTypes
}
