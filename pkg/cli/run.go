package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	pkgexec "github.com/dshills/nodeflow/pkg/execution"
	"github.com/dshills/nodeflow/pkg/tui"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// RunFlags holds the flags of the run command
type RunFlags struct {
	Inputs      []string
	Screen      string
	Timeout     time.Duration
	PersistVars bool
	OutputJSON  bool
	Watch       bool
	Monitor     bool
	NoColor     bool
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	flags := &RunFlags{}

	cmd := &cobra.Command{
		Use:   "run <graph>",
		Short: "Execute a graph",
		Long: `Execute a graph from its Entry node.

The graph is a name in ~/.nodeflow/graphs or a path to a YAML or JSON file.
Events are streamed while the graph runs; Ctrl-C stops the run at the next node.

Examples:
  # Run a stored graph
  nodeflow run counter

  # Override variables
  nodeflow run counter --input x=5 --input label=done

  # Serve a screenshot as the display for image nodes
  nodeflow run ./click-button.yaml --screen desktop.png

  # Keep final variable values as the next run's defaults
  nodeflow run counter --persist-vars

  # Follow the run on a full-screen monitor
  nodeflow run counter --monitor`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("persist-vars") {
				flags.PersistVars = settings.Engine.PersistVariables
			}
			return runGraph(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.Inputs, "input", "i", nil, "Variable override as name=value (repeatable)")
	cmd.Flags().StringVar(&flags.Screen, "screen", "", "PNG image served as the display")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 0, "Stop the run with a timeout error after this duration")
	cmd.Flags().BoolVar(&flags.PersistVars, "persist-vars", false, "Load and store variable defaults across runs")
	cmd.Flags().BoolVar(&flags.OutputJSON, "output-json", false, "Output the result as JSON")
	cmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "Show every node activation")
	cmd.Flags().BoolVar(&flags.Monitor, "monitor", false, "Follow the run on a full-screen monitor")
	cmd.MarkFlagsMutuallyExclusive("monitor", "output-json")
	cmd.MarkFlagsMutuallyExclusive("monitor", "watch")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "Disable colored output")

	return cmd
}

// runResult is the JSON form of a finished run
type runResult struct {
	ExecutionID string                 `json:"execution_id"`
	Graph       string                 `json:"graph"`
	Status      string                 `json:"status"`
	Steps       int                    `json:"steps"`
	Warnings    int                    `json:"warnings"`
	DurationMS  int64                  `json:"duration_ms"`
	Variables   map[string]value.Value `json:"variables,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

func runGraph(cmd *cobra.Command, ref string, flags *RunFlags) error {
	g, err := loadGraph(ref)
	if err != nil {
		return err
	}

	inputs, err := parseInputs(flags.Inputs)
	if err != nil {
		return err
	}

	engine, err := newEngine(cmd.Context(), engineSetup{
		config: settings,
		screen: flags.Screen,
		stdin:  cmd.InOrStdin(),
		stdout: cmd.OutOrStdout(),
		logger: slog.Default(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	run, err := engine.Start(cmd.Context(), g, pkgexec.RunOptions{
		Inputs:           inputs,
		PersistVariables: flags.PersistVars,
		Timeout:          flags.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		select {
		case <-interrupts:
			run.Stop()
		case <-run.Done():
		}
	}()

	out := cmd.OutOrStdout()
	if flags.Monitor {
		// Without a terminal the run falls back to the event stream
		if err := tui.Watch(cmd.Context(), run, g, cmd.InOrStdin()); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "⚠ monitor unavailable: %v\n", err)
		}
	}
	if !flags.OutputJSON {
		_, _ = fmt.Fprintf(out, "✓ Started run %s of %s\n", run.ID, g.Name)
	}
	for ev := range run.Events() {
		if !flags.OutputJSON {
			printEvent(out, ev, flags.Watch, flags.NoColor)
		}
	}

	exec, runErr := run.Wait()
	if flags.OutputJSON {
		if err := writeRunResult(out, g, exec); err != nil {
			return err
		}
	} else {
		printRunSummary(out, exec, flags.NoColor)
	}

	if runErr != nil && !errors.Is(runErr, pkgexec.ErrStopped) {
		return runErr
	}
	return nil
}

// parseInputs turns name=value pairs into variable overrides. Values that
// parse as JSON keep their JSON kind; anything else is a string.
func parseInputs(pairs []string) (map[string]value.Value, error) {
	inputs := make(map[string]value.Value, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid input %q: expected name=value", pair)
		}
		if !workflow.ValidVariableName(name) {
			return nil, fmt.Errorf("invalid input %q: %q is not a variable name", pair, name)
		}
		if v, ok := value.ParseJSON(raw); ok {
			inputs[name] = v
		} else {
			inputs[name] = value.String(raw)
		}
	}
	return inputs, nil
}

// printEvent renders one run event for a terminal
func printEvent(w io.Writer, ev pkgexec.Event, watch, noColor bool) {
	switch ev.Kind {
	case pkgexec.EventNodeActive:
		if watch {
			_, _ = fmt.Fprintf(w, "%s %s (%s)\n", paint("●", colorYellow, noColor), ev.NodeID, ev.NodeType)
		}
	case pkgexec.EventNodeInactive:
		if watch {
			port, _ := ev.Attrs["port"].(string)
			if port == "" {
				port = "end"
			}
			_, _ = fmt.Fprintf(w, "%s %s → %s\n", paint("✓", colorGreen, noColor), ev.NodeID, port)
		}
	case pkgexec.EventLog:
		switch {
		case ev.NodeType == workflow.TypePrint && ev.Level == slog.LevelInfo:
			_, _ = fmt.Fprintln(w, ev.Message)
		case ev.Level >= slog.LevelError:
			_, _ = fmt.Fprintf(w, "%s %s%s\n", paint("✗", colorRed, noColor), nodePrefix(ev), ev.Message)
		case ev.Level >= slog.LevelWarn:
			_, _ = fmt.Fprintf(w, "%s %s%s\n", paint("!", colorYellow, noColor), nodePrefix(ev), ev.Message)
		case watch:
			_, _ = fmt.Fprintf(w, "  %s%s\n", nodePrefix(ev), ev.Message)
		}
	}
}

func nodePrefix(ev pkgexec.Event) string {
	if ev.NodeID == "" {
		return ""
	}
	return string(ev.NodeID) + ": "
}

// printRunSummary prints the final status and variables
func printRunSummary(w io.Writer, exec *execution.Execution, noColor bool) {
	if exec == nil {
		return
	}
	status := string(exec.Status)
	_, _ = fmt.Fprintf(w, "\nRun %s: %s (%d steps, %d warnings, %s)\n",
		exec.ID, colorizeStatus(status, noColor), exec.Steps, exec.Warnings, formatDurationValue(exec.Duration()))
	if exec.Error != nil && exec.Status == execution.StatusFailed {
		_, _ = fmt.Fprintf(w, "  %s\n", paint(exec.Error.Error(), colorRed, noColor))
	}

	if len(exec.Variables) > 0 {
		_, _ = fmt.Fprintln(w, "\nVariables:")
		for _, name := range sortedNames(exec.Variables) {
			_, _ = fmt.Fprintf(w, "  %s = %s\n", name, formatValue(exec.Variables[name]))
		}
	}
}

func writeRunResult(w io.Writer, g *workflow.Graph, exec *execution.Execution) error {
	result := runResult{
		ExecutionID: exec.ID.String(),
		Graph:       g.Name,
		Status:      string(exec.Status),
		Steps:       exec.Steps,
		Warnings:    exec.Warnings,
		DurationMS:  exec.Duration().Milliseconds(),
		Variables:   exec.Variables,
	}
	if exec.Error != nil {
		result.Error = exec.Error.Error()
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, _ = fmt.Fprintln(w, string(data))
	return nil
}
