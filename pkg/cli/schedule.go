package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	pkgexec "github.com/dshills/nodeflow/pkg/execution"
	"github.com/dshills/nodeflow/pkg/schedule"
)

// ScheduleFlags holds the flags of the schedule command
type ScheduleFlags struct {
	Cron   string
	Inputs []string
	Now    bool
	List   bool
	Screen string
}

// NewScheduleCommand creates the schedule command
func NewScheduleCommand() *cobra.Command {
	flags := &ScheduleFlags{}

	cmd := &cobra.Command{
		Use:   "schedule [graph]",
		Short: "Run graphs on cron schedules",
		Long: `Run graphs on cron schedules until interrupted.

With a graph argument and --cron, that graph is scheduled. Without arguments,
the schedules in config.yaml are used:

  schedules:
    - graph: counter
      cron: "*/5 * * * *"
      inputs:
        x: 3

Cron expressions have five fields or are a descriptor such as "@hourly" or
"@every 30s". An activation is skipped while the previous run of the same
graph is still going. Every run is recorded in the run history.

Examples:
  nodeflow schedule counter --cron "@every 1m"
  nodeflow schedule --list
  nodeflow schedule`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scheduleEntries(args, flags)
			if err != nil {
				return err
			}
			if flags.List {
				return printSchedules(cmd.OutOrStdout(), entries, time.Now())
			}
			return runScheduler(cmd, entries, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Cron, "cron", "", "Cron expression for the graph argument")
	cmd.Flags().StringArrayVarP(&flags.Inputs, "input", "i", nil, "Variable override as name=value (repeatable)")
	cmd.Flags().BoolVar(&flags.Now, "now", false, "Also run every scheduled graph once at startup")
	cmd.Flags().BoolVar(&flags.List, "list", false, "Show the schedules and their next activation, then exit")
	cmd.Flags().StringVar(&flags.Screen, "screen", "", "PNG image served as the display")

	return cmd
}

func scheduleEntries(args []string, flags *ScheduleFlags) ([]schedule.Entry, error) {
	if len(args) == 0 {
		if flags.Cron != "" || len(flags.Inputs) > 0 {
			return nil, errors.New("--cron and --input need a graph argument")
		}
		if len(settings.Schedules) == 0 {
			return nil, fmt.Errorf("no schedules configured in %s", configFileName)
		}
		return settings.Schedules, nil
	}

	if flags.Cron == "" {
		return nil, errors.New("--cron is required when a graph is given")
	}
	inputs, err := parseInputs(flags.Inputs)
	if err != nil {
		return nil, err
	}
	return []schedule.Entry{{Graph: args[0], Cron: flags.Cron, Inputs: inputs}}, nil
}

func printSchedules(w io.Writer, entries []schedule.Entry, now time.Time) error {
	sorted := append([]schedule.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Graph < sorted[j].Graph })
	for _, e := range sorted {
		next, err := schedule.Next(e.Cron, now)
		if err != nil {
			return fmt.Errorf("graph %s: %w", e.Graph, err)
		}
		_, _ = fmt.Fprintf(w, "%-24s %-20s next %s\n", e.Graph, e.Cron, next.Format(time.RFC3339))
	}
	return nil
}

func runScheduler(cmd *cobra.Command, entries []schedule.Entry, flags *ScheduleFlags) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := newEngine(ctx, engineSetup{
		config: settings,
		screen: flags.Screen,
		stdout: cmd.OutOrStdout(),
		logger: slog.Default(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	out := cmd.OutOrStdout()
	run := func(ctx context.Context, e schedule.Entry) error {
		g, err := loadGraph(e.Graph)
		if err != nil {
			return err
		}
		exec, err := engine.Execute(ctx, g, pkgexec.RunOptions{
			Inputs:           e.Inputs,
			PersistVariables: settings.Engine.PersistVariables,
		})
		if exec != nil {
			_, _ = fmt.Fprintf(out, "%s %s run %s: %s (%d steps)\n",
				time.Now().Format(time.TimeOnly), e.Graph, exec.ID, exec.Status, exec.Steps)
		}
		if errors.Is(err, pkgexec.ErrStopped) {
			return nil
		}
		return err
	}

	scheduler := schedule.New(run, slog.Default())
	for _, e := range entries {
		if err := scheduler.Add(e); err != nil {
			return err
		}
	}

	if err := printSchedules(out, entries, time.Now()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Scheduler running; press Ctrl-C to stop")

	if flags.Now {
		for _, e := range entries {
			if err := run(ctx, e); err != nil {
				slog.Error("startup run failed", "graph", e.Graph, "error", err)
			}
		}
	}

	scheduler.Start(ctx)
	_, _ = fmt.Fprintln(out, "✓ Scheduler stopped")
	return nil
}
