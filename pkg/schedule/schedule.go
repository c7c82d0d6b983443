// Package schedule runs graphs on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dshills/nodeflow/pkg/value"
)

var parser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Entry is one scheduled graph.
type Entry struct {
	// Graph names the graph to run.
	Graph string `yaml:"graph" json:"graph"`
	// Cron is a five-field expression or a descriptor such as "@every 5m".
	Cron string `yaml:"cron" json:"cron"`
	// Inputs override variable defaults for every run.
	Inputs map[string]value.Value `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// RunFunc executes one scheduled run.
type RunFunc func(ctx context.Context, e Entry) error

// Parse validates a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}
	s, err := parser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", clean, err)
	}
	return s, nil
}

// Next returns the first activation of expr after now.
func Next(expr string, now time.Time) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(now), nil
}

// Scheduler triggers graph runs. A run still in progress when its next
// activation arrives causes that activation to be skipped.
type Scheduler struct {
	cron *cron.Cron
	run  RunFunc
	log  *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[cron.EntryID]Entry
	ids     map[string]cron.EntryID
}

// New creates a scheduler that calls run for every activation.
func New(run RunFunc, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log}))),
		run:     run,
		log:     log,
		ctx:     context.Background(),
		entries: make(map[cron.EntryID]Entry),
		ids:     make(map[string]cron.EntryID),
	}
}

// Add schedules e. Each graph may be scheduled once.
func (s *Scheduler) Add(e Entry) error {
	if e.Graph == "" {
		return fmt.Errorf("schedule entry needs a graph")
	}
	sched, err := Parse(e.Cron)
	if err != nil {
		return fmt.Errorf("graph %s: %w", e.Graph, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.ids[e.Graph]; dup {
		return fmt.Errorf("graph %s is already scheduled", e.Graph)
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() { _ = s.execute(e) }))
	s.entries[id] = e
	s.ids[e.Graph] = id
	return nil
}

// Remove unschedules a graph.
func (s *Scheduler) Remove(graph string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[graph]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.ids, graph)
	delete(s.entries, id)
	return true
}

// Trigger runs a scheduled graph immediately, outside its schedule.
func (s *Scheduler) Trigger(graph string) error {
	s.mu.Lock()
	id, ok := s.ids[graph]
	e := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("graph %s is not scheduled", graph)
	}
	return s.execute(e)
}

// Upcoming lists each scheduled graph with its next activation.
func (s *Scheduler) Upcoming() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.ids))
	for graph, id := range s.ids {
		out[graph] = s.cron.Entry(id).Next
	}
	return out
}

// Start runs the scheduler until ctx is done, then waits for running
// graphs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) execute(e Entry) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("scheduled run starting", "graph", e.Graph)
	err := s.run(ctx, e)
	if err != nil {
		s.log.Error("scheduled run failed", "graph", e.Graph, "error", err, "duration", time.Since(start))
		return err
	}
	s.log.Info("scheduled run finished", "graph", e.Graph, "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to the cron job wrappers.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
