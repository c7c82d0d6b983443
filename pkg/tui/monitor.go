// Package tui draws a live full-screen view of a running graph.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dshills/goterm"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/execution"
	"github.com/dshills/nodeflow/pkg/workflow"
)

const (
	maxLogLines = 200
	frameEvery  = 50 * time.Millisecond
)

var (
	colorActive = goterm.ColorRGB(255, 200, 0)
	colorDone   = goterm.ColorRGB(80, 200, 120)
	colorError  = goterm.ColorRGB(240, 80, 80)
	colorWarn   = goterm.ColorRGB(230, 160, 40)
)

// nodeRow is the monitor's view of one flow node.
type nodeRow struct {
	id          types.NodeID
	nodeType    workflow.NodeType
	label       string
	disabled    bool
	activations int
	lastPort    string
	failed      bool
}

type logLine struct {
	level slog.Level
	text  string
}

// Monitor tracks the state of a run from its events and renders it onto a
// goterm screen.
type Monitor struct {
	mu sync.Mutex

	graphName string
	rows      []*nodeRow
	byID      map[types.NodeID]*nodeRow

	runID    types.ExecutionID
	status   string
	active   types.NodeID
	steps    int
	warnings int
	started  time.Time
	finished time.Time
	logs     []logLine
}

// NewMonitor creates a monitor listing the flow nodes of g in document order.
func NewMonitor(g *workflow.Graph) *Monitor {
	m := &Monitor{
		graphName: g.Name,
		byID:      make(map[types.NodeID]*nodeRow),
		status:    "pending",
	}
	for _, n := range g.Nodes {
		if !n.IsFlow() {
			continue
		}
		label := n.DisplayName
		if label == "" {
			label = n.ID
		}
		row := &nodeRow{
			id:       types.NodeID(n.ID),
			nodeType: n.Type,
			label:    label,
			disabled: !n.Enabled(),
		}
		m.rows = append(m.rows, row)
		m.byID[row.id] = row
	}
	return m
}

// Handle folds one run event into the monitor state.
func (m *Monitor) Handle(ev execution.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runID == "" {
		m.runID = ev.RunID
	}

	switch ev.Kind {
	case execution.EventRunStarted:
		m.status = "running"
		m.started = ev.Time
	case execution.EventNodeActive:
		m.active = ev.NodeID
		m.steps++
		if row, ok := m.byID[ev.NodeID]; ok {
			row.activations++
		}
	case execution.EventNodeInactive:
		if row, ok := m.byID[ev.NodeID]; ok {
			port, _ := ev.Attrs["port"].(string)
			if port == "" {
				port = "end"
			}
			row.lastPort = port
		}
		if m.active == ev.NodeID {
			m.active = ""
		}
	case execution.EventLog:
		if ev.Level >= slog.LevelWarn {
			m.warnings++
		}
		if ev.Level >= slog.LevelError {
			if row, ok := m.byID[ev.NodeID]; ok {
				row.failed = true
			}
		}
		text := ev.Message
		if ev.NodeID != "" {
			text = string(ev.NodeID) + ": " + text
		}
		m.logs = append(m.logs, logLine{level: ev.Level, text: text})
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	case execution.EventRunFinished:
		if status, ok := ev.Attrs["status"].(string); ok {
			m.status = status
		}
		if steps, ok := ev.Attrs["steps"].(int); ok {
			m.steps = steps
		}
		if warnings, ok := ev.Attrs["warnings"].(int); ok {
			m.warnings = warnings
		}
		if msg, ok := ev.Attrs["error"].(string); ok && msg != "" {
			m.logs = append(m.logs, logLine{level: slog.LevelError, text: msg})
		}
		m.active = ""
		m.finished = ev.Time
	}
}

// Render draws the current state. The caller shows the screen.
func (m *Monitor) Render(screen *goterm.Screen) {
	m.mu.Lock()
	defer m.mu.Unlock()

	width, height := screen.Size()
	if width <= 0 || height <= 0 {
		return
	}
	fg := goterm.ColorDefault()
	bg := goterm.ColorDefault()
	draw := func(y int, text string, color goterm.Color, style goterm.Style) {
		if y < 0 || y >= height {
			return
		}
		x := 0
		for _, ch := range fit(text, width) {
			screen.SetCell(x, y, goterm.NewCell(ch, color, bg, style))
			x++
		}
	}

	screen.Clear()

	draw(0, "nodeflow: "+m.graphName, fg, goterm.StyleBold)
	draw(1, fmt.Sprintf("Run %s | %s | steps %d | warnings %d | %s",
		shortID(m.runID), m.status, m.steps, m.warnings, m.elapsed()), m.statusColor(), goterm.StyleNone)
	draw(2, strings.Repeat("─", width), fg, goterm.StyleDim)

	// Nodes take the upper half, logs the rest
	y := 3
	nodeLines := max((height-5)/2, 1)
	for i, row := range m.rows {
		if i >= nodeLines {
			draw(y, fmt.Sprintf("  … %d more", len(m.rows)-i), fg, goterm.StyleDim)
			y++
			break
		}
		symbol, color, style := m.rowStyle(row)
		line := fmt.Sprintf("%s %-24s %-18s", symbol, row.label, row.nodeType)
		if row.activations > 0 {
			line += fmt.Sprintf(" ×%-4d → %s", row.activations, row.lastPort)
		}
		draw(y, line, color, style)
		y++
	}

	draw(y, strings.Repeat("─", width), fg, goterm.StyleDim)
	y++

	logLines := height - 1 - y
	start := max(len(m.logs)-logLines, 0)
	for _, line := range m.logs[start:] {
		color := fg
		switch {
		case line.level >= slog.LevelError:
			color = colorError
		case line.level >= slog.LevelWarn:
			color = colorWarn
		}
		draw(y, line.text, color, goterm.StyleNone)
		y++
	}

	hint := "q: stop run"
	if !m.finished.IsZero() {
		hint = "Run finished"
	}
	draw(height-1, hint, fg, goterm.StyleReverse)
}

func (m *Monitor) rowStyle(row *nodeRow) (string, goterm.Color, goterm.Style) {
	switch {
	case row.id == m.active:
		return "●", colorActive, goterm.StyleBold
	case row.failed:
		return "✗", colorError, goterm.StyleBold
	case row.disabled:
		return "⊘", goterm.ColorDefault(), goterm.StyleDim
	case row.activations > 0:
		return "✓", colorDone, goterm.StyleNone
	default:
		return "○", goterm.ColorDefault(), goterm.StyleDim
	}
}

func (m *Monitor) statusColor() goterm.Color {
	switch m.status {
	case "completed":
		return colorDone
	case "failed":
		return colorError
	case "cancelled":
		return colorWarn
	default:
		return goterm.ColorDefault()
	}
}

func (m *Monitor) elapsed() string {
	if m.started.IsZero() {
		return "0s"
	}
	end := m.finished
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(m.started).Round(time.Millisecond).String()
}

// Watch shows run on the terminal until it finishes. Cancelling ctx, or
// pressing q or Ctrl-C on keys, stops the run; Watch still drains its events.
func Watch(ctx context.Context, run *execution.Run, g *workflow.Graph, keys io.Reader) error {
	screen, err := goterm.Init()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer func() { _ = screen.Close() }()

	go func() {
		select {
		case <-ctx.Done():
			run.Stop()
		case <-run.Done():
		}
	}()
	if keys != nil {
		go readKeys(keys, run)
	}

	m := NewMonitor(g)
	var last time.Time
	for ev := range run.Events() {
		m.Handle(ev)
		if time.Since(last) < frameEvery && ev.Kind != execution.EventRunFinished {
			continue
		}
		last = time.Now()
		m.Render(screen)
		if err := screen.Show(); err != nil {
			return fmt.Errorf("screen show failed: %w", err)
		}
	}

	m.Render(screen)
	return screen.Show()
}

// readKeys stops the run on q or Ctrl-C. The terminal is in raw mode, so
// Ctrl-C arrives as a byte rather than a signal.
func readKeys(r io.Reader, run *execution.Run) {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == 'q' || b == 0x03 {
				run.Stop()
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func fit(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}

func shortID(id types.ExecutionID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
