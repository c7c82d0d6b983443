package testutil

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// Input records pointer and keyboard calls as readable strings such as
// "click left 10,20 x1" or "type a".
type Input struct {
	mu    sync.Mutex
	calls []string
	// Err, when set, is returned from every call after it is recorded.
	Err error
}

var (
	_ capability.Pointer  = (*Input)(nil)
	_ capability.Keyboard = (*Input)(nil)
)

func (in *Input) record(format string, args ...any) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.calls = append(in.calls, fmt.Sprintf(format, args...))
	return in.Err
}

// Calls returns the recorded calls in order.
func (in *Input) Calls() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.calls...)
}

func (in *Input) Move(_ context.Context, x, y int) error {
	return in.record("move %d,%d", x, y)
}

func (in *Input) Click(_ context.Context, x, y int, b capability.Button, count int) error {
	return in.record("click %s %d,%d x%d", b, x, y, count)
}

func (in *Input) ButtonDown(_ context.Context, b capability.Button) error {
	return in.record("down %s", b)
}

func (in *Input) ButtonUp(_ context.Context, b capability.Button) error {
	return in.record("up %s", b)
}

func (in *Input) Scroll(_ context.Context, dx, dy int) error {
	return in.record("scroll %d,%d", dx, dy)
}

func (in *Input) Tap(_ context.Context, key string, mods capability.Modifiers) error {
	var held []string
	if mods.Ctrl {
		held = append(held, "ctrl")
	}
	if mods.Shift {
		held = append(held, "shift")
	}
	if mods.Alt {
		held = append(held, "alt")
	}
	if mods.Command {
		held = append(held, "cmd")
	}
	held = append(held, key)
	return in.record("tap %s", strings.Join(held, "+"))
}

func (in *Input) KeyDown(_ context.Context, key string) error {
	return in.record("keydown %s", key)
}

func (in *Input) KeyUp(_ context.Context, key string) error {
	return in.record("keyup %s", key)
}

func (in *Input) Type(_ context.Context, text string) error {
	return in.record("type %s", text)
}

// Shell answers Run with canned results keyed by command name.
type Shell struct {
	mu       sync.Mutex
	Results  map[string]capability.CommandResult
	launched []string
	closed   []string
}

var _ capability.Shell = (*Shell)(nil)

func (s *Shell) Run(_ context.Context, command string, args []string) (capability.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.Results[command]
	if !ok {
		return capability.CommandResult{ExitCode: 127}, fmt.Errorf("%s: command not found", command)
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s %s: exit status %d", command, strings.Join(args, " "), res.ExitCode)
	}
	return res, nil
}

func (s *Shell) Launch(_ context.Context, path string, args []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launched = append(s.launched, strings.TrimSpace(path+" "+strings.Join(args, " ")))
	return nil
}

func (s *Shell) Close(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, name)
	return nil
}

// Launched returns the launched command lines.
func (s *Shell) Launched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.launched...)
}

// Windows is an in-memory window manager keyed by title.
type Windows struct {
	mu      sync.Mutex
	windows map[string]image.Rectangle
	focused string
}

var _ capability.Windows = (*Windows)(nil)

// NewWindows creates a window manager holding the given windows.
func NewWindows(windows map[string]image.Rectangle) *Windows {
	if windows == nil {
		windows = make(map[string]image.Rectangle)
	}
	return &Windows{windows: windows}
}

func (w *Windows) Focus(_ context.Context, title string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.windows[title]; !ok {
		return fmt.Errorf("window %q not found", title)
	}
	w.focused = title
	return nil
}

func (w *Windows) Bounds(_ context.Context, title string) (image.Rectangle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.windows[title]
	if !ok {
		return image.Rectangle{}, fmt.Errorf("window %q not found", title)
	}
	return r, nil
}

func (w *Windows) SetBounds(_ context.Context, title string, r image.Rectangle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.windows[title]; !ok {
		return fmt.Errorf("window %q not found", title)
	}
	w.windows[title] = r
	return nil
}

// Focused returns the title of the last focused window.
func (w *Windows) Focused() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Console replies to ReadLine with queued lines and then blocks until the
// context ends.
type Console struct {
	lines chan string
}

var _ capability.Console = (*Console)(nil)

// NewConsole creates a console that answers with lines in order.
func NewConsole(lines ...string) *Console {
	c := &Console{lines: make(chan string, len(lines))}
	for _, l := range lines {
		c.lines <- l
	}
	return c
}

func (c *Console) ReadLine(ctx context.Context, _ string) (string, error) {
	select {
	case l := <-c.lines:
		return l, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Repository is an in-memory ExecutionRepository and VariableStore.
type Repository struct {
	mu         sync.Mutex
	executions map[types.ExecutionID]*execution.Execution
	nodes      map[types.ExecutionID][]*execution.NodeExecution
	snapshots  map[types.ExecutionID][]execution.VariableSnapshot
	defaults   map[types.GraphID]map[string]value.Value
	// Err, when set, fails every write.
	Err error
}

var (
	_ execution.ExecutionRepository = (*Repository)(nil)
	_ execution.VariableStore       = (*Repository)(nil)
)

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		executions: make(map[types.ExecutionID]*execution.Execution),
		nodes:      make(map[types.ExecutionID][]*execution.NodeExecution),
		snapshots:  make(map[types.ExecutionID][]execution.VariableSnapshot),
		defaults:   make(map[types.GraphID]map[string]value.Value),
	}
}

func (r *Repository) Save(e *execution.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	cp := *e
	r.executions[e.ID] = &cp
	return nil
}

func (r *Repository) Load(id types.ExecutionID) (*execution.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	cp := *e
	cp.NodeExecutions = append([]*execution.NodeExecution(nil), r.nodes[id]...)
	return &cp, nil
}

func (r *Repository) List(limit int) ([]*execution.Execution, error) {
	return r.filter(limit, func(*execution.Execution) bool { return true }), nil
}

func (r *Repository) ListByGraph(graphID types.GraphID) ([]*execution.Execution, error) {
	return r.filter(0, func(e *execution.Execution) bool { return e.GraphID == graphID }), nil
}

func (r *Repository) ListByStatus(status execution.Status) ([]*execution.Execution, error) {
	return r.filter(0, func(e *execution.Execution) bool { return e.Status == status }), nil
}

func (r *Repository) filter(limit int, keep func(*execution.Execution) bool) []*execution.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*execution.Execution
	for _, e := range r.executions {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Repository) Delete(id types.ExecutionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.executions[id]; !ok {
		return fmt.Errorf("execution %s not found", id)
	}
	delete(r.executions, id)
	delete(r.nodes, id)
	delete(r.snapshots, id)
	return nil
}

func (r *Repository) SaveNodeExecution(ne *execution.NodeExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.nodes[ne.ExecutionID] = append(r.nodes[ne.ExecutionID], ne)
	return nil
}

func (r *Repository) SaveVariableSnapshot(id types.ExecutionID, s *execution.VariableSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.snapshots[id] = append(r.snapshots[id], *s)
	return nil
}

// Snapshots returns the variable changes recorded for a run.
func (r *Repository) Snapshots(id types.ExecutionID) []execution.VariableSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]execution.VariableSnapshot(nil), r.snapshots[id]...)
}

// NodeExecutions returns the node records saved for a run.
func (r *Repository) NodeExecutions(id types.ExecutionID) []*execution.NodeExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*execution.NodeExecution(nil), r.nodes[id]...)
}

func (r *Repository) LoadDefaults(graphID types.GraphID) (map[string]value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]value.Value, len(r.defaults[graphID]))
	for k, v := range r.defaults[graphID] {
		out[k] = v
	}
	return out, nil
}

func (r *Repository) SaveDefaults(graphID types.GraphID, values map[string]value.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	cp := make(map[string]value.Value, len(values))
	for k, v := range values {
		cp[k] = v
	}
	r.defaults[graphID] = cp
	return nil
}

func (r *Repository) ClearDefaults(graphID types.GraphID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defaults, graphID)
	return nil
}
