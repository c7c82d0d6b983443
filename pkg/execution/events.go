package execution

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// EventKind categorizes events published during a run.
type EventKind string

const (
	// EventRunStarted is emitted once the run has initialized its variables.
	EventRunStarted EventKind = "run.started"
	// EventNodeActive is emitted when control reaches a flow node.
	EventNodeActive EventKind = "node.active"
	// EventNodeInactive is emitted when a flow node hands control on.
	EventNodeInactive EventKind = "node.inactive"
	// EventLog carries a message about a node or the run.
	EventLog EventKind = "log"
	// EventRunFinished is the last event of a run. Its Attrs hold the final status.
	EventRunFinished EventKind = "run.finished"
)

// Event is one message on the observability channel.
type Event struct {
	Kind     EventKind
	RunID    types.ExecutionID
	NodeID   types.NodeID
	NodeType workflow.NodeType
	Level    slog.Level
	Message  string
	Time     time.Time
	Attrs    map[string]any
}

// Observer receives every event synchronously, in emission order.
type Observer func(Event)

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// Kinds specifies which event kinds to include (nil/empty means all kinds).
	Kinds []EventKind
	// NodeIDs specifies which node IDs to include (nil/empty means all nodes).
	NodeIDs []types.NodeID
	// MinLevel drops log events below this level.
	MinLevel slog.Level
}

// Matches returns true if the event matches the filter criteria.
func (f *EventFilter) Matches(event Event) bool {
	if len(f.Kinds) > 0 {
		matched := false
		for _, kind := range f.Kinds {
			if event.Kind == kind {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.NodeIDs) > 0 {
		if event.NodeID == "" {
			return false
		}
		matched := false
		for _, nodeID := range f.NodeIDs {
			if event.NodeID == nodeID {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if event.Kind == EventLog && event.Level < f.MinLevel {
		return false
	}
	return true
}

// subscription represents a single event subscriber.
type subscription struct {
	ch     chan Event
	filter *EventFilter // nil means no filtering
}

// monitor broadcasts run events to subscribers without ever blocking the
// run: a subscriber whose buffer is full misses the event.
type monitor struct {
	mu          sync.RWMutex
	subscribers []*subscription
	closed      bool
	dropped     atomic.Uint64
}

func newMonitor() *monitor {
	return &monitor{subscribers: make([]*subscription, 0)}
}

// Subscribe returns a channel that receives all events.
func (m *monitor) Subscribe(buffer int) <-chan Event {
	return m.subscribe(buffer, nil)
}

// SubscribeFiltered returns a channel that receives only filtered events.
func (m *monitor) SubscribeFiltered(buffer int, filter EventFilter) <-chan Event {
	return m.subscribe(buffer, &filter)
}

func (m *monitor) subscribe(buffer int, filter *EventFilter) <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	if buffer <= 0 {
		buffer = 200
	}
	ch := make(chan Event, buffer)
	m.subscribers = append(m.subscribers, &subscription{ch: ch, filter: filter})
	return ch
}

// Unsubscribe closes and removes a subscription.
func (m *monitor) Unsubscribe(ch <-chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			break
		}
	}
}

// Emit sends an event to all subscribers (non-blocking).
func (m *monitor) Emit(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	for _, sub := range m.subscribers {
		if sub.filter != nil && !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			m.dropped.Add(1)
		}
	}
}

// Dropped returns the number of deliveries skipped because a subscriber
// buffer was full.
func (m *monitor) Dropped() uint64 {
	return m.dropped.Load()
}

// Close closes the monitor and all subscriber channels.
func (m *monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	for _, sub := range m.subscribers {
		close(sub.ch)
	}
	m.subscribers = nil
}
