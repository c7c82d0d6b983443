package execution

import (
	"sync"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// OutputKey addresses one output port of one node.
type OutputKey struct {
	NodeID types.NodeID
	Port   string
}

// String renders the key as node.port
func (k OutputKey) String() string {
	return string(k.NodeID) + "." + k.Port
}

// MemoEntry is a cached node output.
type MemoEntry struct {
	Value value.Value
	// Volatile entries were computed from run state and are only valid
	// while the epoch they were computed in is current.
	Volatile bool
	Epoch    uint64
	// Stored entries were written by a flow node and stay valid until
	// the node runs again.
	Stored bool
}

// MemoTable caches node outputs for one run. Pure value outputs are
// computed at most once; outputs derived from run state are recomputed
// after the state changes.
type MemoTable struct {
	mu      sync.Mutex
	entries map[OutputKey]MemoEntry
	epoch   uint64
	hits    uint64
	misses  uint64
}

// NewMemoTable creates an empty table.
func NewMemoTable() *MemoTable {
	return &MemoTable{entries: make(map[OutputKey]MemoEntry)}
}

// Lookup returns a cached output when it is still valid.
func (t *MemoTable) Lookup(key OutputKey) (MemoEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if ok && (e.Stored || !e.Volatile || e.Epoch == t.epoch) {
		t.hits++
		return e, true
	}
	t.misses++
	return MemoEntry{}, false
}

// Remember caches a value-node output computed in the current epoch.
func (t *MemoTable) Remember(key OutputKey, v value.Value, volatile bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[key] = MemoEntry{Value: v, Volatile: volatile, Epoch: t.epoch}
}

// Store records a flow-node output and advances the epoch so that
// volatile entries computed from the previous output are recomputed.
func (t *MemoTable) Store(key OutputKey, v value.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.epoch++
	t.entries[key] = MemoEntry{Value: v, Stored: true, Epoch: t.epoch}
}

// Advance invalidates every volatile entry.
func (t *MemoTable) Advance() {
	t.mu.Lock()
	t.epoch++
	t.mu.Unlock()
}

// Epoch returns the current state epoch.
func (t *MemoTable) Epoch() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

// Len returns the number of cached outputs, valid or not.
func (t *MemoTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stats returns the lookup hit and miss counts.
func (t *MemoTable) Stats() (hits, misses uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits, t.misses
}

// Snapshot returns the currently cached values keyed by output.
func (t *MemoTable) Snapshot() map[OutputKey]value.Value {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[OutputKey]value.Value, len(t.entries))
	for k, e := range t.entries {
		out[k] = e.Value
	}
	return out
}
