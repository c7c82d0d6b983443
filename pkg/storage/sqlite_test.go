package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

func newTestRepository(t *testing.T) *SQLiteExecutionRepository {
	t.Helper()
	repo, err := NewSQLiteExecutionRepositoryWithPath(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newRun(t *testing.T, graphID types.GraphID, startedAt time.Time) *execution.Execution {
	t.Helper()
	exec, err := execution.NewExecution(graphID, "1.0", map[string]value.Value{"x": value.Int(0)})
	require.NoError(t, err)
	exec.GraphName = string(graphID)
	require.NoError(t, exec.Start())
	exec.StartedAt = startedAt
	return exec
}

func TestSQLiteExecutionRepository_SaveAndLoad(t *testing.T) {
	repo := newTestRepository(t)
	exec := newRun(t, "counter", time.Now())
	require.NoError(t, repo.Save(exec))

	click := execution.NewNodeExecution(exec.ID, "click", "Click")
	click.Start()
	click.Inputs["X"] = value.Int(10)
	click.Fail(&execution.NodeError{
		Type:    execution.ErrorTypeCollaborator,
		Message: "pointer unavailable",
		Context: map[string]interface{}{"op": "click"},
	}, "Next")
	require.NoError(t, repo.SaveNodeExecution(click))

	set := execution.NewNodeExecution(exec.ID, "set", "SetVariable")
	set.Start()
	set.Complete(map[string]value.Value{"Value": value.Array(value.Int(1), value.String("a"))}, "Next")
	require.NoError(t, repo.SaveNodeExecution(set))

	exec.Context.SetVariable("x", value.Int(3))
	exec.Steps = 2
	exec.Warnings = 1
	require.NoError(t, exec.Complete())
	require.NoError(t, repo.Save(exec))

	loaded, err := repo.Load(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, loaded.ID)
	assert.Equal(t, types.GraphID("counter"), loaded.GraphID)
	assert.Equal(t, "counter", loaded.GraphName)
	assert.Equal(t, execution.StatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.Steps)
	assert.Equal(t, 1, loaded.Warnings)
	assert.False(t, loaded.CompletedAt.IsZero())
	assert.Nil(t, loaded.Error)
	assert.Equal(t, value.Int(3), loaded.Variables["x"])

	require.Len(t, loaded.NodeExecutions, 2)
	first := loaded.NodeExecutions[0]
	assert.Equal(t, types.NodeID("click"), first.NodeID)
	assert.Equal(t, execution.NodeStatusFailed, first.Status)
	assert.Equal(t, "Next", first.Port)
	assert.Equal(t, value.Int(10), first.Inputs["X"])
	require.NotNil(t, first.Error)
	assert.Equal(t, execution.ErrorTypeCollaborator, first.Error.Type)
	assert.Equal(t, "click", first.Error.Context["op"])

	second := loaded.NodeExecutions[1]
	assert.Equal(t, execution.NodeStatusCompleted, second.Status)
	assert.Equal(t, value.Array(value.Int(1), value.String("a")), second.Outputs["Value"])
}

func TestSQLiteExecutionRepository_SaveFailure(t *testing.T) {
	repo := newTestRepository(t)
	exec := newRun(t, "broken", time.Now())
	require.NoError(t, exec.Fail(execution.NewExecutionError(
		execution.ErrorTypeTimeout, "wait", "run timed out", errors.New("deadline exceeded"))))
	require.NoError(t, repo.Save(exec))

	loaded, err := repo.Load(exec.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Error)
	assert.Equal(t, execution.ErrorTypeTimeout, loaded.Error.Type)
	assert.Equal(t, types.NodeID("wait"), loaded.Error.NodeID)
	assert.Equal(t, "run timed out: deadline exceeded", loaded.Error.Message)
	assert.Empty(t, loaded.NodeExecutions)
}

func TestSQLiteExecutionRepository_Queries(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Now().Add(-time.Hour)

	a1 := newRun(t, "a", base)
	a2 := newRun(t, "a", base.Add(2*time.Minute))
	b1 := newRun(t, "b", base.Add(time.Minute))
	require.NoError(t, a2.Complete())
	for _, e := range []*execution.Execution{a1, a2, b1} {
		require.NoError(t, repo.Save(e))
	}

	all, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, a2.ID, all[0].ID, "newest first")
	assert.Equal(t, a1.ID, all[2].ID)

	limited, err := repo.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = repo.List(-1)
	assert.Error(t, err)

	byGraph, err := repo.ListByGraph("a")
	require.NoError(t, err)
	require.Len(t, byGraph, 2)
	assert.Equal(t, a2.ID, byGraph[0].ID)

	running, err := repo.ListByStatus(execution.StatusRunning)
	require.NoError(t, err)
	assert.Len(t, running, 2)

	none, err := repo.ListByGraph("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteExecutionRepository_Delete(t *testing.T) {
	repo := newTestRepository(t)
	exec := newRun(t, "g", time.Now())
	require.NoError(t, repo.Save(exec))

	ne := execution.NewNodeExecution(exec.ID, "n", "Print")
	ne.Start()
	require.NoError(t, repo.SaveNodeExecution(ne))
	snap := execution.NewVariableSnapshot("x", value.Int(0), value.Int(1), ne.ID)
	require.NoError(t, repo.SaveVariableSnapshot(exec.ID, &snap))

	require.NoError(t, repo.Delete(exec.ID))

	_, err := repo.Load(exec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	snaps, err := repo.LoadVariableSnapshots(exec.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps, "snapshots cascade")

	assert.ErrorIs(t, repo.Delete(exec.ID), ErrNotFound)
	assert.Error(t, repo.Delete(""))
}

func TestSQLiteExecutionRepository_VariableSnapshots(t *testing.T) {
	repo := newTestRepository(t)
	exec := newRun(t, "g", time.Now())
	require.NoError(t, repo.Save(exec))

	first := execution.NewVariableSnapshot("x", value.Null, value.Int(1), "")
	second := execution.NewVariableSnapshot("x", value.Int(1), value.String("two"), "ne-1")
	require.NoError(t, repo.SaveVariableSnapshot(exec.ID, &first))
	require.NoError(t, repo.SaveVariableSnapshot(exec.ID, &second))

	assert.Error(t, repo.SaveVariableSnapshot(exec.ID, nil))
	assert.Error(t, repo.SaveVariableSnapshot("", &first))

	snaps, err := repo.LoadVariableSnapshots(exec.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].OldValue.IsNull())
	assert.Equal(t, value.Int(1), snaps[0].NewValue)
	assert.Equal(t, value.String("two"), snaps[1].NewValue)
	assert.Equal(t, types.NodeExecutionID("ne-1"), snaps[1].NodeExecutionID)
}

func TestSQLiteExecutionRepository_Validation(t *testing.T) {
	repo := newTestRepository(t)

	assert.Error(t, repo.Save(nil))
	assert.Error(t, repo.SaveNodeExecution(nil))
	_, err := repo.Load("")
	assert.Error(t, err)
	_, err = repo.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteExecutionRepository_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewSQLiteExecutionRepositoryWithPath(path)
	require.NoError(t, err)
	exec := newRun(t, "g", time.Now())
	require.NoError(t, repo.Save(exec))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteExecutionRepositoryWithPath(path)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	var version int
	require.NoError(t, repo.db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version))
	assert.Equal(t, MigrationVersion, version)

	_, err = repo.Load(exec.ID)
	assert.NoError(t, err)
}

func TestSQLiteExecutionRepository_VariableDefaults(t *testing.T) {
	repo := newTestRepository(t)

	empty, err := repo.LoadDefaults("counter")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.SaveDefaults("counter", map[string]value.Value{
		"x":     value.Int(3),
		"label": value.String("done"),
		"items": value.Array(value.Int(1), value.Int(2)),
		"ratio": value.Float(0.5),
	}))
	require.NoError(t, repo.SaveDefaults("other", map[string]value.Value{"y": value.Bool(true)}))

	got, err := repo.LoadDefaults("counter")
	require.NoError(t, err)
	assert.Equal(t, map[string]value.Value{
		"x":     value.Int(3),
		"label": value.String("done"),
		"items": value.Array(value.Int(1), value.Int(2)),
		"ratio": value.Float(0.5),
	}, got)

	require.NoError(t, repo.SaveDefaults("counter", map[string]value.Value{"x": value.Int(6)}))
	got, err = repo.LoadDefaults("counter")
	require.NoError(t, err)
	assert.Equal(t, map[string]value.Value{"x": value.Int(6)}, got, "save replaces")

	graphs, err := repo.ListDefaultGraphs()
	require.NoError(t, err)
	assert.Equal(t, []types.GraphID{"counter", "other"}, graphs)

	require.NoError(t, repo.ClearDefaults("counter"))
	got, err = repo.LoadDefaults("counter")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, repo.SaveDefaults("", nil))
}
