package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

func BenchmarkLoadExecution_SmallGraph(b *testing.B) {
	benchmarkLoadExecution(b, 10)
}

func BenchmarkLoadExecution_TypicalGraph(b *testing.B) {
	benchmarkLoadExecution(b, 50)
}

// A long loop run records one node execution per activation.
func BenchmarkLoadExecution_LoopRun(b *testing.B) {
	benchmarkLoadExecution(b, 1000)
}

func benchmarkLoadExecution(b *testing.B, activations int) {
	repo, err := NewSQLiteExecutionRepositoryWithPath(filepath.Join(b.TempDir(), "bench.db"))
	require.NoError(b, err)
	defer func() { _ = repo.Close() }()

	exec := benchExecution(b, repo, activations)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		loaded, err := repo.Load(exec.ID)
		if err != nil {
			b.Fatal(err)
		}
		if len(loaded.NodeExecutions) != activations {
			b.Fatalf("expected %d node executions, got %d", activations, len(loaded.NodeExecutions))
		}
	}
	b.StopTimer()
	b.ReportMetric(float64(activations), "activations")
}

func BenchmarkSaveNodeExecution(b *testing.B) {
	repo, err := NewSQLiteExecutionRepositoryWithPath(filepath.Join(b.TempDir(), "bench.db"))
	require.NoError(b, err)
	defer func() { _ = repo.Close() }()

	exec := benchExecution(b, repo, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ne := execution.NewNodeExecution(exec.ID, "click", "Click")
		ne.Start()
		ne.Inputs["X"] = value.Int(int64(i))
		ne.Complete(nil, "Next")
		if err := repo.SaveNodeExecution(ne); err != nil {
			b.Fatal(err)
		}
	}
}

func benchExecution(b *testing.B, repo *SQLiteExecutionRepository, activations int) *execution.Execution {
	b.Helper()
	exec, err := execution.NewExecution("bench-graph", "1.0.0", map[string]value.Value{
		"count": value.Int(0),
		"label": value.String("bench"),
	})
	require.NoError(b, err)
	require.NoError(b, exec.Start())
	require.NoError(b, repo.Save(exec))

	for i := 0; i < activations; i++ {
		ne := execution.NewNodeExecution(exec.ID, types.NodeID(fmt.Sprintf("node-%d", i%26)), "SetVariable")
		ne.StartedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		ne.Inputs["Value"] = value.Int(int64(i))
		ne.Complete(map[string]value.Value{"Value": value.Array(value.Int(int64(i)), value.String("x"))}, "Next")
		require.NoError(b, repo.SaveNodeExecution(ne))
	}
	return exec
}
