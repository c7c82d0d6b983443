package cli

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/value"
)

func TestParseSinceFlag(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "days", input: "7d", want: now.AddDate(0, 0, -7)},
		{name: "hours", input: "24h", want: now.Add(-24 * time.Hour)},
		{name: "date", input: "2025-01-05", want: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{name: "date time", input: "2025-01-05 10:30:00", want: time.Date(2025, 1, 5, 10, 30, 0, 0, time.UTC)},
		{name: "invalid", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSinceFlag(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.WithinDuration(t, tt.want, got, time.Minute)
		})
	}
}

func testRuns() []*execution.Execution {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*execution.Execution{
		{ID: "r1", GraphName: "a", Status: execution.StatusCompleted, StartedAt: base},
		{ID: "r2", GraphName: "b", Status: execution.StatusFailed, StartedAt: base.Add(-time.Hour)},
		{ID: "r3", GraphName: "a", Status: execution.StatusCompleted, StartedAt: base.Add(-48 * time.Hour)},
	}
}

func ids(runs []*execution.Execution) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = string(r.ID)
	}
	return out
}

func TestFilterRuns(t *testing.T) {
	runs := testRuns()
	base := runs[0].StartedAt

	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(filterRuns(runs, "", time.Time{})))
	assert.Equal(t, []string{"r1", "r3"}, ids(filterRuns(runs, execution.StatusCompleted, time.Time{})))
	assert.Equal(t, []string{"r1", "r2"}, ids(filterRuns(runs, "", base.Add(-2*time.Hour))))
	assert.Equal(t, []string{"r1"}, ids(filterRuns(runs, execution.StatusCompleted, base.Add(-2*time.Hour))))
	assert.Len(t, runs, 3, "input is not modified")
}

func TestRunsOfGraph(t *testing.T) {
	assert.Equal(t, []string{"r1", "r3"}, ids(runsOfGraph(testRuns(), "a")))
	assert.Empty(t, runsOfGraph(testRuns(), "zzz"))
}

func TestPageRuns(t *testing.T) {
	runs := testRuns()
	assert.Equal(t, []string{"r1", "r2"}, ids(pageRuns(runs, 0, 2)))
	assert.Equal(t, []string{"r2", "r3"}, ids(pageRuns(runs, 1, 0)))
	assert.Equal(t, []string{"r3"}, ids(pageRuns(runs, 2, 5)))
	assert.Empty(t, pageRuns(runs, 3, 1))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatDurationValue(0))
	assert.Equal(t, "250ms", formatDurationValue(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDurationValue(1500*time.Millisecond))
	assert.Equal(t, "2.0m", formatDurationValue(2*time.Minute))

	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefgh..", truncateString("abcdefghijkl", 10))

	assert.Equal(t, `"hi"`, formatValue(value.String("hi")))
	assert.Equal(t, "null", formatValue(value.Null))
	assert.Equal(t, "[1,2]", formatValue(value.Array(value.Int(1), value.Int(2))))

	assert.Equal(t, "completed", colorizeStatus("completed", true))
	assert.Contains(t, colorizeStatus("failed", false), colorRed)
	assert.Equal(t, "✓", getNodeSymbol(execution.NodeStatusCompleted, true))
}

func TestRunsCommands(t *testing.T) {
	dir := setupConfigDir(t)
	path := writeFile(t, dir, "hello.yaml", helloGraph)

	out, err := executeCommand(t, "", "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")

	out, err = executeCommand(t, "", "run", path, "--no-color")
	require.NoError(t, err)
	id := regexp.MustCompile(`Started run (\S+)`).FindStringSubmatch(out)
	require.Len(t, id, 2, out)

	out, err = executeCommand(t, "", "runs", "list", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, id[1])
	assert.Contains(t, out, "hello")

	out, err = executeCommand(t, "", "runs", "list", "--graph", "hello", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, id[1])

	out, err = executeCommand(t, "", "runs", "list", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")

	_, err = executeCommand(t, "", "runs", "list", "--status", "weird")
	assert.ErrorContains(t, err, "invalid status")

	out, err = executeCommand(t, "", "runs", "show", id[1], "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Graph: hello")
	assert.Contains(t, out, "Node Activations:")
	assert.Contains(t, out, "print")

	out, err = executeCommand(t, "", "runs", "show", id[1], "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"graph_name": "hello"`)

	out, err = executeCommand(t, "", "logs", id[1], "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Run of hello started")
	assert.Contains(t, out, "print completed → Next")

	_, err = executeCommand(t, "", "runs", "delete", id[1])
	require.NoError(t, err)
	_, err = executeCommand(t, "", "runs", "show", id[1])
	assert.Error(t, err)
}
