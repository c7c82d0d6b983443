package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/pkg/workflow"
)

const helloGraph = `version: "1.0"
name: hello
nodes:
  - id: entry
    type: Entry
  - id: print
    type: Print
    inputs:
      String: hi there
connections:
  - from: entry
    to: print
`

// setupConfigDir points the CLI at a fresh config directory
func setupConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	return dir
}

// executeCommand runs the root command with args and returns its combined output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"init", "import", "validate", "run", "runs", "logs", "nodes", "credential", "variables", "schedule", "export"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCommand_CreatesConfigDir(t *testing.T) {
	dir := setupConfigDir(t)

	_, err := executeCommand(t, "", "nodes")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, configFileName))
	assert.DirExists(t, filepath.Join(dir, "graphs"))
	assert.DirExists(t, filepath.Join(dir, "captures"))
}

func TestInitCommand_Templates(t *testing.T) {
	for _, tmpl := range []string{"basic", "loop", "http"} {
		t.Run(tmpl, func(t *testing.T) {
			dir := setupConfigDir(t)

			out, err := executeCommand(t, "", "init", "g-"+tmpl, "--template", tmpl)
			require.NoError(t, err)
			assert.Contains(t, out, "✓ Created graph: g-"+tmpl)

			path := filepath.Join(dir, "graphs", "g-"+tmpl+".yaml")
			g, err := workflow.ParseFile(path)
			require.NoError(t, err)
			assert.Equal(t, "g-"+tmpl, g.Name)

			out, err = executeCommand(t, "", "validate", "g-"+tmpl)
			require.NoError(t, err)
			assert.Contains(t, out, "✓ Graph validation passed")
		})
	}
}

func TestInitCommand_Errors(t *testing.T) {
	setupConfigDir(t)

	_, err := executeCommand(t, "", "init", "1bad")
	assert.ErrorContains(t, err, "invalid graph name")

	_, err = executeCommand(t, "", "init", "ok", "--template", "nope")
	assert.ErrorContains(t, err, "unknown template")

	_, err = executeCommand(t, "", "init", "ok")
	require.NoError(t, err)
	_, err = executeCommand(t, "", "init", "ok")
	assert.ErrorContains(t, err, "graph already exists")
	_, err = executeCommand(t, "", "init", "ok", "--force")
	assert.NoError(t, err)
}

func TestIsValidGraphName(t *testing.T) {
	assert.True(t, isValidGraphName("counter"))
	assert.True(t, isValidGraphName("my-graph_2"))
	assert.False(t, isValidGraphName(""))
	assert.False(t, isValidGraphName("_hidden"))
	assert.False(t, isValidGraphName("has space"))
	assert.False(t, isValidGraphName(strings.Repeat("a", 65)))
}

func TestValidateCommand(t *testing.T) {
	dir := setupConfigDir(t)

	t.Run("valid file", func(t *testing.T) {
		path := writeFile(t, dir, "hello.yaml", helloGraph)
		out, err := executeCommand(t, "", "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ Document matches the graph schema")
		assert.Contains(t, out, "✓ Graph structure valid")
		assert.Contains(t, out, "Graph 'hello' is valid")
	})

	t.Run("missing entry", func(t *testing.T) {
		path := writeFile(t, dir, "noentry.yaml", `name: noentry
nodes:
  - id: print
    type: Print
`)
		out, err := executeCommand(t, "", "validate", path)
		require.Error(t, err)
		assert.Contains(t, out, "✗ Graph structure invalid")
		assert.Contains(t, out, workflow.ErrNoEntry.Error())
	})

	t.Run("schema violation", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yaml", "name: bad\nnodes: []\n")
		out, err := executeCommand(t, "", "validate", path)
		require.Error(t, err)
		assert.Contains(t, out, "✗ Document does not match the graph schema")
	})

	t.Run("unreachable node", func(t *testing.T) {
		path := writeFile(t, dir, "island2.yaml", strings.Replace(helloGraph, "connections:", `  - id: lonely
    type: Print
connections:`, 1))
		out, err := executeCommand(t, "", "validate", path, "--verbose")
		require.NoError(t, err)
		assert.Contains(t, out, "1 flow nodes are not reachable from Entry")
		assert.Contains(t, out, "- lonely")
	})

	t.Run("unknown graph", func(t *testing.T) {
		_, err := executeCommand(t, "", "validate", "missing")
		assert.ErrorContains(t, err, "graph not found")
	})
}

func TestNodesCommand(t *testing.T) {
	setupConfigDir(t)

	out, err := executeCommand(t, "", "nodes")
	require.NoError(t, err)
	assert.Contains(t, out, workflow.CategoryControl)
	assert.Contains(t, out, "ForLoop")
	assert.Contains(t, out, "HTTPRequest")

	out, err = executeCommand(t, "", "nodes", "math")
	require.NoError(t, err)
	assert.Contains(t, out, "Add")
	assert.NotContains(t, out, "ForLoop")

	out, err = executeCommand(t, "", "nodes", "ForLoop")
	require.NoError(t, err)
	assert.Contains(t, out, "Inputs:")
	assert.Contains(t, out, "End")
	assert.Contains(t, out, "= 10")

	out, err = executeCommand(t, "", "nodes", "Sequence")
	require.NoError(t, err)
	assert.Contains(t, out, "Out1, Out2, ...")

	_, err = executeCommand(t, "", "nodes", "NoSuchThing")
	assert.ErrorContains(t, err, "no node type or category")
}

func TestExportAndImport(t *testing.T) {
	dir := setupConfigDir(t)
	secret := "ghp_" + strings.Repeat("a", 36)
	src := writeFile(t, dir, "leaky.yaml", `name: leaky
variables:
  - name: api_token
    type: string
    default: `+secret+`
nodes:
  - id: entry
    type: Entry
  - id: print
    type: Print
connections:
  - from: entry
    to: print
`)

	exported := filepath.Join(dir, "shared.yaml")
	out, err := executeCommand(t, "", "export", src, "-o", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Graph exported successfully")

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.NotContains(t, string(data), secret)
	assert.Contains(t, string(data), credentialPlaceholder)

	out, err = executeCommand(t, "", "import", exported, "--name", "shared", "--no-interact")
	require.NoError(t, err)
	assert.Contains(t, out, "variable api_token")
	assert.Contains(t, out, "✓ Imported graph: shared")

	_, err = executeCommand(t, "", "import", exported, "--name", "shared", "--no-interact")
	assert.ErrorContains(t, err, "already exists")

	out, err = executeCommand(t, "filled-in\n", "import", exported, "--name", "filled")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Imported graph: filled")

	g, err := workflow.ParseFile(filepath.Join(dir, "graphs", "filled.yaml"))
	require.NoError(t, err)
	v, err := g.GetVariable("api_token")
	require.NoError(t, err)
	assert.Equal(t, "filled-in", v.Default.ToString())
}
