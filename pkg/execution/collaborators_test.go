package execution

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/internal/testutil"
	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/imagematch"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// noisyScreen returns a w x h image of deterministic pseudo-random pixels.
func noisyScreen(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			img.SetRGBA(x, y, color.RGBA{R: uint8(seed), G: uint8(seed >> 8), B: uint8(seed >> 16), A: 255})
		}
	}
	return img
}

func whiteScreen(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

func osFiles(t *testing.T) *capability.OSFiles {
	t.Helper()
	files, err := capability.NewOSFiles("")
	require.NoError(t, err)
	return files
}

func TestHTTPRequestNode(t *testing.T) {
	server := testutil.StartTestServer(t)

	build := func(url string) *workflow.Graph {
		return testutil.NewGraph(t, "http").
			Var("body", value.TypeString, value.String("")).
			Var("status", value.TypeInteger, value.Int(0)).
			Var("ok", value.TypeBool, value.Bool(false)).
			Node("entry", workflow.TypeEntry).
			Node("req", workflow.TypeHTTPRequest,
				testutil.Literal("URL", value.String(url)),
				testutil.Literal("Method", value.String("post")),
				testutil.Literal("Body", value.String(`{"n":1}`))).
			Node("body", workflow.TypeSetVariable, testutil.Named("body")).
			Node("status", workflow.TypeSetVariable, testutil.Named("status")).
			Node("ok", workflow.TypeSetVariable, testutil.Named("ok")).
			Flow("entry", workflow.PortNext, "req").
			Flow("req", workflow.PortNext, "body").
			Flow("body", workflow.PortNext, "status").
			Flow("status", workflow.PortNext, "ok").
			Wire("req", "Response", "body", workflow.PortValue).
			Wire("req", "Status", "status", workflow.PortValue).
			Wire("req", workflow.PortSuccess, "ok", workflow.PortValue).
			Build()
	}
	caps := capability.Set{HTTP: capability.NewHTTPClient(capability.HTTPConfig{})}

	run, _, err := execute(t, build(server.URL+"/echo"), RunOptions{}, WithCapabilities(caps))
	require.NoError(t, err)
	assert.Equal(t, `POST /echo {"n":1}`, variable(t, run, "body").ToString())
	assert.Equal(t, int64(200), variable(t, run, "status").ToInteger())
	assert.True(t, variable(t, run, "ok").ToBool())

	reqs := server.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))

	run, rec, err := execute(t, build(server.URL+"/status/503"), RunOptions{}, WithCapabilities(caps))
	require.NoError(t, err)
	assert.Equal(t, int64(503), variable(t, run, "status").ToInteger())
	assert.False(t, variable(t, run, "ok").ToBool())
	assert.Contains(t, rec.logs(slog.LevelWarn), "http request failed")

	failed := run.Execution().NodeExecutions[1]
	assert.Equal(t, execution.NodeStatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, execution.ErrorTypeCollaborator, failed.Error.Type)
}

func TestRunCommandNode(t *testing.T) {
	shell := &testutil.Shell{Results: map[string]capability.CommandResult{
		"echo":  {Output: "hello\n"},
		"false": {ExitCode: 1},
	}}
	build := func(command string) *workflow.Graph {
		return testutil.NewGraph(t, "command").
			Var("out", value.TypeString, value.String("")).
			Var("code", value.TypeInteger, value.Int(-1)).
			Var("ok", value.TypeBool, value.Bool(false)).
			Node("entry", workflow.TypeEntry).
			Node("cmd", workflow.TypeRunCommand,
				testutil.Literal("Command", value.String(command)),
				testutil.Literal("Args", value.String("hello  world"))).
			Node("out", workflow.TypeSetVariable, testutil.Named("out")).
			Node("code", workflow.TypeSetVariable, testutil.Named("code")).
			Node("ok", workflow.TypeSetVariable, testutil.Named("ok")).
			Flow("entry", workflow.PortNext, "cmd").
			Flow("cmd", workflow.PortNext, "out").
			Flow("out", workflow.PortNext, "code").
			Flow("code", workflow.PortNext, "ok").
			Wire("cmd", "Output", "out", workflow.PortValue).
			Wire("cmd", "ExitCode", "code", workflow.PortValue).
			Wire("cmd", workflow.PortSuccess, "ok", workflow.PortValue).
			Build()
	}

	run, _, err := execute(t, build("echo"), RunOptions{}, WithCapabilities(capability.Set{Shell: shell}))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", variable(t, run, "out").ToString())
	assert.Equal(t, int64(0), variable(t, run, "code").ToInteger())
	assert.True(t, variable(t, run, "ok").ToBool())

	run, _, err = execute(t, build("false"), RunOptions{}, WithCapabilities(capability.Set{Shell: shell}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), variable(t, run, "code").ToInteger())
	assert.False(t, variable(t, run, "ok").ToBool())
}

func TestLaunchAppSplitsArgs(t *testing.T) {
	shell := &testutil.Shell{}
	g := testutil.NewGraph(t, "launch").
		Node("entry", workflow.TypeEntry).
		Node("launch", workflow.TypeLaunchApp,
			testutil.Literal("Path", value.String("/usr/bin/editor")),
			testutil.Literal("Args", value.String("  -n   file.txt "))).
		Flow("entry", workflow.PortNext, "launch").
		Build()

	_, _, err := execute(t, g, RunOptions{}, WithCapabilities(capability.Set{Shell: shell}))
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/editor -n file.txt"}, shell.Launched())
}

func TestUnsupportedCollaboratorDoesNotStopRun(t *testing.T) {
	g := testutil.NewGraph(t, "unsupported").
		Var("after", value.TypeBool, value.Bool(false)).
		Node("entry", workflow.TypeEntry).
		Node("click", workflow.TypeClick).
		Node("focus", workflow.TypeFocusWindow, testutil.Literal("Title", value.String("Editor"))).
		Node("after", workflow.TypeSetVariable, testutil.Named("after"), testutil.Literal(workflow.PortValue, value.Bool(true))).
		Flow("entry", workflow.PortNext, "click").
		Flow("click", workflow.PortNext, "focus").
		Flow("focus", workflow.PortNext, "after").
		Build()

	run, rec, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.True(t, variable(t, run, "after").ToBool())
	assert.Equal(t, 2, rec.count(EventLog, "error_type", string(execution.ErrorTypeCollaborator)))
	assert.Equal(t, 2, run.Execution().Warnings)
}

func TestWindowNodes(t *testing.T) {
	windows := testutil.NewWindows(map[string]image.Rectangle{
		"Editor": image.Rect(10, 20, 110, 220),
	})
	g := testutil.NewGraph(t, "windows").
		Var("width", value.TypeInteger, value.Int(0)).
		Node("entry", workflow.TypeEntry).
		Node("focus", workflow.TypeFocusWindow, testutil.Literal("Title", value.String("Editor"))).
		Node("move", workflow.TypeSetWindowPosition,
			testutil.Literal("Title", value.String("Editor")),
			testutil.Literal("X", value.Int(0)), testutil.Literal("Y", value.Int(0)),
			testutil.Literal("Width", value.Int(640)), testutil.Literal("Height", value.Int(480))).
		Node("pos", workflow.TypeGetWindowPosition, testutil.Literal("Title", value.String("Editor"))).
		Node("width", workflow.TypeSetVariable, testutil.Named("width")).
		Flow("entry", workflow.PortNext, "focus").
		Flow("focus", workflow.PortNext, "move").
		Flow("move", workflow.PortNext, "width").
		Wire("pos", "Width", "width", workflow.PortValue).
		Build()

	run, _, err := execute(t, g, RunOptions{}, WithCapabilities(capability.Set{Windows: windows}))
	require.NoError(t, err)
	assert.Equal(t, "Editor", windows.Focused())
	assert.Equal(t, int64(640), variable(t, run, "width").ToInteger())
}

func TestInputAutomationNodes(t *testing.T) {
	input := &testutil.Input{}
	g := testutil.NewGraph(t, "input").
		Node("entry", workflow.TypeEntry).
		Node("click", workflow.TypeClick, testutil.Literal("X", value.Int(10)), testutil.Literal("Y", value.Int(20))).
		Node("double", workflow.TypeDoubleClick, testutil.Literal("X", value.Int(1)), testutil.Literal("Y", value.Int(2))).
		Node("right", workflow.TypeRightClick, testutil.Literal("X", value.Int(3)), testutil.Literal("Y", value.Int(4))).
		Node("move", workflow.TypeMouseMove, testutil.Literal("X", value.Int(5)), testutil.Literal("Y", value.Int(6))).
		Node("down", workflow.TypeMouseDown, testutil.Literal("Button", value.String("Middle"))).
		Node("up", workflow.TypeMouseUp).
		Node("scroll", workflow.TypeScroll).
		Node("press", workflow.TypeKeyPress).
		Node("kd", workflow.TypeKeyDown).
		Node("ku", workflow.TypeKeyUp).
		Node("text", workflow.TypeTypeText, testutil.Literal("Text", value.String("hi"))).
		Node("chars", workflow.TypeTypeString, testutil.Literal("Text", value.String("ab")), testutil.Literal("Delay", value.Int(1))).
		Node("hotkey", workflow.TypeHotKey, testutil.Literal("Key", value.String("v")), testutil.Literal("Shift", value.Bool(true))).
		Flow("entry", workflow.PortNext, "click").
		Flow("click", workflow.PortNext, "double").
		Flow("double", workflow.PortNext, "right").
		Flow("right", workflow.PortNext, "move").
		Flow("move", workflow.PortNext, "down").
		Flow("down", workflow.PortNext, "up").
		Flow("up", workflow.PortNext, "scroll").
		Flow("scroll", workflow.PortNext, "press").
		Flow("press", workflow.PortNext, "kd").
		Flow("kd", workflow.PortNext, "ku").
		Flow("ku", workflow.PortNext, "text").
		Flow("text", workflow.PortNext, "chars").
		Flow("chars", workflow.PortNext, "hotkey").
		Build()

	_, _, err := execute(t, g, RunOptions{}, WithCapabilities(capability.Set{Pointer: input, Keyboard: input}))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"click left 10,20 x1",
		"click left 1,2 x2",
		"click right 3,4 x1",
		"move 5,6",
		"down middle",
		"up left",
		"scroll 0,-3",
		"tap Return",
		"keydown Shift",
		"keyup Shift",
		"type hi",
		"type a",
		"type b",
		"tap ctrl+shift+v",
	}, input.Calls())
}

func TestReadInputAndPrint(t *testing.T) {
	g := testutil.NewGraph(t, "console").
		Node("entry", workflow.TypeEntry).
		Node("read", workflow.TypeReadInput).
		Node("print", workflow.TypePrint).
		Flow("entry", workflow.PortNext, "read").
		Flow("read", workflow.PortNext, "print").
		Wire("read", workflow.PortValue, "print", "String").
		Build()

	_, rec, err := execute(t, g, RunOptions{}, WithCapabilities(capability.Set{Console: testutil.NewConsole("typed")}))
	require.NoError(t, err)
	assert.Equal(t, []string{"typed"}, rec.logs(slog.LevelInfo))
}

func TestFileNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	g := testutil.NewGraph(t, "files").
		Var("content", value.TypeString, value.String("")).
		Node("entry", workflow.TypeEntry).
		Node("write", workflow.TypeFileWrite,
			testutil.Literal("Path", value.String(path)),
			testutil.Literal("Content", value.String("first"))).
		Node("read", workflow.TypeFileRead, testutil.Literal("Path", value.String(path))).
		Node("keep", workflow.TypeSetVariable, testutil.Named("content")).
		Flow("entry", workflow.PortNext, "write").
		Flow("write", workflow.PortNext, "keep").
		Wire("read", "Content", "keep", workflow.PortValue).
		Build()

	run, _, err := execute(t, g, RunOptions{}, WithCapabilities(capability.Set{Files: osFiles(t)}))
	require.NoError(t, err)
	assert.Equal(t, "first", variable(t, run, "content").ToString())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestScreenColorNodesUseLogicalPoints(t *testing.T) {
	img := whiteScreen(40, 40)
	img.SetRGBA(10, 12, color.RGBA{R: 255, A: 255})
	caps := capability.Set{Screen: capability.NewImageScreen(img, 2)}

	g := testutil.NewGraph(t, "color").
		Var("x", value.TypeInteger, value.Int(-1)).
		Var("y", value.TypeInteger, value.Int(-1)).
		Var("g", value.TypeInteger, value.Int(-1)).
		Node("entry", workflow.TypeEntry).
		Node("find", workflow.TypeFindColor, testutil.Literal("Tolerance", value.Int(0))).
		Node("pixel", workflow.TypeGetPixelColor).
		Node("setx", workflow.TypeSetVariable, testutil.Named("x")).
		Node("sety", workflow.TypeSetVariable, testutil.Named("y")).
		Node("setg", workflow.TypeSetVariable, testutil.Named("g")).
		Flow("entry", workflow.PortNext, "find").
		Flow("find", workflow.PortNext, "setx").
		Flow("setx", workflow.PortNext, "sety").
		Flow("sety", workflow.PortNext, "pixel").
		Flow("pixel", workflow.PortNext, "setg").
		Wire("find", "X", "setx", workflow.PortValue).
		Wire("find", "Y", "sety", workflow.PortValue).
		Wire("find", "X", "pixel", "X").
		Wire("find", "Y", "pixel", "Y").
		Wire("pixel", "G", "setg", workflow.PortValue).
		Build()

	run, _, err := execute(t, g, RunOptions{}, WithCapabilities(caps))
	require.NoError(t, err)
	assert.Equal(t, int64(5), variable(t, run, "x").ToInteger())
	assert.Equal(t, int64(6), variable(t, run, "y").ToInteger())
	assert.Equal(t, int64(0), variable(t, run, "g").ToInteger())
}

func TestWaitForColorTimesOut(t *testing.T) {
	caps := capability.Set{Screen: capability.NewImageScreen(whiteScreen(8, 8), 1)}
	g := testutil.NewGraph(t, "wait-color").
		Var("result", value.TypeString, value.String("")).
		Node("entry", workflow.TypeEntry).
		Node("wait", workflow.TypeWaitForColor, testutil.Literal("Timeout", value.Int(50))).
		Node("late", workflow.TypeSetVariable, testutil.Named("result"), testutil.Literal(workflow.PortValue, value.String("late"))).
		Flow("entry", workflow.PortNext, "wait").
		Flow("wait", workflow.PortTimedOut, "late").
		Build()

	run, _, err := execute(t, g, RunOptions{}, WithCapabilities(caps))
	require.NoError(t, err)
	assert.Equal(t, "late", variable(t, run, "result").ToString())
}

func TestScreenCaptureNodes(t *testing.T) {
	dir := t.TempDir()
	caps := capability.Set{
		Screen:     capability.NewImageScreen(noisyScreen(40, 30), 2),
		Files:      osFiles(t),
		CaptureDir: dir,
	}
	g := testutil.NewGraph(t, "capture").
		Var("full", value.TypeString, value.String("")).
		Var("region", value.TypeString, value.String("")).
		Var("saved", value.TypeString, value.String("")).
		Node("entry", workflow.TypeEntry).
		Node("capture", workflow.TypeScreenCapture).
		Node("keep-full", workflow.TypeSetVariable, testutil.Named("full")).
		Node("region", workflow.TypeRegionCapture,
			testutil.Literal("X", value.Int(2)), testutil.Literal("Y", value.Int(3)),
			testutil.Literal("Width", value.Int(5)), testutil.Literal("Height", value.Int(4)),
			testutil.Literal("Filename", value.String("region.png"))).
		Node("keep-region", workflow.TypeSetVariable, testutil.Named("region")).
		Node("save", workflow.TypeSaveScreenshot, testutil.Literal("Filename", value.String("copy.png"))).
		Node("keep-saved", workflow.TypeSetVariable, testutil.Named("saved")).
		Flow("entry", workflow.PortNext, "capture").
		Flow("capture", workflow.PortNext, "keep-full").
		Flow("keep-full", workflow.PortNext, "region").
		Flow("region", workflow.PortNext, "keep-region").
		Flow("keep-region", workflow.PortNext, "save").
		Flow("save", workflow.PortNext, "keep-saved").
		Wire("capture", "ImagePath", "keep-full", workflow.PortValue).
		Wire("region", "ImagePath", "keep-region", workflow.PortValue).
		Wire("capture", "ImagePath", "save", "ImagePath").
		Wire("save", "SavedPath", "keep-saved", workflow.PortValue).
		Build()

	run, rec, err := execute(t, g, RunOptions{}, WithCapabilities(caps))
	require.NoError(t, err)
	assert.Empty(t, rec.logs(slog.LevelWarn))

	full := variable(t, run, "full").ToString()
	assert.True(t, strings.HasPrefix(filepath.Base(full), "capture_"))
	img, err := imagematch.Load(full)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(40, 30), img.Bounds().Size())

	region, err := imagematch.Load(variable(t, run, "region").ToString())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(10, 8), region.Bounds().Size())
	assert.Equal(t, filepath.Join(dir, "region.png"), variable(t, run, "region").ToString())

	saved, err := imagematch.Load(variable(t, run, "saved").ToString())
	require.NoError(t, err)
	assert.Equal(t, 1.0, imagematch.CompareImages(img, saved, 0))
}

func TestImageNodes(t *testing.T) {
	dir := t.TempDir()
	screen := noisyScreen(64, 48)
	tplPath := filepath.Join(dir, "button.png")
	require.NoError(t, imagematch.Save(tplPath, imagematch.Crop(screen, image.Rect(20, 10, 30, 18))))

	caps := capability.Set{
		Screen: capability.NewImageScreen(screen, 1),
		Files:  osFiles(t),
	}
	g := testutil.NewGraph(t, "images").
		Var("x", value.TypeInteger, value.Int(-1)).
		Var("y", value.TypeInteger, value.Int(-1)).
		Var("waited", value.TypeBool, value.Bool(false)).
		Var("similar", value.TypeBool, value.Bool(false)).
		Node("entry", workflow.TypeEntry).
		Node("find", workflow.TypeFindImage,
			testutil.Literal("ImagePath", value.String(tplPath)),
			testutil.Literal("Tolerance", value.Int(5))).
		Node("setx", workflow.TypeSetVariable, testutil.Named("x")).
		Node("sety", workflow.TypeSetVariable, testutil.Named("y")).
		Node("wait", workflow.TypeWaitForImage,
			testutil.Literal("ImagePath", value.String(tplPath)),
			testutil.Literal("Timeout", value.Int(1000))).
		Node("waited", workflow.TypeSetVariable, testutil.Named("waited")).
		Node("same", workflow.TypeImageSimilarity,
			testutil.Literal("ImagePath1", value.String(tplPath)),
			testutil.Literal("ImagePath2", value.String(tplPath))).
		Node("similar", workflow.TypeSetVariable, testutil.Named("similar")).
		Flow("entry", workflow.PortNext, "find").
		Flow("find", workflow.PortNext, "setx").
		Flow("setx", workflow.PortNext, "sety").
		Flow("sety", workflow.PortNext, "wait").
		Flow("wait", workflow.PortNext, "waited").
		Flow("waited", workflow.PortNext, "similar").
		Wire("find", "X", "setx", workflow.PortValue).
		Wire("find", "Y", "sety", workflow.PortValue).
		Wire("wait", workflow.PortFound, "waited", workflow.PortValue).
		Wire("same", "Match", "similar", workflow.PortValue).
		Build()

	run, _, err := execute(t, g, RunOptions{}, WithCapabilities(caps))
	require.NoError(t, err)
	assert.Equal(t, int64(25), variable(t, run, "x").ToInteger())
	assert.Equal(t, int64(14), variable(t, run, "y").ToInteger())
	assert.True(t, variable(t, run, "waited").ToBool())
	assert.True(t, variable(t, run, "similar").ToBool())
}

func TestWaitForImageMissingTemplateTimesOut(t *testing.T) {
	caps := capability.Set{
		Screen: capability.NewImageScreen(noisyScreen(16, 16), 1),
		Files:  osFiles(t),
	}
	g := testutil.NewGraph(t, "missing-template").
		Var("result", value.TypeString, value.String("")).
		Node("entry", workflow.TypeEntry).
		Node("wait", workflow.TypeWaitForImage,
			testutil.Literal("ImagePath", value.String(filepath.Join(t.TempDir(), "none.png"))),
			testutil.Literal("Timeout", value.Int(0))).
		Node("late", workflow.TypeSetVariable, testutil.Named("result"), testutil.Literal(workflow.PortValue, value.String("late"))).
		Flow("entry", workflow.PortNext, "wait").
		Flow("wait", workflow.PortTimedOut, "late").
		Build()

	run, rec, err := execute(t, g, RunOptions{}, WithCapabilities(caps))
	require.NoError(t, err)
	assert.Equal(t, "late", variable(t, run, "result").ToString())
	assert.Contains(t, rec.logs(slog.LevelWarn), "wait for image failed")
}

// stuckScreen blocks every capture until released, ignoring its context.
type stuckScreen struct {
	entered chan struct{}
	release chan struct{}
}

func (s *stuckScreen) Capture(ctx context.Context, display int) (*image.RGBA, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return noisyScreen(16, 16), nil
}

func (s *stuckScreen) Scale() float64 { return 1 }

func TestScreenWaitsStopWhileCaptureBlocks(t *testing.T) {
	tplPath := filepath.Join(t.TempDir(), "button.png")
	require.NoError(t, imagematch.Save(tplPath, whiteScreen(4, 4)))

	waits := map[string]struct {
		typ  workflow.NodeType
		opts []testutil.NodeOption
	}{
		"image": {workflow.TypeWaitForImage, []testutil.NodeOption{
			testutil.Literal("ImagePath", value.String(tplPath)), testutil.Literal("Timeout", value.Int(0))}},
		"color": {workflow.TypeWaitForColor, []testutil.NodeOption{testutil.Literal("Timeout", value.Int(0))}},
	}
	for name, wait := range waits {
		t.Run(name, func(t *testing.T) {
			screen := &stuckScreen{entered: make(chan struct{}, 1), release: make(chan struct{})}
			t.Cleanup(func() { close(screen.release) })

			g := testutil.NewGraph(t, "stuck-"+name).
				Node("entry", workflow.TypeEntry).
				Node("wait", wait.typ, wait.opts...).
				Flow("entry", workflow.PortNext, "wait").
				Build()

			engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)),
				WithLimits(Limits{PollInterval: time.Millisecond}),
				WithCapabilities(capability.Set{Screen: screen, Files: osFiles(t)}))
			run, err := engine.Start(context.Background(), g, RunOptions{})
			require.NoError(t, err)

			select {
			case <-screen.entered:
			case <-time.After(5 * time.Second):
				t.Fatal("capture was never called")
			}
			run.Stop()

			select {
			case <-run.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("stop did not interrupt the blocked capture")
			}
			exec, err := run.Wait()
			require.ErrorIs(t, err, ErrStopped)
			assert.Equal(t, execution.StatusCancelled, exec.Status)
		})
	}
}
