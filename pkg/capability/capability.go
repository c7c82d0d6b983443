// Package capability defines the collaborators that graph nodes call to
// affect the outside world, and the default backends the CLI wires in.
package capability

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrUnsupported is returned by backends that cannot perform an operation
// on this platform.
var ErrUnsupported = errors.New("capability not supported")

// Button is a mouse button name: "left", "right" or "middle".
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Modifiers is the set of modifier keys held during a key press.
type Modifiers struct {
	Ctrl, Shift, Alt, Command bool
}

// Pointer injects mouse events. Coordinates are logical screen points.
type Pointer interface {
	Move(ctx context.Context, x, y int) error
	Click(ctx context.Context, x, y int, button Button, count int) error
	ButtonDown(ctx context.Context, button Button) error
	ButtonUp(ctx context.Context, button Button) error
	Scroll(ctx context.Context, dx, dy int) error
}

// Keyboard injects key events.
type Keyboard interface {
	Tap(ctx context.Context, key string, mods Modifiers) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
	Type(ctx context.Context, text string) error
}

// Screen captures displays.
type Screen interface {
	// Capture returns the pixels of a display.
	Capture(ctx context.Context, display int) (*image.RGBA, error)
	// Scale is the number of captured pixels per logical point.
	Scale() float64
}

// Windows queries and moves top-level windows by title.
type Windows interface {
	Focus(ctx context.Context, title string) error
	Bounds(ctx context.Context, title string) (image.Rectangle, error)
	SetBounds(ctx context.Context, title string, r image.Rectangle) error
}

// CommandResult is the outcome of a finished command.
type CommandResult struct {
	Output   string
	ExitCode int
}

// Shell runs and manages processes.
type Shell interface {
	// Run executes a command and waits for it. A non-zero exit is reported
	// through ExitCode together with an error.
	Run(ctx context.Context, command string, args []string) (CommandResult, error)
	// Launch starts an application without waiting for it.
	Launch(ctx context.Context, path string, args []string) error
	// Close terminates applications by name.
	Close(ctx context.Context, name string) error
}

// Request is an HTTP request issued by a node.
type Request struct {
	Method  string
	URL     string
	Body    string
	Headers map[string]string
}

// Response is the body and status of an HTTP exchange.
type Response struct {
	Status int
	Body   string
}

// HTTP performs network requests.
type HTTP interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Files reads and writes files.
type Files interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	// Resolve maps a node-supplied path to the path actually used.
	Resolve(path string) (string, error)
}

// Console reads user input.
type Console interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Set bundles every collaborator a run may call.
type Set struct {
	Pointer  Pointer
	Keyboard Keyboard
	Screen   Screen
	Windows  Windows
	Shell    Shell
	HTTP     HTTP
	Files    Files
	Console  Console
	// CaptureDir receives the PNG files written by capture nodes.
	CaptureDir string
	// Clock supplies timestamps; nil means time.Now.
	Clock func() time.Time
}

// WithDefaults returns a copy of s with every nil collaborator replaced by
// an Unsupported backend.
func (s Set) WithDefaults() Set {
	u := Unsupported{}
	if s.Pointer == nil {
		s.Pointer = u
	}
	if s.Keyboard == nil {
		s.Keyboard = u
	}
	if s.Screen == nil {
		s.Screen = u
	}
	if s.Windows == nil {
		s.Windows = u
	}
	if s.Shell == nil {
		s.Shell = u
	}
	if s.HTTP == nil {
		s.HTTP = u
	}
	if s.Files == nil {
		s.Files = u
	}
	if s.Console == nil {
		s.Console = u
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return s
}

// Unsupported implements every collaborator by failing with ErrUnsupported.
type Unsupported struct{}

var (
	_ Pointer  = Unsupported{}
	_ Keyboard = Unsupported{}
	_ Screen   = Unsupported{}
	_ Windows  = Unsupported{}
	_ Shell    = Unsupported{}
	_ HTTP     = Unsupported{}
	_ Files    = Unsupported{}
	_ Console  = Unsupported{}
)

func (Unsupported) Move(context.Context, int, int) error                { return ErrUnsupported }
func (Unsupported) Click(context.Context, int, int, Button, int) error  { return ErrUnsupported }
func (Unsupported) Scroll(context.Context, int, int) error              { return ErrUnsupported }
func (Unsupported) Tap(context.Context, string, Modifiers) error        { return ErrUnsupported }
func (Unsupported) Type(context.Context, string) error                  { return ErrUnsupported }
func (Unsupported) Focus(context.Context, string) error                 { return ErrUnsupported }
func (Unsupported) Launch(context.Context, string, []string) error      { return ErrUnsupported }
func (Unsupported) Close(context.Context, string) error                 { return ErrUnsupported }
func (Unsupported) Write(context.Context, string, []byte) error         { return ErrUnsupported }
func (Unsupported) SetBounds(context.Context, string, image.Rectangle) error {
	return ErrUnsupported
}

func (Unsupported) ButtonDown(context.Context, Button) error { return ErrUnsupported }
func (Unsupported) ButtonUp(context.Context, Button) error   { return ErrUnsupported }
func (Unsupported) KeyDown(context.Context, string) error    { return ErrUnsupported }
func (Unsupported) KeyUp(context.Context, string) error      { return ErrUnsupported }

func (Unsupported) Capture(context.Context, int) (*image.RGBA, error) { return nil, ErrUnsupported }
func (Unsupported) Scale() float64                                     { return 1 }
func (Unsupported) Bounds(context.Context, string) (image.Rectangle, error) {
	return image.Rectangle{}, ErrUnsupported
}
func (Unsupported) Run(context.Context, string, []string) (CommandResult, error) {
	return CommandResult{ExitCode: -1}, ErrUnsupported
}
func (Unsupported) Do(context.Context, Request) (Response, error) { return Response{}, ErrUnsupported }
func (Unsupported) Read(context.Context, string) ([]byte, error) { return nil, ErrUnsupported }
func (Unsupported) Resolve(string) (string, error)               { return "", ErrUnsupported }
func (Unsupported) ReadLine(context.Context, string) (string, error) {
	return "", ErrUnsupported
}
