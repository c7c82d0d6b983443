package execution

import (
	"context"
	"strings"

	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/workflow"
)

func registerInput(r *Registry) {
	clicks := map[workflow.NodeType]struct {
		button capability.Button
		count  int
	}{
		workflow.TypeClick:       {capability.ButtonLeft, 1},
		workflow.TypeDoubleClick: {capability.ButtonLeft, 2},
		workflow.TypeRightClick:  {capability.ButtonRight, 1},
	}
	for t, click := range clicks {
		r.RegisterFlow(t, func(c *Call) (string, error) {
			x, y := int(c.Int("X")), int(c.Int("Y"))
			return c.automate(string(t), func(ctx context.Context, caps capability.Set) error {
				return caps.Pointer.Click(ctx, x, y, click.button, click.count)
			})
		})
	}
	r.RegisterFlow(workflow.TypeMouseMove, func(c *Call) (string, error) {
		x, y := int(c.Int("X")), int(c.Int("Y"))
		return c.automate("mouse move", func(ctx context.Context, caps capability.Set) error {
			return caps.Pointer.Move(ctx, x, y)
		})
	})
	r.RegisterFlow(workflow.TypeMouseDown, func(c *Call) (string, error) {
		button := mouseButton(c.String("Button"))
		return c.automate("mouse down", func(ctx context.Context, caps capability.Set) error {
			return caps.Pointer.ButtonDown(ctx, button)
		})
	})
	r.RegisterFlow(workflow.TypeMouseUp, func(c *Call) (string, error) {
		button := mouseButton(c.String("Button"))
		return c.automate("mouse up", func(ctx context.Context, caps capability.Set) error {
			return caps.Pointer.ButtonUp(ctx, button)
		})
	})
	r.RegisterFlow(workflow.TypeScroll, func(c *Call) (string, error) {
		dx, dy := int(c.Int("X")), int(c.Int("Y"))
		return c.automate("scroll", func(ctx context.Context, caps capability.Set) error {
			return caps.Pointer.Scroll(ctx, dx, dy)
		})
	})
	r.RegisterFlow(workflow.TypeKeyPress, func(c *Call) (string, error) {
		key := c.String("Key")
		return c.automate("key press", func(ctx context.Context, caps capability.Set) error {
			return caps.Keyboard.Tap(ctx, key, capability.Modifiers{})
		})
	})
	r.RegisterFlow(workflow.TypeKeyDown, func(c *Call) (string, error) {
		key := c.String("Key")
		return c.automate("key down", func(ctx context.Context, caps capability.Set) error {
			return caps.Keyboard.KeyDown(ctx, key)
		})
	})
	r.RegisterFlow(workflow.TypeKeyUp, func(c *Call) (string, error) {
		key := c.String("Key")
		return c.automate("key up", func(ctx context.Context, caps capability.Set) error {
			return caps.Keyboard.KeyUp(ctx, key)
		})
	})
	r.RegisterFlow(workflow.TypeTypeText, func(c *Call) (string, error) {
		text := c.String("Text")
		return c.automate("type text", func(ctx context.Context, caps capability.Set) error {
			return caps.Keyboard.Type(ctx, text)
		})
	})
	r.RegisterFlow(workflow.TypeTypeString, typeString)
	r.RegisterFlow(workflow.TypeHotKey, func(c *Call) (string, error) {
		key := c.String("Key")
		mods := capability.Modifiers{
			Ctrl:    c.Bool("Ctrl"),
			Shift:   c.Bool("Shift"),
			Alt:     c.Bool("Alt"),
			Command: c.Bool("Command"),
		}
		return c.automate("hotkey", func(ctx context.Context, caps capability.Set) error {
			return caps.Keyboard.Tap(ctx, key, mods)
		})
	})
}

// automate performs an input injection. Failures are logged and control
// continues on Next.
func (c *Call) automate(op string, fn func(ctx context.Context, caps capability.Set) error) (string, error) {
	if err := fn(c.Context(), c.Caps()); err != nil {
		if halt := c.Halted(err); halt != nil {
			return "", halt
		}
		c.Fail(op, err)
	}
	return workflow.PortNext, nil
}

// typeString types one rune at a time with a cancellable pause between them.
func typeString(c *Call) (string, error) {
	text := c.String("Text")
	pause := millis(c.Int("Delay"))
	first := true
	for _, r := range text {
		if !first {
			if err := c.Sleep(pause); err != nil {
				return "", err
			}
		}
		first = false
		if err := c.Caps().Keyboard.Type(c.Context(), string(r)); err != nil {
			if halt := c.Halted(err); halt != nil {
				return "", halt
			}
			c.Fail("type string", err)
			break
		}
	}
	return workflow.PortNext, nil
}

func mouseButton(name string) capability.Button {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "right":
		return capability.ButtonRight
	case "middle":
		return capability.ButtonMiddle
	default:
		return capability.ButtonLeft
	}
}
