package execution

import (
	"context"
	"image"
	"strings"

	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

func registerSystem(r *Registry) {
	r.RegisterFlow(workflow.TypePrint, func(c *Call) (string, error) {
		c.Info(c.String("String"))
		return workflow.PortNext, nil
	})
	r.RegisterFlow(workflow.TypeReadInput, readInput)
	r.RegisterValue(workflow.TypeFileRead, fileRead)
	r.RegisterFlow(workflow.TypeFileWrite, fileWrite)
	r.RegisterFlow(workflow.TypeRunCommand, runCommand)
	r.RegisterFlow(workflow.TypeLaunchApp, func(c *Call) (string, error) {
		path, args := c.String("Path"), strings.Fields(c.String("Args"))
		return c.effect("launch app", func(ctx context.Context) error {
			return c.Caps().Shell.Launch(ctx, path, args)
		})
	})
	r.RegisterFlow(workflow.TypeCloseApp, func(c *Call) (string, error) {
		name := c.String("Name")
		return c.effect("close app", func(ctx context.Context) error {
			return c.Caps().Shell.Close(ctx, name)
		})
	})
	r.RegisterFlow(workflow.TypeFocusWindow, func(c *Call) (string, error) {
		title := c.String("Title")
		return c.effect("focus window", func(ctx context.Context) error {
			return c.Caps().Windows.Focus(ctx, title)
		})
	})
	r.RegisterValue(workflow.TypeGetWindowPosition, windowPosition)
	r.RegisterFlow(workflow.TypeSetWindowPosition, func(c *Call) (string, error) {
		title := c.String("Title")
		x, y := int(c.Int("X")), int(c.Int("Y"))
		bounds := image.Rect(x, y, x+int(c.Int("Width")), y+int(c.Int("Height")))
		return c.effect("set window position", func(ctx context.Context) error {
			return c.Caps().Windows.SetBounds(ctx, title, bounds)
		})
	})
	r.RegisterFlow(workflow.TypeHTTPRequest, httpRequest)
}

// effect dispatches a collaborator call whose only output is Success.
func (c *Call) effect(op string, fn func(ctx context.Context) error) (string, error) {
	err := c.Dispatch(fn)
	if halt := c.Halted(err); halt != nil {
		return "", halt
	}
	if err != nil {
		c.Fail(op, err)
	}
	c.Set(workflow.PortSuccess, value.Bool(err == nil))
	return workflow.PortNext, nil
}

func readInput(c *Call) (string, error) {
	prompt := c.String("Prompt")
	var line string
	err := c.Dispatch(func(ctx context.Context) error {
		var err error
		line, err = c.Caps().Console.ReadLine(ctx, prompt)
		return err
	})
	if halt := c.Halted(err); halt != nil {
		return "", halt
	}
	if err != nil {
		c.Fail("read input", err)
	}
	c.Set(workflow.PortValue, value.String(line))
	return workflow.PortNext, nil
}

// fileRead rereads the file whenever run state has changed since the last read.
func fileRead(c *Call) Outputs {
	c.Volatile()
	data, err := c.Caps().Files.Read(c.Context(), c.String("Path"))
	if err != nil {
		c.Fail("read file", err)
		return Outputs{"Content": value.String(""), workflow.PortSuccess: value.Bool(false)}
	}
	return Outputs{"Content": value.String(string(data)), workflow.PortSuccess: value.Bool(true)}
}

func fileWrite(c *Call) (string, error) {
	path, content := c.String("Path"), c.String("Content")
	return c.effect("write file", func(ctx context.Context) error {
		return c.Caps().Files.Write(ctx, path, []byte(content))
	})
}

func runCommand(c *Call) (string, error) {
	command, args := c.String("Command"), strings.Fields(c.String("Args"))
	var res capability.CommandResult
	err := c.Dispatch(func(ctx context.Context) error {
		var err error
		res, err = c.Caps().Shell.Run(ctx, command, args)
		return err
	})
	if halt := c.Halted(err); halt != nil {
		return "", halt
	}
	if err != nil {
		c.Fail("run command", err)
	}
	c.Set("Output", value.String(res.Output))
	c.Set("ExitCode", value.Int(int64(res.ExitCode)))
	c.Set(workflow.PortSuccess, value.Bool(err == nil && res.ExitCode == 0))
	return workflow.PortNext, nil
}

// windowPosition queries the window once per run unless its title depends
// on run state.
func windowPosition(c *Call) Outputs {
	rect, err := c.Caps().Windows.Bounds(c.Context(), c.String("Title"))
	found := err == nil
	if !found {
		c.Fail("get window position", err)
		rect = image.Rectangle{}
	}
	return Outputs{
		"X":                value.Int(int64(rect.Min.X)),
		"Y":                value.Int(int64(rect.Min.Y)),
		"Width":            value.Int(int64(rect.Dx())),
		"Height":           value.Int(int64(rect.Dy())),
		workflow.PortFound: value.Bool(found),
	}
}

func httpRequest(c *Call) (string, error) {
	req := capability.Request{
		Method: strings.ToUpper(c.String("Method")),
		URL:    c.String("URL"),
		Body:   c.String("Body"),
	}
	var resp capability.Response
	err := c.Dispatch(func(ctx context.Context) error {
		var err error
		resp, err = c.Caps().HTTP.Do(ctx, req)
		return err
	})
	if halt := c.Halted(err); halt != nil {
		return "", halt
	}
	if err != nil {
		c.Fail("http request", err)
	}
	c.Set("Response", value.String(resp.Body))
	c.Set("Status", value.Int(int64(resp.Status)))
	c.Set(workflow.PortSuccess, value.Bool(err == nil && resp.Status >= 200 && resp.Status < 400))
	return workflow.PortNext, nil
}
