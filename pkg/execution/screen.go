package execution

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dshills/nodeflow/pkg/imagematch"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// SimilarityMatch is the ImageSimilarity score at which Match is true.
const SimilarityMatch = 0.95

// screenPoll is how often WaitForColor and WaitForImage recapture.
const screenPoll = 100 * time.Millisecond

var captureSeq atomic.Uint64

func registerScreen(r *Registry) {
	r.RegisterFlow(workflow.TypeScreenCapture, screenCapture)
	r.RegisterFlow(workflow.TypeSaveScreenshot, saveScreenshot)
	r.RegisterFlow(workflow.TypeRegionCapture, regionCapture)
	r.RegisterFlow(workflow.TypeGetPixelColor, pixelColor)
	r.RegisterFlow(workflow.TypeFindColor, findColor)
	r.RegisterFlow(workflow.TypeWaitForColor, waitForColor)
	r.RegisterFlow(workflow.TypeFindImage, findImage)
	r.RegisterFlow(workflow.TypeWaitForImage, waitForImage)
	r.RegisterValue(workflow.TypeImageSimilarity, imageSimilarity)
}

// Node coordinates are logical points; captures are in device pixels.

func (c *Call) scale() float64 {
	if s := c.Caps().Screen.Scale(); s > 0 {
		return s
	}
	return 1
}

func (c *Call) toPixels(v int64) int {
	return int(math.Round(float64(v) * c.scale()))
}

func (c *Call) toPoints(px int) int64 {
	return int64(math.Round(float64(px) / c.scale()))
}

// region reads a logical rectangle and returns it in pixels. An empty
// rectangle means the whole capture.
func (c *Call) region(x, y, w, h string) image.Rectangle {
	rx, ry := c.Int(x), c.Int(y)
	rw, rh := c.Int(w), c.Int(h)
	if rw <= 0 || rh <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(c.toPixels(rx), c.toPixels(ry), c.toPixels(rx+rw), c.toPixels(ry+rh))
}

// capture grabs a display off the run goroutine.
func (c *Call) capture(display int) (*image.RGBA, error) {
	var img *image.RGBA
	err := c.Dispatch(func(ctx context.Context) error {
		var err error
		img, err = c.Caps().Screen.Capture(ctx, display)
		return err
	})
	return img, err
}

// loadImage decodes a PNG through the files collaborator.
func (c *Call) loadImage(path string) (*image.RGBA, error) {
	data, err := c.Caps().Files.Read(c.Context(), path)
	if err != nil {
		return nil, err
	}
	return imagematch.Decode(data)
}

// saveImage writes img as PNG. An empty name gets a generated one in the
// capture directory; relative names are placed there too.
func (c *Call) saveImage(img image.Image, name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("capture_%d_%d.png", c.Now().UnixMilli(), captureSeq.Add(1))
	}
	if !filepath.IsAbs(name) {
		dir := c.Caps().CaptureDir
		if dir == "" {
			dir = os.TempDir()
		}
		name = filepath.Join(dir, name)
	}
	data, err := imagematch.Encode(img)
	if err != nil {
		return "", err
	}
	if err := c.Caps().Files.Write(c.Context(), name, data); err != nil {
		return "", err
	}
	return c.Caps().Files.Resolve(name)
}

// screenFailure reports a failed screen operation unless the run is unwinding.
func (c *Call) screenFailure(op string, err error) error {
	if halt := c.Halted(err); halt != nil {
		return halt
	}
	c.Fail(op, err)
	return nil
}

func screenCapture(c *Call) (string, error) {
	img, err := c.capture(int(c.Int("Display")))
	path := ""
	if err == nil {
		path, err = c.saveImage(img, "")
	}
	if err != nil {
		if halt := c.screenFailure("screen capture", err); halt != nil {
			return "", halt
		}
	}
	c.Set("ImagePath", value.String(path))
	c.Set(workflow.PortSuccess, value.Bool(err == nil))
	return workflow.PortNext, nil
}

// saveScreenshot copies an earlier capture to Filename, or captures the
// primary display when no ImagePath is given.
func saveScreenshot(c *Call) (string, error) {
	source, filename := c.String("ImagePath"), c.String("Filename")
	var (
		img *image.RGBA
		err error
	)
	if source == "" {
		img, err = c.capture(0)
	} else {
		img, err = c.loadImage(source)
	}
	saved := ""
	if err == nil {
		saved, err = c.saveImage(img, filename)
	}
	if err != nil {
		if halt := c.screenFailure("save screenshot", err); halt != nil {
			return "", halt
		}
	}
	c.Set("SavedPath", value.String(saved))
	c.Set(workflow.PortSuccess, value.Bool(err == nil))
	return workflow.PortNext, nil
}

func regionCapture(c *Call) (string, error) {
	rect := c.region("X", "Y", "Width", "Height")
	filename := c.String("Filename")
	img, err := c.capture(0)
	path := ""
	if err == nil {
		if rect.Empty() || rect.Intersect(img.Bounds()).Empty() {
			err = fmt.Errorf("region %v is outside the screen", rect)
		} else {
			path, err = c.saveImage(imagematch.Crop(img, rect), filename)
		}
	}
	if err != nil {
		if halt := c.screenFailure("region capture", err); halt != nil {
			return "", halt
		}
	}
	c.Set("ImagePath", value.String(path))
	c.Set(workflow.PortSuccess, value.Bool(err == nil))
	return workflow.PortNext, nil
}

func pixelColor(c *Call) (string, error) {
	x, y := c.toPixels(c.Int("X")), c.toPixels(c.Int("Y"))
	img, err := c.capture(0)
	var px color.RGBA
	ok := false
	if err == nil {
		px, ok = imagematch.PixelAt(img, x, y)
		if !ok {
			err = fmt.Errorf("pixel %d,%d is outside the screen", x, y)
		}
	}
	if err != nil {
		if halt := c.screenFailure("get pixel color", err); halt != nil {
			return "", halt
		}
	}
	c.Set("R", value.Int(int64(px.R)))
	c.Set("G", value.Int(int64(px.G)))
	c.Set("B", value.Int(int64(px.B)))
	c.Set(workflow.PortSuccess, value.Bool(ok))
	return workflow.PortNext, nil
}

func (c *Call) targetColor() color.RGBA {
	return color.RGBA{R: channel(c.Int("R")), G: channel(c.Int("G")), B: channel(c.Int("B")), A: 255}
}

func channel(v int64) uint8 {
	return uint8(min(max(v, 0), 255))
}

func findColor(c *Call) (string, error) {
	target, tolerance := c.targetColor(), int(c.Int("Tolerance"))
	rect := c.region("RegionX", "RegionY", "RegionW", "RegionH")
	img, err := c.capture(0)
	var (
		at    image.Point
		found bool
	)
	if err == nil {
		at, found = imagematch.FindColor(img, target, tolerance, rect)
	} else if halt := c.screenFailure("find color", err); halt != nil {
		return "", halt
	}
	c.Set("X", value.Int(c.toPoints(at.X)))
	c.Set("Y", value.Int(c.toPoints(at.Y)))
	c.Set(workflow.PortFound, value.Bool(found))
	return workflow.PortNext, nil
}

func waitForColor(c *Call) (string, error) {
	target, tolerance := c.targetColor(), int(c.Int("Tolerance"))
	x, y := c.toPixels(c.Int("X")), c.toPixels(c.Int("Y"))
	timeout := millis(c.Int("Timeout"))

	var lastErr, halt error
	found, err := c.PollUntil(screenPoll, timeout, func() bool {
		img, err := c.capture(0)
		if err != nil {
			if halt = c.Halted(err); halt != nil {
				return true
			}
			lastErr = err
			return false
		}
		px, ok := imagematch.PixelAt(img, x, y)
		return ok && imagematch.Near(px, target, tolerance)
	})
	if err == nil {
		err = halt
	}
	if err != nil {
		return "", err
	}
	if !found && lastErr != nil {
		c.Fail("wait for color", lastErr)
	}
	c.Set(workflow.PortFound, value.Bool(found))
	if !found {
		return workflow.PortTimedOut, nil
	}
	return workflow.PortNext, nil
}

// locate searches the screen for a template and returns the match center in
// logical points.
func (c *Call) locate(ctx context.Context, tpl *image.RGBA, tolerance int, rect image.Rectangle) (imagematch.Match, image.Point, bool, error) {
	hay, err := c.Caps().Screen.Capture(ctx, 0)
	if err != nil {
		return imagematch.Match{}, image.Point{}, false, err
	}
	var opts []imagematch.Option
	if !rect.Empty() {
		opts = append(opts, imagematch.WithRegion(rect))
	}
	m, ok := imagematch.FindTemplate(ctx, hay, tpl, tolerance, opts...)
	if !ok {
		return m, image.Point{}, false, ctx.Err()
	}
	center := m.Center()
	return m, image.Point{X: int(c.toPoints(center.X)), Y: int(c.toPoints(center.Y))}, true, nil
}

func findImage(c *Call) (string, error) {
	path, tolerance := c.String("ImagePath"), int(c.Int("Tolerance"))
	rect := c.region("RegionX", "RegionY", "RegionW", "RegionH")

	var (
		match imagematch.Match
		at    image.Point
		found bool
	)
	tpl, err := c.loadImage(path)
	if err == nil {
		err = c.Dispatch(func(ctx context.Context) error {
			var err error
			match, at, found, err = c.locate(ctx, tpl, tolerance, rect)
			return err
		})
	}
	if err != nil {
		if halt := c.screenFailure("find image", err); halt != nil {
			return "", halt
		}
		found = false
	}
	c.Set("X", value.Int(int64(at.X)))
	c.Set("Y", value.Int(int64(at.Y)))
	c.Set("Score", value.Float(match.Score))
	c.Set(workflow.PortFound, value.Bool(found))
	return workflow.PortNext, nil
}

func waitForImage(c *Call) (string, error) {
	path, tolerance := c.String("ImagePath"), int(c.Int("Tolerance"))
	timeout := millis(c.Int("Timeout"))

	tpl, err := c.loadImage(path)
	if err != nil {
		c.Fail("wait for image", err)
		c.Set("X", value.Int(0))
		c.Set("Y", value.Int(0))
		c.Set(workflow.PortFound, value.Bool(false))
		return workflow.PortTimedOut, nil
	}

	var (
		at      image.Point
		lastErr error
		halt    error
	)
	found, err := c.PollUntil(screenPoll, timeout, func() bool {
		var (
			p  image.Point
			ok bool
		)
		err := c.Dispatch(func(ctx context.Context) error {
			var err error
			_, p, ok, err = c.locate(ctx, tpl, tolerance, image.Rectangle{})
			return err
		})
		if err != nil {
			if halt = c.Halted(err); halt != nil {
				return true
			}
			lastErr = err
		}
		if ok {
			at = p
		}
		return ok
	})
	if err == nil {
		err = halt
	}
	if err != nil {
		return "", err
	}
	if !found && lastErr != nil {
		c.Fail("wait for image", lastErr)
	}
	c.Set("X", value.Int(int64(at.X)))
	c.Set("Y", value.Int(int64(at.Y)))
	c.Set(workflow.PortFound, value.Bool(found))
	if !found {
		return workflow.PortTimedOut, nil
	}
	return workflow.PortNext, nil
}

func imageSimilarity(c *Call) Outputs {
	tolerance := int(c.Int("Tolerance"))
	a, err := c.loadImage(c.String("ImagePath1"))
	var b *image.RGBA
	if err == nil {
		b, err = c.loadImage(c.String("ImagePath2"))
	}
	if err != nil {
		c.Fail("image similarity", err)
		return Outputs{"Similarity": value.Float(0), "Match": value.Bool(false)}
	}
	score := imagematch.CompareImages(a, b, tolerance)
	return Outputs{"Similarity": value.Float(score), "Match": value.Bool(score >= SimilarityMatch)}
}
