package imagematch

import (
	"context"
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MaxTolerance is the tolerance at which every position qualifies.
const MaxTolerance = 255

// flatEpsilon is the variance below which a template counts as a single color.
const flatEpsilon = 1e-9

// Match is the best template location, in haystack pixels.
type Match struct {
	X, Y          int
	Width, Height int
	Score         float64
	// Scale is the haystack scale the match was found at (1 or 0.5).
	Scale float64
}

// Center returns the middle of the matched area.
func (m Match) Center() image.Point {
	return image.Point{X: m.X + m.Width/2, Y: m.Y + m.Height/2}
}

// Threshold converts a 0-255 tolerance into the minimum correlation score.
// Tolerance 0 demands a near exact match; 255 accepts anything.
func Threshold(tolerance int) float64 {
	t := clampTolerance(tolerance)
	return 0.99 - 0.99*float64(t)/MaxTolerance
}

type options struct {
	region    image.Rectangle
	halfScale bool
	workers   int
}

// Option configures FindTemplate.
type Option func(*options)

// WithRegion restricts the search to r, in haystack pixels.
func WithRegion(r image.Rectangle) Option {
	return func(o *options) { o.region = r }
}

// WithoutHalfScale disables the reduced-scale retry.
func WithoutHalfScale() Option {
	return func(o *options) { o.halfScale = false }
}

// WithWorkers bounds the number of rows searched concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// FindTemplate searches haystack for template with zero-mean normalized
// cross-correlation over luminance. Template pixels with alpha below 128 are
// ignored. The native scale is searched first; when nothing clears the
// threshold the haystack is halved and searched again, and a hit there is
// mapped back to native coordinates.
func FindTemplate(ctx context.Context, haystack, template *image.RGBA, tolerance int, opts ...Option) (Match, bool) {
	o := options{halfScale: true, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}

	tpl := newPattern(template)
	if tpl == nil {
		return Match{}, false
	}

	region := clip(haystack, o.region)
	if m, ok := search(ctx, newLuma(haystack), tpl, region, tolerance, o.workers); ok {
		m.Scale = 1
		return m, true
	}

	if !o.halfScale {
		return Match{}, false
	}
	half := HalfScale(haystack)
	if half.Bounds().Dx() < tpl.w || half.Bounds().Dy() < tpl.h {
		return Match{}, false
	}
	halfRegion := image.Rect(region.Min.X/2, region.Min.Y/2, region.Max.X/2, region.Max.Y/2)
	m, ok := search(ctx, newLuma(half), tpl, halfRegion, tolerance, o.workers)
	if !ok {
		return Match{}, false
	}
	m.X, m.Y = m.X*2, m.Y*2
	m.Width, m.Height = tpl.w*2, tpl.h*2
	m.Scale = 0.5
	return m, true
}

type candidate struct {
	x, y  int
	score float64
	ok    bool
}

func search(ctx context.Context, hay *luma, tpl *pattern, region image.Rectangle, tolerance, workers int) (Match, bool) {
	lastX := region.Max.X - tpl.w
	lastY := region.Max.Y - tpl.h
	if lastX < region.Min.X || lastY < region.Min.Y {
		return Match{}, false
	}

	threshold := Threshold(tolerance)
	anything := clampTolerance(tolerance) >= MaxTolerance

	rows := make([]candidate, lastY-region.Min.Y+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for y := region.Min.Y; y <= lastY; y++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			best := candidate{score: math.Inf(-1)}
			for x := region.Min.X; x <= lastX; x++ {
				score, ok := tpl.score(hay, x, y, tolerance)
				if !ok && !anything {
					continue
				}
				if score < threshold && !anything {
					continue
				}
				if score > best.score {
					best = candidate{x: x, y: y, score: score, ok: true}
				}
			}
			rows[y-region.Min.Y] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Match{}, false
	}

	var best candidate
	for _, c := range rows {
		if c.ok && (!best.ok || c.score > best.score) {
			best = c
		}
	}
	if !best.ok {
		return Match{}, false
	}
	return Match{X: best.x, Y: best.y, Width: tpl.w, Height: tpl.h, Score: best.score}, true
}

// luma is a luminance plane.
type luma struct {
	w, h int
	pix  []float64
}

func newLuma(img *image.RGBA) *luma {
	b := img.Bounds()
	l := &luma{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			l.pix[y*l.w+x] = luminance(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		}
	}
	return l
}

func luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// pattern is a template prepared for correlation: the offsets of its opaque
// pixels and their deviations from the template mean.
type pattern struct {
	w, h    int
	offsets []image.Point
	dev     []float64
	mean    float64
	norm    float64 // sum of squared deviations
	flat    bool
}

func newPattern(img *image.RGBA) *pattern {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	p := &pattern{w: b.Dx(), h: b.Dy()}
	var values []float64
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			if img.Pix[i+3] < 128 {
				continue
			}
			p.offsets = append(p.offsets, image.Point{X: x, Y: y})
			values = append(values, luminance(img.Pix[i], img.Pix[i+1], img.Pix[i+2]))
		}
	}
	if len(values) == 0 {
		return nil
	}

	for _, v := range values {
		p.mean += v
	}
	p.mean /= float64(len(values))
	p.dev = make([]float64, len(values))
	for i, v := range values {
		d := v - p.mean
		p.dev[i] = d
		p.norm += d * d
	}
	p.flat = p.norm/float64(len(values)) < flatEpsilon
	return p
}

// score correlates the pattern with the window whose top-left corner is
// (x, y). A flat pattern has no correlation; it scores by mean absolute
// difference and qualifies only when every pixel is within tolerance.
func (p *pattern) score(hay *luma, x, y, tolerance int) (float64, bool) {
	if p.flat {
		var sum, worst float64
		for _, off := range p.offsets {
			d := math.Abs(hay.pix[(y+off.Y)*hay.w+x+off.X] - p.mean)
			sum += d
			worst = math.Max(worst, d)
		}
		score := 1 - sum/float64(len(p.offsets))/MaxTolerance
		return score, worst <= float64(clampTolerance(tolerance))+0.5
	}

	var sumS, sumS2, cross float64
	for i, off := range p.offsets {
		s := hay.pix[(y+off.Y)*hay.w+x+off.X]
		sumS += s
		sumS2 += s * s
		cross += s * p.dev[i]
	}
	n := float64(len(p.offsets))
	variance := sumS2 - sumS*sumS/n
	if variance <= flatEpsilon {
		return 0, true
	}
	return cross / math.Sqrt(variance*p.norm), true
}

func clampTolerance(t int) int {
	if t < 0 {
		return 0
	}
	if t > MaxTolerance {
		return MaxTolerance
	}
	return t
}
