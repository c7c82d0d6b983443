// Package imagematch locates templates and colors in captured screen images.
package imagematch

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
)

// Load decodes a PNG file into an RGBA buffer.
func Load(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return ToRGBA(img), nil
}

// Decode decodes PNG data into an RGBA buffer.
func Decode(data []byte) (*image.RGBA, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToRGBA(img), nil
}

// Encode returns img as PNG data.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Save encodes img as PNG at path.
func Save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	return f.Close()
}

// ToRGBA returns img as an RGBA buffer whose bounds start at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Crop copies the part of img inside r. The result is empty when r misses img.
func Crop(img *image.RGBA, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// HalfScale shrinks img by two in each dimension, averaging 2x2 blocks.
func HalfScale(img *image.RGBA) *image.RGBA {
	w, h := img.Bounds().Dx()/2, img.Bounds().Dy()/2
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]int
			for dy := 0; dy < 2; dy++ {
				i := img.PixOffset(2*x, 2*y+dy)
				for c := 0; c < 4; c++ {
					sum[c] += int(img.Pix[i+c]) + int(img.Pix[i+4+c])
				}
			}
			o := out.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				out.Pix[o+c] = uint8((sum[c] + 2) / 4)
			}
		}
	}
	return out
}

// PixelAt returns the color at (x, y), or false outside the image.
func PixelAt(img *image.RGBA, x, y int) (color.RGBA, bool) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return color.RGBA{}, false
	}
	return img.RGBAAt(x, y), true
}

// Near reports whether every color channel of a and b differs by at most tolerance.
func Near(a, b color.RGBA, tolerance int) bool {
	return absDiff(a.R, b.R) <= tolerance && absDiff(a.G, b.G) <= tolerance && absDiff(a.B, b.B) <= tolerance
}

// FindColor scans region row by row and returns the first pixel near c.
// An empty region means the whole image.
func FindColor(img *image.RGBA, c color.RGBA, tolerance int, region image.Rectangle) (image.Point, bool) {
	r := clip(img, region)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if Near(img.RGBAAt(x, y), c, tolerance) {
				return image.Point{X: x, Y: y}, true
			}
		}
	}
	return image.Point{}, false
}

// CompareImages returns the fraction of sampled pixels whose channels are all
// within tolerance. Images of different sizes score 0. Images over 10000
// pixels are sampled every total/10000 pixels along both axes, so a
// 1000x1000 image is judged on a 10x10 grid.
func CompareImages(a, b *image.RGBA, tolerance int) float64 {
	if a.Bounds().Size() != b.Bounds().Size() {
		return 0
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	total := w * h
	if total == 0 {
		return 0
	}
	step := total / 10000
	if step < 1 {
		step = 1
	}

	var matching, sampled int
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			pa := a.RGBAAt(a.Bounds().Min.X+x, a.Bounds().Min.Y+y)
			pb := b.RGBAAt(b.Bounds().Min.X+x, b.Bounds().Min.Y+y)
			if Near(pa, pb, tolerance) {
				matching++
			}
			sampled++
		}
	}
	return float64(matching) / float64(sampled)
}

func clip(img *image.RGBA, region image.Rectangle) image.Rectangle {
	if region.Empty() {
		return img.Bounds()
	}
	return region.Intersect(img.Bounds())
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
