package capability

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/dshills/nodeflow/pkg/imagematch"
)

// ImageScreen serves a still image as every display. It stands in for
// platform capture in headless runs and tests.
type ImageScreen struct {
	mu    sync.RWMutex
	img   *image.RGBA
	scale float64
}

// NewImageScreen serves img. A scale of 0 means 1.
func NewImageScreen(img *image.RGBA, scale float64) *ImageScreen {
	if scale <= 0 {
		scale = 1
	}
	return &ImageScreen{img: img, scale: scale}
}

// LoadImageScreen serves the PNG file at path.
func LoadImageScreen(path string, scale float64) (*ImageScreen, error) {
	img, err := imagematch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load screen image: %w", err)
	}
	return NewImageScreen(img, scale), nil
}

// SetImage replaces the served image.
func (s *ImageScreen) SetImage(img *image.RGBA) {
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

// Capture returns a copy of the served image.
func (s *ImageScreen) Capture(ctx context.Context, _ int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil, fmt.Errorf("no screen image loaded")
	}
	return imagematch.Crop(s.img, s.img.Bounds()), nil
}

// Scale returns the pixels per logical point.
func (s *ImageScreen) Scale() float64 {
	return s.scale
}
