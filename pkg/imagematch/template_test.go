package imagematch

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noise(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func paste(dst, src *image.RGBA, at image.Point) {
	draw.Draw(dst, src.Bounds().Add(at), src, image.Point{}, draw.Src)
}

func fill(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func upscale2(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			out.SetRGBA(x, y, img.RGBAAt(x/2, y/2))
		}
	}
	return out
}

func TestThreshold(t *testing.T) {
	assert.InDelta(t, 0.99, Threshold(0), 1e-12)
	assert.InDelta(t, 0.0, Threshold(255), 1e-12)
	assert.InDelta(t, 0.99, Threshold(-5), 1e-12)
	assert.InDelta(t, 0.0, Threshold(400), 1e-12)
	assert.Greater(t, Threshold(10), Threshold(20))
}

func TestFindTemplate_ExactCopy(t *testing.T) {
	hay := noise(200, 150, 1)
	tpl := noise(20, 20, 2)
	paste(hay, tpl, image.Pt(50, 50))

	m, ok := FindTemplate(context.Background(), hay, tpl, 0)
	require.True(t, ok)
	assert.Equal(t, 50, m.X)
	assert.Equal(t, 50, m.Y)
	assert.GreaterOrEqual(t, m.Score, Threshold(0))
	assert.Equal(t, 1.0, m.Scale)
	assert.Equal(t, image.Pt(60, 60), m.Center())
}

func TestFindTemplate_Absent(t *testing.T) {
	hay := noise(200, 150, 1)
	tpl := noise(20, 20, 3)

	_, ok := FindTemplate(context.Background(), hay, tpl, 0)
	assert.False(t, ok)
}

func TestFindTemplate_RegionBoundsSearch(t *testing.T) {
	hay := noise(200, 150, 4)
	tpl := noise(16, 16, 5)
	paste(hay, tpl, image.Pt(120, 90))

	_, ok := FindTemplate(context.Background(), hay, tpl, 0, WithRegion(image.Rect(0, 0, 100, 100)))
	assert.False(t, ok)

	m, ok := FindTemplate(context.Background(), hay, tpl, 0, WithRegion(image.Rect(100, 80, 200, 150)))
	require.True(t, ok)
	assert.Equal(t, image.Pt(120, 90), image.Pt(m.X, m.Y))
}

func TestFindTemplate_HalfScale(t *testing.T) {
	logical := noise(100, 80, 6)
	tpl := noise(16, 16, 7)
	paste(logical, tpl, image.Pt(30, 40))
	physical := upscale2(logical)

	_, ok := FindTemplate(context.Background(), physical, tpl, 0, WithoutHalfScale())
	assert.False(t, ok)

	m, ok := FindTemplate(context.Background(), physical, tpl, 0)
	require.True(t, ok)
	assert.Equal(t, 0.5, m.Scale)
	assert.Equal(t, image.Pt(60, 80), image.Pt(m.X, m.Y))
	assert.Equal(t, 32, m.Width)
}

func TestFindTemplate_FlatTemplate(t *testing.T) {
	hay := fill(60, 60, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	red := color.RGBA{R: 200, G: 30, B: 30, A: 255}
	paste(hay, fill(8, 8, red), image.Pt(20, 30))

	m, ok := FindTemplate(context.Background(), hay, fill(8, 8, red), 0)
	require.True(t, ok)
	assert.Equal(t, image.Pt(20, 30), image.Pt(m.X, m.Y))

	_, ok = FindTemplate(context.Background(), hay, fill(8, 8, color.RGBA{G: 200, A: 255}), 0)
	assert.False(t, ok)
}

func TestFindTemplate_TransparentTemplate(t *testing.T) {
	_, ok := FindTemplate(context.Background(), noise(40, 40, 8), image.NewRGBA(image.Rect(0, 0, 4, 4)), 255)
	assert.False(t, ok)

	_, ok = FindTemplate(context.Background(), noise(10, 10, 8), noise(20, 20, 9), 255)
	assert.False(t, ok, "template larger than haystack")
}

func TestFindTemplate_Cancelled(t *testing.T) {
	hay := noise(120, 120, 10)
	tpl := noise(10, 10, 11)
	paste(hay, tpl, image.Pt(5, 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := FindTemplate(ctx, hay, tpl, 0)
	assert.False(t, ok)
}

func TestFindColorAndPixelAt(t *testing.T) {
	img := fill(30, 30, color.RGBA{A: 255})
	img.SetRGBA(12, 7, color.RGBA{R: 250, G: 5, B: 5, A: 255})

	p, ok := FindColor(img, color.RGBA{R: 255, A: 255}, 10, image.Rectangle{})
	require.True(t, ok)
	assert.Equal(t, image.Pt(12, 7), p)

	_, ok = FindColor(img, color.RGBA{R: 255, A: 255}, 10, image.Rect(0, 10, 30, 30))
	assert.False(t, ok)

	c, ok := PixelAt(img, 12, 7)
	require.True(t, ok)
	assert.Equal(t, uint8(250), c.R)
	_, ok = PixelAt(img, 31, 0)
	assert.False(t, ok)
}

func TestCompareImages(t *testing.T) {
	a := noise(50, 50, 12)
	assert.Equal(t, 1.0, CompareImages(a, a, 0))
	assert.Equal(t, 0.0, CompareImages(a, noise(40, 50, 12), 255))

	b := ToRGBA(a)
	b = Crop(b, b.Bounds())
	draw.Draw(b, image.Rect(0, 0, 25, 50), &image.Uniform{C: color.RGBA{A: 255}}, image.Point{}, draw.Src)
	assert.InDelta(t, 0.5, CompareImages(a, b, 0), 0.05)
}

func TestCompareImagesSamplesLargeImagesOnGrid(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	draw.Draw(a, a.Bounds(), &image.Uniform{C: color.RGBA{R: 255, G: 255, B: 255, A: 255}}, image.Point{}, draw.Src)
	black := &image.Uniform{C: color.RGBA{A: 255}}

	// Row 1 lies between grid rows and is never sampled.
	offGrid := Crop(a, a.Bounds())
	draw.Draw(offGrid, image.Rect(0, 1, 1000, 2), black, image.Point{}, draw.Src)
	assert.Equal(t, 1.0, CompareImages(a, offGrid, 0))

	// Row 0 holds 10 of the 100 samples.
	onGrid := Crop(a, a.Bounds())
	draw.Draw(onGrid, image.Rect(0, 0, 1000, 1), black, image.Point{}, draw.Src)
	assert.InDelta(t, 0.9, CompareImages(a, onGrid, 0), 1e-9)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	img := noise(12, 9, 13)
	require.NoError(t, Save(path, img))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, loaded.Pix)

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestHalfScale(t *testing.T) {
	img := fill(4, 2, color.RGBA{R: 100, A: 255})
	img.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})

	half := HalfScale(img)
	assert.Equal(t, image.Pt(2, 1), half.Bounds().Size())
	assert.Equal(t, uint8(125), half.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(100), half.RGBAAt(1, 0).R)
}
