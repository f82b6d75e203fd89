package forensics

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func flatImage(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// noiseImage fills an image from a small LCG so tests are deterministic
// without seeding math/rand.
func noiseImage(w, h int, seed uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	state := seed
	next := func() uint8 {
		state = state*1664525 + 1013904223
		return uint8(state >> 16)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{next(), next(), next(), 255})
		}
	}
	return img
}

func rasterFor(img *image.RGBA) *Raster {
	b := img.Bounds()
	return &Raster{
		RGBA:           img,
		Width:          b.Dx(),
		Height:         b.Dy(),
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
		Scale:          1.0,
	}
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}
