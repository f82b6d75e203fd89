package forensics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrDetectorTimeout marks a sub-detector that exceeded its time budget. The
// pipeline records it as a partial result instead of blocking.
var ErrDetectorTimeout = errors.New("detector timeout")

// DecodeError is fatal to the image sub-component only. An undecodable image
// is reported as an explicit failure, never as risk 0.
type DecodeError struct {
	FileName string
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.FileName, e.Reason)
}

// Raster is a decoded image normalized to RGBA, downscaled to a bounded
// working size so detector cost stays proportional to MaxDimension.
type Raster struct {
	RGBA           *image.RGBA
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
	Scale          float64 // working-pixels per original-pixel, <= 1

	gray []float64
}

// DecodeRaster decodes image bytes into a working raster. Images larger than
// maxDim on either axis are downscaled with bilinear interpolation.
func DecodeRaster(data []byte, fileName string, maxDim int) (*Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{FileName: fileName, Reason: err.Error()}
	}

	b := img.Bounds()
	ow, oh := b.Dx(), b.Dy()
	if ow == 0 || oh == 0 {
		return nil, &DecodeError{FileName: fileName, Reason: "empty image"}
	}

	scale := 1.0
	w, h := ow, oh
	if maxDim > 0 && (ow > maxDim || oh > maxDim) {
		if ow >= oh {
			scale = float64(maxDim) / float64(ow)
		} else {
			scale = float64(maxDim) / float64(oh)
		}
		w = int(float64(ow) * scale)
		h = int(float64(oh) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if scale == 1.0 {
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	} else {
		xdraw.BiLinear.Scale(rgba, rgba.Bounds(), img, b, xdraw.Src, nil)
	}

	return &Raster{
		RGBA:           rgba,
		Width:          w,
		Height:         h,
		OriginalWidth:  ow,
		OriginalHeight: oh,
		Scale:          scale,
	}, nil
}

// Gray returns a cached luminance plane in [0,255].
func (r *Raster) Gray() []float64 {
	if r.gray != nil {
		return r.gray
	}
	g := make([]float64, r.Width*r.Height)
	for y := 0; y < r.Height; y++ {
		row := y * r.RGBA.Stride
		for x := 0; x < r.Width; x++ {
			p := row + x*4
			pr := float64(r.RGBA.Pix[p])
			pg := float64(r.RGBA.Pix[p+1])
			pb := float64(r.RGBA.Pix[p+2])
			g[y*r.Width+x] = 0.299*pr + 0.587*pg + 0.114*pb
		}
	}
	r.gray = g
	return g
}

// cancelled is the cooperative cancellation check used inside detector loops.
func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
