package forensics

import (
	"bytes"
	"context"
	"image/jpeg"
	"math"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/report"
)

// ELAResult is the error-level-analysis tamper signal for one image.
type ELAResult struct {
	Performed  bool
	Variance   float64
	Confidence float64
	Tampered   bool
	Regions    []report.Region
}

const elaBlock = 8

// detectELA re-encodes the raster at the reference quality and measures how
// unevenly the re-compression error is distributed. Uniform images produce a
// flat error map and variance 0; spliced regions diverge.
func detectELA(ctx context.Context, ras *Raster, cfg config.Forensics) (ELAResult, error) {
	var res ELAResult

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ras.RGBA, &jpeg.Options{Quality: cfg.ELAReferenceQuality}); err != nil {
		return res, err
	}
	reenc, err := jpeg.Decode(&buf)
	if err != nil {
		return res, err
	}
	if cancelled(ctx) {
		return res, ctx.Err()
	}

	w, h := ras.Width, ras.Height
	diff := make([]float64, w*h)
	maxDiff := 0.0
	for y := 0; y < h; y++ {
		if y%64 == 0 && cancelled(ctx) {
			return res, ctx.Err()
		}
		row := y * ras.RGBA.Stride
		for x := 0; x < w; x++ {
			p := row + x*4
			rr, gg, bb, _ := reenc.At(x, y).RGBA()
			d := absf(float64(ras.RGBA.Pix[p])-float64(rr>>8)) +
				absf(float64(ras.RGBA.Pix[p+1])-float64(gg>>8)) +
				absf(float64(ras.RGBA.Pix[p+2])-float64(bb>>8))
			d /= 3 * 255
			diff[y*w+x] = d
			if d > maxDiff {
				maxDiff = d
			}
		}
	}
	res.Performed = true

	// Near-uniform image: no re-compression error anywhere. Floor the
	// variance to zero rather than dividing by anything.
	if maxDiff == 0 {
		return res, nil
	}

	mean, variance := meanVariance(diff)
	res.Variance = variance
	res.Confidence = clamp01(variance / cfg.ELACalibration)
	res.Tampered = variance >= cfg.ELAVarianceThreshold
	if !res.Tampered {
		return res, nil
	}

	res.Regions = growErrorRegions(diff, w, h, mean, variance, ras.Scale)
	return res, nil
}

// growErrorRegions clusters blocks whose mean error exceeds mean + 2*stddev
// into connected components and returns their bounding boxes in original
// image coordinates.
func growErrorRegions(diff []float64, w, h int, mean, variance, scale float64) []report.Region {
	bw := (w + elaBlock - 1) / elaBlock
	bh := (h + elaBlock - 1) / elaBlock
	stddev := math.Sqrt(variance)
	cut := mean + 2*stddev

	hot := make([]bool, bw*bh)
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			sum, n := 0.0, 0
			for y := by * elaBlock; y < (by+1)*elaBlock && y < h; y++ {
				for x := bx * elaBlock; x < (bx+1)*elaBlock && x < w; x++ {
					sum += diff[y*w+x]
					n++
				}
			}
			if n > 0 && sum/float64(n) > cut {
				hot[by*bw+bx] = true
			}
		}
	}

	const minComponentBlocks = 4
	seen := make([]bool, bw*bh)
	var regions []report.Region
	for start := range hot {
		if !hot[start] || seen[start] {
			continue
		}
		// BFS over the 4-connected hot blocks.
		queue := []int{start}
		seen[start] = true
		minX, minY := bw, bh
		maxX, maxY := -1, -1
		size := 0
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			size++
			cx, cy := cur%bw, cur/bw
			if cx < minX {
				minX = cx
			}
			if cy < minY {
				minY = cy
			}
			if cx > maxX {
				maxX = cx
			}
			if cy > maxY {
				maxY = cy
			}
			for _, nb := range [4]int{cur - 1, cur + 1, cur - bw, cur + bw} {
				if nb < 0 || nb >= bw*bh || !hot[nb] || seen[nb] {
					continue
				}
				// Reject horizontal wraparound neighbors.
				if (nb == cur-1 || nb == cur+1) && nb/bw != cy {
					continue
				}
				seen[nb] = true
				queue = append(queue, nb)
			}
		}
		if size < minComponentBlocks {
			continue
		}
		regions = append(regions, scaleRegion(report.Region{
			X:      minX * elaBlock,
			Y:      minY * elaBlock,
			Width:  (maxX - minX + 1) * elaBlock,
			Height: (maxY - minY + 1) * elaBlock,
		}, w, h, scale))
	}
	return regions
}

// scaleRegion maps working coordinates back to original image coordinates
// and clips to the original bounds.
func scaleRegion(r report.Region, w, h int, scale float64) report.Region {
	if scale > 0 && scale != 1.0 {
		inv := 1.0 / scale
		r.X = int(float64(r.X) * inv)
		r.Y = int(float64(r.Y) * inv)
		r.Width = int(float64(r.Width) * inv)
		r.Height = int(float64(r.Height) * inv)
		w = int(float64(w) * inv)
		h = int(float64(h) * inv)
	}
	if r.X+r.Width > w {
		r.Width = w - r.X
	}
	if r.Y+r.Height > h {
		r.Height = h - r.Y
	}
	return r
}

func meanVariance(vals []float64) (mean, variance float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	return mean, variance
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
