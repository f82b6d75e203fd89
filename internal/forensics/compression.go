package forensics

import (
	"context"
	"math"

	"github.com/veridoc/veridoc/internal/config"
)

// CompressionResult is the double-compression signal for one image. An image
// edited and re-saved carries two quantization grids; the coefficient
// histograms then show peaks at regular intervals instead of a smooth decay.
type CompressionResult struct {
	DoubleCompressed bool
	Significance     float64
}

// Low-frequency DCT modes inspected for periodic histogram peaks. DC is
// excluded; it tracks brightness, not quantization history.
var compressionModes = [][2]int{{0, 1}, {1, 0}, {1, 1}, {0, 2}, {2, 0}}

const coeffRange = 40 // histogram covers [-coeffRange, +coeffRange]

func detectDoubleCompression(ctx context.Context, ras *Raster, cfg config.Compression) (CompressionResult, error) {
	var res CompressionResult
	gray := ras.Gray()
	w, h := ras.Width, ras.Height
	if w < 16 || h < 16 {
		return res, nil
	}

	hists := make([][]int, len(compressionModes))
	for i := range hists {
		hists[i] = make([]int, 2*coeffRange+1)
	}

	var block [64]float64
	var coeffs [64]float64
	for y := 0; y+8 <= h; y += 8 {
		if cancelled(ctx) {
			return res, ctx.Err()
		}
		for x := 0; x+8 <= w; x += 8 {
			for by := 0; by < 8; by++ {
				row := (y + by) * w
				for bx := 0; bx < 8; bx++ {
					block[by*8+bx] = gray[row+x+bx] - 128
				}
			}
			dct8x8(&block, &coeffs)
			for i, m := range compressionModes {
				c := int(math.Round(coeffs[m[1]*8+m[0]]))
				if c < -coeffRange || c > coeffRange {
					continue
				}
				hists[i][c+coeffRange]++
			}
		}
	}

	sum := 0.0
	for i := range hists {
		sum += peakPeriodicity(hists[i])
	}
	res.Significance = sum / float64(len(hists))
	res.DoubleCompressed = res.Significance > cfg.PeakSignificance
	return res, nil
}

// peakPeriodicity finds local maxima above the histogram mean and measures
// how regular their spacing is: the fraction of inter-peak gaps equal to the
// modal gap. Requires the modal gap to be at least 2 bins, since every
// histogram is trivially "periodic" at gap 1.
func peakPeriodicity(hist []int) float64 {
	mean := 0.0
	for _, v := range hist {
		mean += float64(v)
	}
	mean /= float64(len(hist))

	var peaks []int
	for i := 1; i < len(hist)-1; i++ {
		if hist[i] > hist[i-1] && hist[i] >= hist[i+1] && float64(hist[i]) > mean {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 4 {
		return 0
	}

	gapCounts := make(map[int]int)
	for i := 1; i < len(peaks); i++ {
		gapCounts[peaks[i]-peaks[i-1]]++
	}
	modalGap, modalCount := 0, 0
	for gap, n := range gapCounts {
		if n > modalCount || (n == modalCount && gap > modalGap) {
			modalGap, modalCount = gap, n
		}
	}
	if modalGap < 2 {
		return 0
	}
	return float64(modalCount) / float64(len(peaks)-1)
}

var dctCos [8][8]float64

func init() {
	for k := 0; k < 8; k++ {
		for n := 0; n < 8; n++ {
			dctCos[k][n] = math.Cos(math.Pi * float64(k) * (2*float64(n) + 1) / 16)
		}
	}
}

// dct8x8 is a separable 2D DCT-II with orthonormal scaling.
func dct8x8(block, out *[64]float64) {
	var tmp [64]float64
	for y := 0; y < 8; y++ {
		for k := 0; k < 8; k++ {
			s := 0.0
			for n := 0; n < 8; n++ {
				s += block[y*8+n] * dctCos[k][n]
			}
			tmp[y*8+k] = s * dctScale(k)
		}
	}
	for x := 0; x < 8; x++ {
		for k := 0; k < 8; k++ {
			s := 0.0
			for n := 0; n < 8; n++ {
				s += tmp[n*8+x] * dctCos[k][n]
			}
			out[k*8+x] = s * dctScale(k)
		}
	}
}

func dctScale(k int) float64 {
	if k == 0 {
		return math.Sqrt(1.0 / 8.0)
	}
	return math.Sqrt(2.0 / 8.0)
}
