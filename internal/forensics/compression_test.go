package forensics

import (
	"context"
	"math"
	"testing"

	"github.com/veridoc/veridoc/internal/config"
)

func TestPeakPeriodicityRegular(t *testing.T) {
	hist := make([]int, 81)
	for i := 3; i < len(hist)-1; i += 3 {
		hist[i] = 100
	}
	if got := peakPeriodicity(hist); got != 1.0 {
		t.Fatalf("peakPeriodicity(regular) = %v, want 1.0", got)
	}
}

func TestPeakPeriodicitySmoothDecay(t *testing.T) {
	hist := make([]int, 81)
	for i := range hist {
		hist[i] = 100 - absInt(i-40)
	}
	if got := peakPeriodicity(hist); got != 0 {
		t.Fatalf("peakPeriodicity(smooth) = %v, want 0", got)
	}
}

func TestPeakPeriodicityTooFewPeaks(t *testing.T) {
	hist := make([]int, 81)
	hist[10], hist[20], hist[30] = 50, 50, 50
	if got := peakPeriodicity(hist); got != 0 {
		t.Fatalf("peakPeriodicity(3 peaks) = %v, want 0", got)
	}
}

func TestDCT8x8Uniform(t *testing.T) {
	var block, out [64]float64
	for i := range block {
		block[i] = 10
	}
	dct8x8(&block, &out)
	if math.Abs(out[0]-80) > 1e-9 {
		t.Fatalf("DC = %v, want 80", out[0])
	}
	for i := 1; i < 64; i++ {
		if math.Abs(out[i]) > 1e-9 {
			t.Fatalf("AC coefficient %d = %v, want 0", i, out[i])
		}
	}
}

func TestDetectDoubleCompressionFlat(t *testing.T) {
	cfg := config.Default().Forensics
	res, err := detectDoubleCompression(context.Background(), rasterFor(flatImage(128, 128, 90)), cfg.Compression)
	if err != nil {
		t.Fatalf("detectDoubleCompression() error: %v", err)
	}
	if res.DoubleCompressed {
		t.Fatalf("flat image flagged double-compressed, significance %v", res.Significance)
	}
}

func TestDetectDoubleCompressionTooSmall(t *testing.T) {
	cfg := config.Default().Forensics
	res, err := detectDoubleCompression(context.Background(), rasterFor(flatImage(8, 8, 90)), cfg.Compression)
	if err != nil {
		t.Fatalf("detectDoubleCompression() error: %v", err)
	}
	if res.Significance != 0 {
		t.Fatalf("Significance = %v, want 0 for undersized image", res.Significance)
	}
}
