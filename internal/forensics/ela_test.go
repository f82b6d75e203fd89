package forensics

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/jpeg"
	"testing"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/report"
)

func TestDetectELAUniform(t *testing.T) {
	cfg := config.Default().Forensics
	ras := rasterFor(flatImage(256, 256, 128))

	res, err := detectELA(context.Background(), ras, cfg)
	if err != nil {
		t.Fatalf("detectELA() error: %v", err)
	}
	if !res.Performed {
		t.Fatal("Performed = false")
	}
	if res.Tampered {
		t.Fatalf("uniform image marked tampered, variance %v", res.Variance)
	}
	if res.Variance >= cfg.ELAVarianceThreshold {
		t.Fatalf("Variance = %v, want < %v", res.Variance, cfg.ELAVarianceThreshold)
	}
	if len(res.Regions) != 0 {
		t.Fatalf("Regions = %v, want none", res.Regions)
	}
}

func TestDetectELAConfidenceScale(t *testing.T) {
	cfg := config.Default().Forensics
	ras := rasterFor(noiseImage(128, 128, 3))

	res, err := detectELA(context.Background(), ras, cfg)
	if err != nil {
		t.Fatalf("detectELA() error: %v", err)
	}
	want := clamp01(res.Variance / cfg.ELACalibration)
	if res.Confidence != want {
		t.Fatalf("Confidence = %v, want %v", res.Confidence, want)
	}
	if res.Tampered != (res.Variance >= cfg.ELAVarianceThreshold) {
		t.Fatalf("Tampered = %v inconsistent with variance %v", res.Tampered, res.Variance)
	}
}

func TestDetectELASplicedResave(t *testing.T) {
	cfg := config.Default().Forensics

	// A scan with one low-quality compression generation behind it.
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noiseImage(256, 256, 9), &jpeg.Options{Quality: 50}); err != nil {
		t.Fatalf("jpeg.Encode() error: %v", err)
	}
	base, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("jpeg.Decode() error: %v", err)
	}

	// Paste a region with no compression history over it, then re-save at
	// quality 50: the splice diverges from the rest under re-compression.
	edited := image.NewRGBA(base.Bounds())
	draw.Draw(edited, edited.Bounds(), base, image.Point{}, draw.Src)
	draw.Draw(edited, image.Rect(64, 64, 160, 160), noiseImage(96, 96, 41), image.Point{}, draw.Src)
	buf.Reset()
	if err := jpeg.Encode(&buf, edited, &jpeg.Options{Quality: 50}); err != nil {
		t.Fatalf("jpeg.Encode() error: %v", err)
	}

	ras, err := DecodeRaster(buf.Bytes(), "scan.jpg", cfg.MaxDimension)
	if err != nil {
		t.Fatalf("DecodeRaster() error: %v", err)
	}
	res, err := detectELA(context.Background(), ras, cfg)
	if err != nil {
		t.Fatalf("detectELA() error: %v", err)
	}
	if !res.Tampered {
		t.Fatalf("edited re-saved image not flagged tampered, variance %v against threshold %v", res.Variance, cfg.ELAVarianceThreshold)
	}
	if res.Confidence <= 0.5 {
		t.Fatalf("Confidence = %v, want > 0.5", res.Confidence)
	}
}

func TestGrowErrorRegions(t *testing.T) {
	const w, h = 128, 128
	diff := make([]float64, w*h)
	for i := range diff {
		diff[i] = 0.001
	}
	// One hot 32x32 square aligned to the 8px block grid.
	for y := 32; y < 64; y++ {
		for x := 32; x < 64; x++ {
			diff[y*w+x] = 0.05
		}
	}

	mean, variance := meanVariance(diff)
	regions := growErrorRegions(diff, w, h, mean, variance, 1.0)
	if len(regions) != 1 {
		t.Fatalf("regions = %v, want exactly one", regions)
	}
	r := regions[0]
	if r.X != 32 || r.Y != 32 || r.Width != 32 || r.Height != 32 {
		t.Fatalf("region = %+v, want {32 32 32 32}", r)
	}
}

func TestGrowErrorRegionsRejectsSmall(t *testing.T) {
	const w, h = 64, 64
	diff := make([]float64, w*h)
	for i := range diff {
		diff[i] = 0.001
	}
	// Single hot block: below the minimum component size.
	for y := 16; y < 24; y++ {
		for x := 16; x < 24; x++ {
			diff[y*w+x] = 0.1
		}
	}
	mean, variance := meanVariance(diff)
	if regions := growErrorRegions(diff, w, h, mean, variance, 1.0); len(regions) != 0 {
		t.Fatalf("regions = %v, want none for a single block", regions)
	}
}

func TestScaleRegionClips(t *testing.T) {
	// Working raster 64x64 at scale 0.5 maps back to a 128x128 original.
	r := scaleRegion(report.Region{X: 20, Y: 20, Width: 50, Height: 50}, 64, 64, 0.5)
	if r.X != 40 || r.Y != 40 {
		t.Fatalf("origin = (%d,%d), want (40,40)", r.X, r.Y)
	}
	if r.X+r.Width > 128 || r.Y+r.Height > 128 {
		t.Fatalf("region %+v exceeds original bounds", r)
	}
}
