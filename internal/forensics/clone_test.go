package forensics

import (
	"context"
	"testing"

	"github.com/veridoc/veridoc/internal/config"
)

func TestDetectClonesPastedRegion(t *testing.T) {
	cfg := config.Default().Forensics
	img := noiseImage(256, 256, 11)
	// Copy a 64x64 patch from (16,16) to (160,96); both corners sit on the
	// stride grid so matched blocks vote for one displacement.
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(160+x, 96+y, img.RGBAAt(16+x, 16+y))
		}
	}

	res, err := detectClones(context.Background(), rasterFor(img), cfg.Clone)
	if err != nil {
		t.Fatalf("detectClones() error: %v", err)
	}
	if !res.Cloned {
		t.Fatalf("pasted region not detected, matches %d", res.Matches)
	}
	if res.Offset != [2]int{144, 80} {
		t.Fatalf("Offset = %v, want [144 80]", res.Offset)
	}
	if res.Matches < cfg.Clone.MinMatches {
		t.Fatalf("Matches = %d, want >= %d", res.Matches, cfg.Clone.MinMatches)
	}
	if len(res.Regions) != 2 {
		t.Fatalf("Regions = %v, want source and destination", res.Regions)
	}
	src, dst := res.Regions[0], res.Regions[1]
	if dst.X-src.X != 144 || dst.Y-src.Y != 80 {
		t.Fatalf("region displacement = (%d,%d), want (144,80)", dst.X-src.X, dst.Y-src.Y)
	}
}

func TestDetectClonesCleanNoise(t *testing.T) {
	cfg := config.Default().Forensics
	res, err := detectClones(context.Background(), rasterFor(noiseImage(256, 256, 29)), cfg.Clone)
	if err != nil {
		t.Fatalf("detectClones() error: %v", err)
	}
	if res.Cloned {
		t.Fatalf("clean noise flagged cloned: %d matches at %v", res.Matches, res.Offset)
	}
}

func TestDetectClonesTooSmall(t *testing.T) {
	cfg := config.Default().Forensics
	res, err := detectClones(context.Background(), rasterFor(noiseImage(48, 48, 5)), cfg.Clone)
	if err != nil {
		t.Fatalf("detectClones() error: %v", err)
	}
	if res.Cloned || res.Matches != 0 {
		t.Fatalf("undersized image produced matches: %+v", res)
	}
}
