package forensics

import (
	"context"
	"hash/fnv"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/report"
)

// CloneResult is the copy-paste signal for one image. Cloned content is
// pixel-identical by construction, so it leaves no ELA signature; it is
// caught here instead by matching block descriptors within the same image.
type CloneResult struct {
	Cloned     bool
	Confidence float64
	Matches    int
	Offset     [2]int
	Regions    []report.Region
}

type blockPos struct {
	x, y int
}

// detectClones hashes quantized pixel blocks on a sliding grid and looks for
// many matched pairs sharing one displacement vector. A consistent offset
// across enough pairs is the signature of a translated copy-paste; scattered
// accidental matches vote for different offsets and never accumulate.
func detectClones(ctx context.Context, ras *Raster, cfg config.Clone) (CloneResult, error) {
	var res CloneResult
	gray := ras.Gray()
	w, h := ras.Width, ras.Height
	bs := cfg.BlockSize
	if w < 2*bs || h < 2*bs {
		return res, nil
	}

	positions := make(map[uint64][]blockPos)
	for y := 0; y+bs <= h; y += cfg.Stride {
		if cancelled(ctx) {
			return res, ctx.Err()
		}
		for x := 0; x+bs <= w; x += cfg.Stride {
			hsh := fnv.New64a()
			var buf [1]byte
			for by := 0; by < bs; by++ {
				row := (y + by) * w
				for bx := 0; bx < bs; bx++ {
					// Quantize to 16 levels to survive mild
					// re-compression noise.
					buf[0] = byte(int(gray[row+x+bx]) >> 4)
					hsh.Write(buf[:])
				}
			}
			k := hsh.Sum64()
			positions[k] = append(positions[k], blockPos{x, y})
		}
	}

	// Vote per displacement vector over matched pairs. Overlapping or
	// adjacent blocks are trivially similar and excluded.
	votes := make(map[[2]int][]blockPos)
	for _, ps := range positions {
		if len(ps) < 2 || len(ps) > 64 {
			continue
		}
		for i := 0; i < len(ps); i++ {
			for j := i + 1; j < len(ps); j++ {
				dx := ps[j].x - ps[i].x
				dy := ps[j].y - ps[i].y
				if maxInt(absInt(dx), absInt(dy)) < bs {
					continue
				}
				votes[[2]int{dx, dy}] = append(votes[[2]int{dx, dy}], ps[i])
			}
		}
	}

	var best [2]int
	bestCount := 0
	for off, srcs := range votes {
		if len(srcs) > bestCount {
			bestCount = len(srcs)
			best = off
		}
	}

	res.Matches = bestCount
	res.Offset = best
	res.Confidence = clamp01(float64(bestCount) / float64(2*cfg.MinMatches))
	res.Cloned = bestCount >= cfg.MinMatches
	if !res.Cloned {
		return res, nil
	}

	srcs := votes[best]
	minX, minY := w, h
	maxX, maxY := 0, 0
	for _, p := range srcs {
		if p.x < minX {
			minX = p.x
		}
		if p.y < minY {
			minY = p.y
		}
		if p.x+bs > maxX {
			maxX = p.x + bs
		}
		if p.y+bs > maxY {
			maxY = p.y + bs
		}
	}
	src := report.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	dst := report.Region{X: minX + best[0], Y: minY + best[1], Width: src.Width, Height: src.Height}
	if dst.X < 0 {
		dst.Width += dst.X
		dst.X = 0
	}
	if dst.Y < 0 {
		dst.Height += dst.Y
		dst.Y = 0
	}
	res.Regions = []report.Region{
		scaleRegion(src, w, h, ras.Scale),
		scaleRegion(dst, w, h, ras.Scale),
	}
	return res, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
