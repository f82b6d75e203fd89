package forensics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/logging"
	"github.com/veridoc/veridoc/internal/report"
)

// Sub-detector engine names disclosed in every report.
const (
	EngineSynthetic   = "forensics/synthetic"
	EngineELA         = "forensics/ela"
	EngineClone       = "forensics/clone"
	EngineCompression = "forensics/compression"
	EngineMetadata    = "forensics/metadata"
)

var engineNames = []string{EngineSynthetic, EngineELA, EngineClone, EngineCompression, EngineMetadata}

// ImageInput is one decoded-upstream image: original encoded bytes plus
// filename and mime type. Buffers are owned by the calling analysis and are
// not retained.
type ImageInput struct {
	Data     []byte
	FileName string
	MIME     string
}

// Analyzer runs the five forensic sub-detectors over a document's images and
// aggregates them into one image risk result. Detectors are stateless pure
// functions; an Analyzer is safe for concurrent use across documents.
type Analyzer struct {
	cfg config.Forensics
	log *slog.Logger
}

func New(cfg config.Forensics) *Analyzer {
	return &Analyzer{cfg: cfg, log: logging.For("forensics")}
}

type imageOutcome struct {
	lowRes bool

	syn     SyntheticResult
	ela     ELAResult
	clone   CloneResult
	comp    CompressionResult
	meta    MetadataResult
	detErrs map[string]error
}

// Analyze runs every sub-detector on every image concurrently, each under
// its own time budget, and combines per-image signals with the configured
// cross-image rule. The per-detector engine runs are always returned so the
// report can disclose exactly what ran, timed out, or failed.
func (a *Analyzer) Analyze(ctx context.Context, images []ImageInput) (*report.ImageAnalysisResult, []report.EngineRun, error) {
	if len(images) == 0 {
		return nil, nil, nil
	}

	outcomes := make([]imageOutcome, 0, len(images))
	var findings []report.Issue
	decodeFailures := 0
	var firstDecodeErr error

	for i, in := range images {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		ras, err := DecodeRaster(in.Data, in.FileName, a.cfg.MaxDimension)
		if err != nil {
			decodeFailures++
			if firstDecodeErr == nil {
				firstDecodeErr = err
			}
			a.log.Warn("image decode failed", "file", in.FileName, "err", err)
			findings = append(findings, report.Issue{
				Category:    report.CategoryImage,
				Severity:    report.SeverityHigh,
				Description: fmt.Sprintf("Image %d could not be decoded: %v", i+1, err),
				Location:    in.FileName,
			})
			continue
		}

		out := a.analyzeOne(ctx, ras, in)
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		outcomes = append(outcomes, out)
	}

	runs := engineRuns(outcomes, decodeFailures > 0)
	if len(outcomes) == 0 {
		// Every image was undecodable: an explicit failed state, never
		// silently reported as zero risk.
		return nil, runs, firstDecodeErr
	}

	res := a.combine(outcomes, len(images))
	res.MetadataFindings = append(res.MetadataFindings, findings...)
	return res, runs, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, ras *Raster, in ImageInput) imageOutcome {
	out := imageOutcome{detErrs: make(map[string]error, len(engineNames))}
	out.lowRes = ras.OriginalWidth < a.cfg.MinResolution || ras.OriginalHeight < a.cfg.MinResolution

	budget := time.Duration(a.cfg.DetectorTimeoutMS) * time.Millisecond

	// Populate the shared luminance cache before detectors fan out.
	ras.Gray()

	var wg sync.WaitGroup
	var mu sync.Mutex
	record := func(name string, err error) {
		mu.Lock()
		out.detErrs[name] = err
		mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("sub-detector degraded", "detector", name, "file", in.FileName, "err", err)
		}
	}

	// Each detector hands its result back over the budget channel; a
	// timed-out detector's late result is dropped, never written into out.
	wg.Add(5)
	go func() {
		defer wg.Done()
		r, err := runWithBudget(ctx, budget, func(dctx context.Context) (SyntheticResult, error) {
			return detectSynthetic(dctx, ras, a.cfg.Synthetic, a.cfg.AIDetectionThreshold)
		})
		mu.Lock()
		out.syn = r
		mu.Unlock()
		record(EngineSynthetic, err)
	}()
	go func() {
		defer wg.Done()
		r, err := runWithBudget(ctx, budget, func(dctx context.Context) (ELAResult, error) {
			return detectELA(dctx, ras, a.cfg)
		})
		mu.Lock()
		out.ela = r
		mu.Unlock()
		record(EngineELA, err)
	}()
	go func() {
		defer wg.Done()
		r, err := runWithBudget(ctx, budget, func(dctx context.Context) (CloneResult, error) {
			return detectClones(dctx, ras, a.cfg.Clone)
		})
		mu.Lock()
		out.clone = r
		mu.Unlock()
		record(EngineClone, err)
	}()
	go func() {
		defer wg.Done()
		r, err := runWithBudget(ctx, budget, func(dctx context.Context) (CompressionResult, error) {
			return detectDoubleCompression(dctx, ras, a.cfg.Compression)
		})
		mu.Lock()
		out.comp = r
		mu.Unlock()
		record(EngineCompression, err)
	}()
	go func() {
		defer wg.Done()
		r, err := runWithBudget(ctx, budget, func(dctx context.Context) (MetadataResult, error) {
			return analyzeMetadata(dctx, in.Data, in.FileName, a.cfg.Metadata)
		})
		mu.Lock()
		out.meta = r
		mu.Unlock()
		record(EngineMetadata, err)
	}()
	wg.Wait()

	if out.lowRes {
		// Below-minimum-resolution pixels still get analyzed, but every
		// signal is attenuated rather than the image being suppressed.
		out.syn.Confidence *= 0.5
		out.ela.Confidence *= 0.5
		out.clone.Confidence *= 0.5
	}
	return out
}

// runWithBudget runs one CPU-bound detector under its own deadline.
// Detectors exit cooperatively on cancellation; exceeding the budget yields
// ErrDetectorTimeout and the zero result. A late detector finishes into the
// buffered channel and its result is discarded; it never touches state the
// caller can observe.
func runWithBudget[T any](ctx context.Context, budget time.Duration, fn func(context.Context) (T, error)) (T, error) {
	dctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		res T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := fn(dctx)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-dctx.Done():
		out.err = dctx.Err()
	}
	if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
		out.err = ErrDetectorTimeout
	}
	return out.res, out.err
}

func (a *Analyzer) combine(outcomes []imageOutcome, imageCount int) *report.ImageAnalysisResult {
	res := &report.ImageAnalysisResult{ImagesAnalyzed: len(outcomes)}

	var aiConfs, tamperConfs, cloneConfs, metaRisks []float64
	var anyAI, anyTampered, anyCloned bool
	for _, out := range outcomes {
		if out.lowRes {
			res.InsufficientResolution = true
			res.ForensicFindings = append(res.ForensicFindings, report.Issue{
				Category:    report.CategoryImage,
				Severity:    report.SeverityLow,
				Description: "Image resolution is below the forensic minimum; confidence reduced",
				Details:     map[string]string{"flag": "insufficient_resolution"},
			})
		}

		tamperConf := out.ela.Confidence
		tampered := out.ela.Tampered
		if out.comp.DoubleCompressed {
			// A double-compression signature corroborates editing even
			// when the splice itself left no ELA contrast.
			tampered = true
			if tamperConf < 0.6 {
				tamperConf = 0.6
			}
		}

		aiConfs = append(aiConfs, out.syn.Confidence)
		tamperConfs = append(tamperConfs, tamperConf)
		cloneConfs = append(cloneConfs, out.clone.Confidence)
		metaRisks = append(metaRisks, out.meta.Risk)
		anyAI = anyAI || out.syn.IsAIGenerated
		anyTampered = anyTampered || tampered
		anyCloned = anyCloned || out.clone.Cloned

		res.SuspiciousRegions = append(res.SuspiciousRegions, out.ela.Regions...)
		res.SuspiciousRegions = append(res.SuspiciousRegions, out.clone.Regions...)
		res.MetadataFindings = append(res.MetadataFindings, out.meta.Findings...)
		res.ForensicFindings = append(res.ForensicFindings, outcomeFindings(out)...)
	}

	combine := combineMax
	if a.cfg.CombineRule == "mean" {
		combine = combineMean
	}
	res.AIConfidence = combine(aiConfs)
	res.TamperConfidence = combine(tamperConfs)
	res.CloneConfidence = combine(cloneConfs)
	res.MetadataRisk = combine(metaRisks)

	if a.cfg.CombineRule == "mean" {
		res.IsAIGenerated = res.AIConfidence >= a.cfg.AIDetectionThreshold
		res.IsTampered = res.TamperConfidence >= 0.5
	} else {
		res.IsAIGenerated = anyAI
		res.IsTampered = anyTampered
	}

	w := a.cfg.ImageWeights
	res.ImageRisk = round2(100 * (res.AIConfidence*w.AI +
		res.TamperConfidence*w.Tamper +
		res.MetadataRisk*w.Metadata +
		res.CloneConfidence*w.Clone))
	res.IsAuthentic = !(res.IsAIGenerated || res.IsTampered || anyCloned)

	a.log.Info("image analysis combined",
		"images", imageCount,
		"analyzed", len(outcomes),
		"image_risk", res.ImageRisk,
		"tampered", res.IsTampered,
		"ai_generated", res.IsAIGenerated)
	return res
}

func outcomeFindings(out imageOutcome) []report.Issue {
	var issues []report.Issue
	if out.ela.Tampered {
		issues = append(issues, report.Issue{
			Category:    report.CategoryImage,
			Severity:    report.SeverityCritical,
			Description: "Image shows signs of tampering (error level analysis)",
			Details: map[string]string{
				"variance":         fmt.Sprintf("%.6f", out.ela.Variance),
				"detection_method": "error_level_analysis",
			},
		})
	}
	if out.clone.Cloned {
		issues = append(issues, report.Issue{
			Category:    report.CategoryImage,
			Severity:    report.SeverityHigh,
			Description: "Detected cloned regions within the image",
			Details: map[string]string{
				"matched_blocks":   fmt.Sprintf("%d", out.clone.Matches),
				"offset":           fmt.Sprintf("%d,%d", out.clone.Offset[0], out.clone.Offset[1]),
				"detection_method": "block_matching",
			},
		})
	}
	if out.comp.DoubleCompressed {
		issues = append(issues, report.Issue{
			Category:    report.CategoryImage,
			Severity:    report.SeverityMedium,
			Description: "Coefficient histograms show a double-compression signature",
			Details: map[string]string{
				"significance":     fmt.Sprintf("%.3f", out.comp.Significance),
				"detection_method": "dct_histogram",
			},
		})
	}
	if out.syn.IsAIGenerated {
		issues = append(issues, report.Issue{
			Category:    report.CategoryImage,
			Severity:    report.SeverityCritical,
			Description: "Image statistics are consistent with synthetic generation",
			Details: map[string]string{
				"indicators": fmt.Sprintf("%d", len(out.syn.Indicators)),
			},
		})
	}
	return issues
}

// engineRuns reports the worst status per sub-detector across all images.
func engineRuns(outcomes []imageOutcome, hadDecodeFailure bool) []report.EngineRun {
	runs := make([]report.EngineRun, 0, len(engineNames))
	for _, name := range engineNames {
		status := report.EngineCompleted
		msg := ""
		if len(outcomes) == 0 {
			status = report.EngineFailed
			if hadDecodeFailure {
				msg = "no decodable images"
			}
		}
		for _, out := range outcomes {
			err := out.detErrs[name]
			if err == nil {
				continue
			}
			if errors.Is(err, ErrDetectorTimeout) {
				if status == report.EngineCompleted {
					status = report.EngineTimedOut
					msg = err.Error()
				}
				continue
			}
			status = report.EngineFailed
			msg = err.Error()
		}
		runs = append(runs, report.EngineRun{Name: name, Status: status, Error: msg})
	}
	return runs
}

func combineMax(vals []float64) float64 {
	best := 0.0
	for _, v := range vals {
		if v > best {
			best = v
		}
	}
	return best
}

func combineMean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
