package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc/veridoc/internal/audit"
	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/forensics"
	"github.com/veridoc/veridoc/internal/logging"
	"github.com/veridoc/veridoc/internal/metrics"
	"github.com/veridoc/veridoc/internal/report"
	"github.com/veridoc/veridoc/internal/risk"
	"github.com/veridoc/veridoc/internal/validate"
)

// Document is the upstream view of one document to analyze: extracted text,
// page count, and zero or more decoded image attachments. Image buffers are
// owned by the caller for the duration of one Analyze call and are not
// retained.
type Document struct {
	ID           string
	FileName     string
	Text         string
	DocumentType string
	PageCount    int
	Images       []forensics.ImageInput
}

// Engine runs the full analysis pipeline: validators and image forensics in
// parallel, then the risk scorer, then report assembly and audit.
type Engine struct {
	cfg        config.Config
	validators []validate.Validator
	analyzer   *forensics.Analyzer
	scorer     *risk.Scorer
	sink       audit.Sink
	log        *slog.Logger
	now        func() time.Time
	newID      func() string
}

// Option adjusts an Engine, mainly for tests.
type Option func(*Engine)

// WithValidators replaces the default validator registry.
func WithValidators(vs []validate.Validator) Option {
	return func(e *Engine) { e.validators = vs }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine. A nil sink disables persistence and audit.
func New(cfg config.Config, sink audit.Sink, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		validators: validate.Registry(),
		analyzer:   forensics.New(cfg.Forensics),
		scorer:     risk.NewScorer(cfg.Weights, cfg.RiskThresholds),
		sink:       sink,
		log:        logging.For("engine"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze runs one document through the pipeline and returns its report.
// The report is persisted and audited exactly once; a cancelled analysis
// persists nothing and writes no audit entry.
func (e *Engine) Analyze(ctx context.Context, doc Document) (*report.Report, error) {
	start := e.now()
	id := doc.ID
	if id == "" {
		id = e.newID()
	}
	log := e.log.With("document_id", id, "file", doc.FileName)
	log.Info("analysis started", "images", len(doc.Images), "pages", doc.PageCount)

	components, runs := e.runComponents(ctx, doc)
	if err := ctx.Err(); err != nil {
		log.Warn("analysis cancelled", "err", err)
		return nil, err
	}

	score, err := e.scorer.Score(risk.Input{
		Format:    components.format,
		Structure: components.structure,
		Content:   components.content,
		Image:     components.image,
	})
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues("aggregation").Inc()
		log.Error("analysis failed", "err", err)
		return nil, fmt.Errorf("analyze %s: %w", id, err)
	}

	r := e.assemble(id, doc, start, components, score, runs)

	if e.sink != nil {
		// Report and audit entry land in one atomic write: a failure leaves
		// neither behind, so the analysis can be retried.
		err := e.sink.Record(ctx, r, audit.Entry{
			Timestamp:  r.AnalyzedAt,
			Event:      audit.EventAnalysisCompleted,
			DocumentID: id,
			RiskScore:  score.OverallScore,
			Duration:   r.ProcessingTime,
		})
		if err != nil {
			metrics.AnalysisErrors.WithLabelValues("persist").Inc()
			return nil, fmt.Errorf("persist report %s: %w", id, err)
		}
	}

	metrics.AnalysesTotal.WithLabelValues(string(score.RiskLevel)).Inc()
	metrics.AnalysisDuration.Observe(r.ProcessingTime.Seconds())
	metrics.OverallScore.Observe(score.OverallScore)
	log.Info("analysis completed",
		"overall_score", score.OverallScore,
		"risk_level", score.RiskLevel,
		"duration", r.ProcessingTime)
	return r, nil
}

type componentSet struct {
	format    *report.ComponentResult
	structure *report.ComponentResult
	content   *report.ComponentResult
	image     *report.ImageAnalysisResult
}

// runComponents fans the validators and the image analyzer out in parallel
// and joins them. A timed-out or failed component comes back nil and is
// treated as absent downstream.
func (e *Engine) runComponents(ctx context.Context, doc Document) (componentSet, []report.EngineRun) {
	budget := time.Duration(e.cfg.Forensics.DetectorTimeoutMS) * time.Millisecond
	in := validate.Input{
		Text:         doc.Text,
		FileName:     doc.FileName,
		DocumentType: doc.DocumentType,
		PageCount:    doc.PageCount,
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		set       componentSet
		valRuns   = make([]report.EngineRun, len(e.validators))
		imageRuns []report.EngineRun
	)

	for i, v := range e.validators {
		wg.Add(1)
		go func(i int, v validate.Validator) {
			defer wg.Done()
			res, run := e.runValidator(ctx, v, in, budget)
			mu.Lock()
			defer mu.Unlock()
			valRuns[i] = run
			switch v.Name() {
			case "format":
				set.format = res
			case "structure":
				set.structure = res
			case "content":
				set.content = res
			}
		}(i, v)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		img, runs, err := e.analyzer.Analyze(ctx, doc.Images)
		mu.Lock()
		defer mu.Unlock()
		imageRuns = runs
		switch {
		case err != nil:
			e.log.Warn("image analysis unavailable", "file", doc.FileName, "err", err)
		case img != nil && !allTimedOut(runs):
			set.image = img
		}
	}()

	wg.Wait()

	runs := append(valRuns, imageRuns...)
	if len(doc.Images) == 0 {
		runs = append(runs, report.EngineRun{Name: "forensics", Status: report.EngineSkipped})
	}
	for _, run := range runs {
		if run.Status == report.EngineTimedOut {
			metrics.DetectorTimeouts.WithLabelValues(run.Name).Inc()
		}
	}
	return set, runs
}

func (e *Engine) runValidator(ctx context.Context, v validate.Validator, in validate.Input, budget time.Duration) (*report.ComponentResult, report.EngineRun) {
	name := "validate/" + v.Name()
	vctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		res *report.ComponentResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := v.Validate(vctx, in)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-vctx.Done():
		out.err = vctx.Err()
	}

	switch {
	case out.err == nil:
		return out.res, report.EngineRun{Name: name, Status: report.EngineCompleted}
	case errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, report.EngineRun{Name: name, Status: report.EngineTimedOut, Error: "validator timeout"}
	default:
		return nil, report.EngineRun{Name: name, Status: report.EngineFailed, Error: out.err.Error()}
	}
}

func (e *Engine) assemble(id string, doc Document, start time.Time, set componentSet, score report.RiskScore, runs []report.EngineRun) *report.Report {
	sanitizeComponent(set.format)
	sanitizeComponent(set.structure)
	sanitizeComponent(set.content)
	if set.image != nil {
		sanitizeIssues(set.image.MetadataFindings)
		sanitizeIssues(set.image.ForensicFindings)
	}

	total, critical := report.CountIssues(
		[]*report.ComponentResult{set.format, set.structure, set.content}, set.image)

	manual := score.Recommendation == report.RecommendManualReview ||
		score.Recommendation == report.RecommendReject ||
		critical > 0
	if set.image != nil && (set.image.IsTampered || set.image.IsAIGenerated) {
		manual = true
	}

	return &report.Report{
		DocumentID:           id,
		FileName:             doc.FileName,
		AnalyzedAt:           start.UTC(),
		Format:               set.format,
		Structure:            set.structure,
		Content:              set.content,
		Image:                set.image,
		Risk:                 score,
		ProcessingTime:       e.now().Sub(start),
		Engines:              runs,
		TotalIssues:          total,
		CriticalIssues:       critical,
		RequiresManualReview: manual,
	}
}

func sanitizeComponent(c *report.ComponentResult) {
	if c == nil {
		return
	}
	sanitizeIssues(c.Issues)
}

func sanitizeIssues(issues []report.Issue) {
	for i := range issues {
		issues[i] = report.SanitizeIssue(issues[i])
	}
}

func allTimedOut(runs []report.EngineRun) bool {
	if len(runs) == 0 {
		return false
	}
	for _, r := range runs {
		if r.Status != report.EngineTimedOut {
			return false
		}
	}
	return true
}
