package report

import "time"

type Severity string
type Category string
type RiskLevel string
type Recommendation string
type EngineStatus string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"

	CategoryFormatting Category = "formatting"
	CategoryStructure  Category = "structure"
	CategoryContent    Category = "content"
	CategoryImage      Category = "image"

	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"

	RecommendAccept       Recommendation = "ACCEPT"
	RecommendReview       Recommendation = "REVIEW"
	RecommendManualReview Recommendation = "MANUAL_REVIEW"
	RecommendReject       Recommendation = "REJECT"

	EngineCompleted EngineStatus = "COMPLETED"
	EngineTimedOut  EngineStatus = "TIMED_OUT"
	EngineFailed    EngineStatus = "FAILED"
	EngineSkipped   EngineStatus = "SKIPPED"
)

// SeverityWeight orders severities for sorting and counting.
func SeverityWeight(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Issue is a single validation or forensic finding. Every issue belongs to
// exactly one component result.
type Issue struct {
	Category    Category          `json:"category"`
	Severity    Severity          `json:"severity"`
	Description string            `json:"description"`
	Location    string            `json:"location,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// ComponentResult is the (valid, issues, score) triple produced by the
// format, structure, and content validators.
type ComponentResult struct {
	IsValid bool    `json:"is_valid"`
	Issues  []Issue `json:"issues"`
	Score   float64 `json:"score"` // [0,100], higher is riskier
}

// Region is a suspicious image region in pixel coordinates, always clipped
// to the image bounds.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageAnalysisResult aggregates the five forensic sub-detectors across all
// images in a document.
type ImageAnalysisResult struct {
	IsAuthentic            bool     `json:"is_authentic"`
	IsAIGenerated          bool     `json:"is_ai_generated"`
	AIConfidence           float64  `json:"ai_confidence"`
	IsTampered             bool     `json:"is_tampered"`
	TamperConfidence       float64  `json:"tamper_confidence"`
	CloneConfidence        float64  `json:"clone_confidence"`
	MetadataRisk           float64  `json:"metadata_risk"`
	SuspiciousRegions      []Region `json:"suspicious_regions,omitempty"`
	MetadataFindings       []Issue  `json:"metadata_findings,omitempty"`
	ForensicFindings       []Issue  `json:"forensic_findings,omitempty"`
	ImageRisk              float64  `json:"image_risk"` // [0,100]
	InsufficientResolution bool     `json:"insufficient_resolution,omitempty"`
	ImagesAnalyzed         int      `json:"images_analyzed"`
}

// Factor is one component's weighted contribution to the overall score,
// kept for explainability.
type Factor struct {
	Component    Category `json:"component"`
	Score        float64  `json:"score"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
	Rationale    string   `json:"rationale"`
}

// RiskScore is the deterministic aggregate over all component results.
// Identical inputs and configuration always produce an identical RiskScore.
type RiskScore struct {
	OverallScore    float64        `json:"overall_score"` // [0,100], 2 decimals
	RiskLevel       RiskLevel      `json:"risk_level"`
	Confidence      float64        `json:"confidence"` // [0,1]
	Factors         []Factor       `json:"contributing_factors"`
	Recommendation  Recommendation `json:"recommendation"`
	Recommendations []string       `json:"recommendations"`
}

// EngineRun records the outcome of one analysis engine for disclosure in
// the final report. Degraded analysis is never hidden.
type EngineRun struct {
	Name   string       `json:"name"`
	Status EngineStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Report is the immutable corroboration report, created exactly once per
// analysis.
type Report struct {
	DocumentID           string               `json:"document_id"`
	FileName             string               `json:"file_name"`
	AnalyzedAt           time.Time            `json:"analyzed_at"`
	Format               *ComponentResult     `json:"format_validation,omitempty"`
	Structure            *ComponentResult     `json:"structure_validation,omitempty"`
	Content              *ComponentResult     `json:"content_validation,omitempty"`
	Image                *ImageAnalysisResult `json:"image_analysis,omitempty"`
	Risk                 RiskScore            `json:"risk_score"`
	ProcessingTime       time.Duration        `json:"processing_time_ns"`
	Engines              []EngineRun          `json:"engines_used"`
	TotalIssues          int                  `json:"total_issues_found"`
	CriticalIssues       int                  `json:"critical_issues_count"`
	RequiresManualReview bool                 `json:"requires_manual_review"`
}

// CountIssues tallies total and critical issues across every component so
// consumers never recompute the report header.
func CountIssues(components []*ComponentResult, image *ImageAnalysisResult) (total, critical int) {
	count := func(issues []Issue) {
		for _, is := range issues {
			total++
			if is.Severity == SeverityCritical {
				critical++
			}
		}
	}
	for _, c := range components {
		if c != nil {
			count(c.Issues)
		}
	}
	if image != nil {
		count(image.MetadataFindings)
		count(image.ForensicFindings)
	}
	return total, critical
}
