package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/report"
)

// AggregationError means no component produced a usable score. The pipeline
// refuses to emit a misleadingly low score in that case.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "risk aggregation: " + e.Reason
}

// Input carries the component results available for one analysis. A nil
// component means the validator did not run or timed out; it is treated as
// absent, never as a score of zero.
type Input struct {
	Format    *report.ComponentResult
	Structure *report.ComponentResult
	Content   *report.ComponentResult
	Image     *report.ImageAnalysisResult
}

// Scorer is the deterministic aggregation over component results. It holds
// only configuration and is safe for concurrent use.
type Scorer struct {
	weights    config.Weights
	thresholds config.RiskThresholds
}

func NewScorer(weights config.Weights, thresholds config.RiskThresholds) *Scorer {
	return &Scorer{weights: weights, thresholds: thresholds}
}

type component struct {
	name   report.Category
	score  float64
	weight float64
}

// Score aggregates the available components into one RiskScore. Absent
// components have their weight redistributed proportionally across the rest;
// identical inputs always produce an identical result.
func (s *Scorer) Score(in Input) (report.RiskScore, error) {
	var comps []component
	if in.Format != nil {
		comps = append(comps, component{report.CategoryFormatting, in.Format.Score, s.weights.Format})
	}
	if in.Structure != nil {
		comps = append(comps, component{report.CategoryStructure, in.Structure.Score, s.weights.Structure})
	}
	if in.Content != nil {
		comps = append(comps, component{report.CategoryContent, in.Content.Score, s.weights.Content})
	}
	if in.Image != nil {
		comps = append(comps, component{report.CategoryImage, in.Image.ImageRisk, s.weights.Image})
	}
	if len(comps) == 0 {
		return report.RiskScore{}, &AggregationError{Reason: "no usable component results"}
	}

	weightSum := 0.0
	for _, c := range comps {
		weightSum += c.weight
	}
	// Renormalize so absent components never drag the score toward zero.
	for i := range comps {
		comps[i].weight /= weightSum
	}

	overall := 0.0
	factors := make([]report.Factor, 0, len(comps))
	for _, c := range comps {
		contribution := c.score * c.weight
		overall += contribution
		factors = append(factors, report.Factor{
			Component:    c.name,
			Score:        round2(c.score),
			Weight:       round4(c.weight),
			Contribution: round2(contribution),
			Rationale:    rationale(c.name, c.score),
		})
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Contribution > factors[j].Contribution
	})

	overall = round2(overall)
	level := s.level(overall)

	return report.RiskScore{
		OverallScore:    overall,
		RiskLevel:       level,
		Confidence:      confidence(comps),
		Factors:         factors,
		Recommendation:  recommendation(level),
		Recommendations: recommendations(level, factors[0], in),
	}, nil
}

// level buckets the overall score. Threshold upper bounds are exclusive, so
// a score exactly at low_max is already MEDIUM.
func (s *Scorer) level(score float64) report.RiskLevel {
	switch {
	case score < s.thresholds.LowMax:
		return report.RiskLow
	case score < s.thresholds.MediumMax:
		return report.RiskMedium
	case score < s.thresholds.HighMax:
		return report.RiskHigh
	default:
		return report.RiskCritical
	}
}

// confidence decreases with fewer completed components and with disagreement
// between them. Four agreeing components give 1.0; a single component caps
// at 0.25 regardless of its score.
func confidence(comps []component) float64 {
	completeness := float64(len(comps)) / 4

	mean := 0.0
	for _, c := range comps {
		mean += c.score
	}
	mean /= float64(len(comps))
	variance := 0.0
	for _, c := range comps {
		d := c.score - mean
		variance += d * d
	}
	variance /= float64(len(comps))

	// Score stddev over [0,100] maxes out at 50.
	disagreement := math.Sqrt(variance) / 50
	if disagreement > 1 {
		disagreement = 1
	}
	return round3(completeness * (1 - 0.5*disagreement))
}

func recommendation(level report.RiskLevel) report.Recommendation {
	switch level {
	case report.RiskLow:
		return report.RecommendAccept
	case report.RiskMedium:
		return report.RecommendReview
	case report.RiskHigh:
		return report.RecommendManualReview
	default:
		return report.RecommendReject
	}
}

func rationale(name report.Category, score float64) string {
	switch name {
	case report.CategoryFormatting:
		return fmt.Sprintf("format validation scored %.2f", score)
	case report.CategoryStructure:
		return fmt.Sprintf("structure validation scored %.2f", score)
	case report.CategoryContent:
		return fmt.Sprintf("content validation scored %.2f", score)
	default:
		return fmt.Sprintf("image forensics scored %.2f", score)
	}
}

func recommendations(level report.RiskLevel, top report.Factor, in Input) []string {
	var recs []string
	switch level {
	case report.RiskCritical:
		recs = append(recs,
			fmt.Sprintf("REJECT: critical fraud risk driven by %s", top.Component),
			"Immediate manual review required by compliance officer")
	case report.RiskHigh:
		recs = append(recs,
			fmt.Sprintf("HOLD: document requires thorough manual review (%s is the top factor)", top.Component),
			"Request additional supporting documents")
	case report.RiskMedium:
		recs = append(recs,
			fmt.Sprintf("REVIEW: document has minor issues, mostly from %s", top.Component),
			"Consider requesting clarification on flagged items")
	default:
		recs = append(recs,
			fmt.Sprintf("ACCEPT: document appears legitimate, %s is the highest (low) contributor", top.Component),
			"Proceed with standard processing")
	}

	if in.Image != nil {
		if in.Image.IsAIGenerated {
			recs = append(recs,
				"Request original document or high-resolution scan",
				"Verify document through alternative channels")
		}
		if in.Image.IsTampered {
			recs = append(recs,
				"Flag for fraud investigation",
				"Compare with original document from issuing authority")
		}
		if in.Image.InsufficientResolution {
			recs = append(recs, "Request a higher-resolution scan; forensic confidence was reduced")
		}
	}
	if in.Structure != nil && !in.Structure.IsValid {
		recs = append(recs, "Request complete document with all required sections")
	}
	if in.Content != nil {
		for _, is := range in.Content.Issues {
			if is.Details["flag"] == "sensitive_data" {
				recs = append(recs, "Review PII handling and compliance requirements")
				break
			}
		}
	}

	if len(recs) > 10 {
		recs = recs[:10]
	}
	return recs
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
