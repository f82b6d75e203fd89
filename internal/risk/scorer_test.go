package risk

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/report"
)

func defaultScorer() *Scorer {
	cfg := config.Default()
	return NewScorer(cfg.Weights, cfg.RiskThresholds)
}

func comp(score float64) *report.ComponentResult {
	return &report.ComponentResult{IsValid: score < 50, Score: score}
}

func TestScoreTextOnlyRedistributesImageWeight(t *testing.T) {
	s := defaultScorer()

	rs, err := s.Score(Input{
		Format:    comp(20),
		Structure: comp(10),
		Content:   comp(30),
	})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	// Weights 0.15/0.25/0.20 renormalized over 0.60 give 0.25/0.4167/0.3333.
	if math.Abs(rs.OverallScore-19.17) > 1e-9 {
		t.Fatalf("OverallScore = %v, want 19.17", rs.OverallScore)
	}
	if rs.RiskLevel != report.RiskLow {
		t.Fatalf("RiskLevel = %s, want LOW", rs.RiskLevel)
	}
	if len(rs.Factors) != 3 {
		t.Fatalf("Factors = %v, want 3", rs.Factors)
	}
	wsum := 0.0
	for _, f := range rs.Factors {
		wsum += f.Weight
	}
	if math.Abs(wsum-1.0) > 1e-3 {
		t.Fatalf("renormalized weights sum to %v, want 1.0", wsum)
	}
}

func TestScoreAllComponents(t *testing.T) {
	s := defaultScorer()

	rs, err := s.Score(Input{
		Format:    comp(20),
		Structure: comp(10),
		Content:   comp(30),
		Image:     &report.ImageAnalysisResult{ImageRisk: 80},
	})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	// 20*0.15 + 10*0.25 + 30*0.20 + 80*0.40
	if math.Abs(rs.OverallScore-43.50) > 1e-9 {
		t.Fatalf("OverallScore = %v, want 43.50", rs.OverallScore)
	}
	if rs.RiskLevel != report.RiskMedium {
		t.Fatalf("RiskLevel = %s, want MEDIUM", rs.RiskLevel)
	}
	if rs.Factors[0].Component != report.CategoryImage {
		t.Fatalf("top factor = %s, want image", rs.Factors[0].Component)
	}
}

func TestScoreLevelBoundaries(t *testing.T) {
	s := defaultScorer()
	cases := []struct {
		score float64
		want  report.RiskLevel
	}{
		{0, report.RiskLow},
		{25.99, report.RiskLow},
		{26, report.RiskMedium},
		{50.99, report.RiskMedium},
		{51, report.RiskHigh},
		{75.99, report.RiskHigh},
		{76, report.RiskCritical},
		{100, report.RiskCritical},
	}
	for _, tc := range cases {
		if got := s.level(tc.score); got != tc.want {
			t.Errorf("level(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestScoreNoComponents(t *testing.T) {
	s := defaultScorer()
	_, err := s.Score(Input{})
	var ae *AggregationError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want *AggregationError", err)
	}
}

func TestScoreMonotonic(t *testing.T) {
	s := defaultScorer()
	prev := -1.0
	for v := 0.0; v <= 100; v += 10 {
		rs, err := s.Score(Input{
			Format:    comp(v),
			Structure: comp(40),
			Content:   comp(40),
			Image:     &report.ImageAnalysisResult{ImageRisk: 40},
		})
		if err != nil {
			t.Fatalf("Score() error: %v", err)
		}
		if rs.OverallScore < prev {
			t.Fatalf("score decreased from %v to %v as format rose to %v", prev, rs.OverallScore, v)
		}
		prev = rs.OverallScore
	}
}

func TestScoreRange(t *testing.T) {
	s := defaultScorer()
	for _, scores := range [][4]float64{
		{0, 0, 0, 0},
		{100, 100, 100, 100},
		{13.37, 99.99, 0.01, 55},
	} {
		rs, err := s.Score(Input{
			Format:    comp(scores[0]),
			Structure: comp(scores[1]),
			Content:   comp(scores[2]),
			Image:     &report.ImageAnalysisResult{ImageRisk: scores[3]},
		})
		if err != nil {
			t.Fatalf("Score() error: %v", err)
		}
		if rs.OverallScore < 0 || rs.OverallScore > 100 {
			t.Fatalf("OverallScore = %v out of range for %v", rs.OverallScore, scores)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := defaultScorer()
	in := Input{
		Format:    comp(33),
		Structure: comp(67),
		Content:   comp(12),
		Image:     &report.ImageAnalysisResult{ImageRisk: 44, IsTampered: true},
	}
	a, err := s.Score(in)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	b, err := s.Score(in)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if a.OverallScore != b.OverallScore || a.Confidence != b.Confidence {
		t.Fatalf("scores differ across runs: %+v vs %+v", a, b)
	}
	if len(a.Recommendations) != len(b.Recommendations) {
		t.Fatalf("recommendations differ across runs")
	}
}

func TestScoreConfidence(t *testing.T) {
	s := defaultScorer()

	full, err := s.Score(Input{
		Format:    comp(40),
		Structure: comp(40),
		Content:   comp(40),
		Image:     &report.ImageAnalysisResult{ImageRisk: 40},
	})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if full.Confidence != 1.0 {
		t.Fatalf("four agreeing components: confidence = %v, want 1.0", full.Confidence)
	}

	partial, err := s.Score(Input{Format: comp(40)})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if partial.Confidence >= full.Confidence {
		t.Fatalf("single component confidence %v not below %v", partial.Confidence, full.Confidence)
	}

	disagree, err := s.Score(Input{
		Format:    comp(0),
		Structure: comp(100),
		Content:   comp(0),
		Image:     &report.ImageAnalysisResult{ImageRisk: 100},
	})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if disagree.Confidence >= full.Confidence {
		t.Fatalf("disagreeing components confidence %v not below %v", disagree.Confidence, full.Confidence)
	}
}

func TestScoreRecommendationMapping(t *testing.T) {
	s := defaultScorer()
	// With all four components at the same score the overall equals it.
	cases := []struct {
		score float64
		want  report.Recommendation
	}{
		{10, report.RecommendAccept},
		{40, report.RecommendReview},
		{60, report.RecommendManualReview},
		{90, report.RecommendReject},
	}
	for _, tc := range cases {
		rs, err := s.Score(Input{
			Format:    comp(tc.score),
			Structure: comp(tc.score),
			Content:   comp(tc.score),
			Image:     &report.ImageAnalysisResult{ImageRisk: tc.score},
		})
		if err != nil {
			t.Fatalf("Score() error: %v", err)
		}
		if rs.Recommendation != tc.want {
			t.Fatalf("score %v: recommendation = %s, want %s", tc.score, rs.Recommendation, tc.want)
		}
	}
}

func TestRecommendationsNameTopFactor(t *testing.T) {
	s := defaultScorer()
	// Every level's lead recommendation names the top contributing factor.
	for _, score := range []float64{10, 40, 60, 90} {
		rs, err := s.Score(Input{
			Format:    comp(score),
			Structure: comp(score),
			Content:   comp(score),
			Image:     &report.ImageAnalysisResult{ImageRisk: score},
		})
		if err != nil {
			t.Fatalf("Score() error: %v", err)
		}
		if len(rs.Recommendations) == 0 || len(rs.Factors) == 0 {
			t.Fatalf("score %v: empty recommendations or factors", score)
		}
		top := string(rs.Factors[0].Component)
		if !strings.Contains(rs.Recommendations[0], top) {
			t.Fatalf("score %v: recommendation %q does not name top factor %q", score, rs.Recommendations[0], top)
		}
	}
}

func TestScoreTamperedImageAddsRecommendations(t *testing.T) {
	s := defaultScorer()
	rs, err := s.Score(Input{
		Image: &report.ImageAnalysisResult{ImageRisk: 90, IsTampered: true},
	})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	found := false
	for _, r := range rs.Recommendations {
		if r == "Flag for fraud investigation" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no fraud-investigation recommendation in %v", rs.Recommendations)
	}
}
