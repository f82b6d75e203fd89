package validate

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/veridoc/veridoc/internal/report"
)

var (
	reSSN        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	reCreditCard = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	reEmailAddr  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// ContentValidator scores text quality: readability, length, repetition,
// and the presence of sensitive data patterns.
type ContentValidator struct{}

func (v *ContentValidator) Name() string { return "content" }

func (v *ContentValidator) Validate(ctx context.Context, in Input) (*report.ComponentResult, error) {
	if cancelled(ctx) {
		return nil, ctx.Err()
	}

	var issues []report.Issue
	score := 0.0

	if hasSensitiveData(in.Text) {
		score += 25
		issues = append(issues, report.Issue{
			Category:    report.CategoryContent,
			Severity:    report.SeverityHigh,
			Description: "Document may contain sensitive personal information (PII)",
			Details:     map[string]string{"flag": "sensitive_data"},
		})
	}

	readability := fleschReadingEase(in.Text)
	if readability < 30 {
		score += 15
		issues = append(issues, report.Issue{
			Category:    report.CategoryContent,
			Severity:    report.SeverityLow,
			Description: "Document has low readability score",
			Details:     map[string]string{"readability_score": fmt.Sprintf("%.1f", readability)},
		})
	}

	words := strings.Fields(in.Text)
	if len(words) < 50 {
		score += 20
		issues = append(issues, report.Issue{
			Category:    report.CategoryContent,
			Severity:    report.SeverityMedium,
			Description: fmt.Sprintf("Suspiciously short document (%d words)", len(words)),
		})
	}

	quality := qualityScore(words, readability)
	score += (1.0 - quality) * 30
	if quality < 0.5 {
		issues = append(issues, report.Issue{
			Category:    report.CategoryContent,
			Severity:    report.SeverityMedium,
			Description: fmt.Sprintf("Low content quality score (%.2f)", quality),
		})
	}

	score = capScore(score)
	return &report.ComponentResult{
		IsValid: score < 50,
		Issues:  issues,
		Score:   score,
	}, nil
}

func hasSensitiveData(text string) bool {
	return reSSN.MatchString(text) ||
		reCreditCard.MatchString(text) ||
		len(reEmailAddr.FindAllString(text, -1)) > 5
}

// fleschReadingEase computes the standard Flesch score clamped to [0,100].
func fleschReadingEase(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	sentences := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	score := 206.835 -
		1.015*(float64(len(words))/float64(sentences)) -
		84.6*(float64(syllables)/float64(len(words)))
	return math.Max(0, math.Min(100, score))
}

func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

// qualityScore blends readability, length, and vocabulary diversity into one
// [0,1] metric.
func qualityScore(words []string, readability float64) float64 {
	lengthNorm := math.Min(float64(len(words))/500.0, 1.0)
	uniqueRatio := 0.0
	if len(words) > 0 {
		seen := make(map[string]struct{}, len(words))
		for _, w := range words {
			seen[strings.ToLower(w)] = struct{}{}
		}
		uniqueRatio = float64(len(seen)) / float64(len(words))
	}
	q := readability/100*0.4 + lengthNorm*0.3 + uniqueRatio*0.3
	return math.Round(q*100) / 100
}
