package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/veridoc/veridoc/internal/report"
)

// sectionTemplates lists the section names expected per document type. An
// unknown type gets the generic template.
var sectionTemplates = map[string][]string{
	"invoice":  {"Invoice", "Date", "Amount", "Description", "Total"},
	"contract": {"Parties", "Terms", "Conditions", "Signatures", "Date"},
	"report":   {"Executive Summary", "Introduction", "Methodology", "Results", "Conclusion"},
	"letter":   {"Date", "Recipient", "Body", "Signature"},
}

var genericSections = []string{"Introduction", "Body", "Conclusion"}

var reHeader = regexp.MustCompile(`(?m)^[A-Z][A-Za-z\s]{3,50}$`)

const completeWordCount = 100

// StructureValidator checks a document against the section template for its
// declared type and flags truncated or header-less documents.
type StructureValidator struct{}

func (v *StructureValidator) Name() string { return "structure" }

func (v *StructureValidator) Validate(ctx context.Context, in Input) (*report.ComponentResult, error) {
	if cancelled(ctx) {
		return nil, ctx.Err()
	}

	var issues []report.Issue
	score := 0.0

	expected := sectionTemplates[strings.ToLower(in.DocumentType)]
	if expected == nil {
		expected = genericSections
	}

	var missing []string
	lower := strings.ToLower(in.Text)
	for _, section := range expected {
		if !containsWord(lower, strings.ToLower(section)) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		sev := report.SeverityMedium
		if len(missing) > 2 {
			sev = report.SeverityHigh
		}
		score += float64(len(missing)) * 15
		issues = append(issues, report.Issue{
			Category:    report.CategoryStructure,
			Severity:    sev,
			Description: fmt.Sprintf("Document is missing %d expected sections", len(missing)),
			Details:     map[string]string{"missing_sections": strings.Join(missing, ", ")},
		})
	}

	matchScore := 1.0
	if len(expected) > 0 {
		matchScore = float64(len(expected)-len(missing)) / float64(len(expected))
	}
	score += (1.0 - matchScore) * 50
	if matchScore < 0.7 {
		issues = append(issues, report.Issue{
			Category:    report.CategoryStructure,
			Severity:    report.SeverityHigh,
			Description: fmt.Sprintf("Low template match score (%.2f)", matchScore),
		})
	}

	headers := reHeader.FindAllString(in.Text, -1)
	if len(headers) < 2 {
		issues = append(issues, report.Issue{
			Category:    report.CategoryStructure,
			Severity:    report.SeverityMedium,
			Description: "Document appears to lack proper section headers",
		})
		score += severityScore(report.SeverityMedium) * 0.15
	}

	wordCount := len(strings.Fields(in.Text))
	if wordCount <= completeWordCount {
		score += 40
		issues = append(issues, report.Issue{
			Category:    report.CategoryStructure,
			Severity:    report.SeverityCritical,
			Description: fmt.Sprintf("Document appears incomplete (only %d words)", wordCount),
			Details:     map[string]string{"word_count": fmt.Sprintf("%d", wordCount)},
		})
	}

	score = capScore(score)
	return &report.ComponentResult{
		IsValid: wordCount > completeWordCount && len(missing) == 0,
		Issues:  issues,
		Score:   score,
	}, nil
}

// containsWord reports a whole-word, case-folded match. Both arguments must
// already be lowercased.
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		beforeOK := i == 0 || !isWordByte(text[i-1])
		after := i + len(word)
		afterOK := after >= len(text) || !isWordByte(text[after])
		if beforeOK && afterOK {
			return true
		}
		idx = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
