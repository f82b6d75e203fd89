package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/veridoc/veridoc/internal/report"
)

var (
	reDoubleSpace    = regexp.MustCompile(`[^\S\n]{2,}`)
	reIrregularBreak = regexp.MustCompile(`\n{3,}`)
	reSpaceIndent    = regexp.MustCompile(`^\s{2,}`)
	reVowel          = regexp.MustCompile(`[aeiouyAEIOUY]`)
	reLetters        = regexp.MustCompile(`^[A-Za-z]{4,}$`)
)

// FormatValidator flags typographic irregularities that legitimate documents
// rarely carry: uneven spacing, mixed indentation, and garbled words.
type FormatValidator struct{}

func (v *FormatValidator) Name() string { return "format" }

func (v *FormatValidator) Validate(ctx context.Context, in Input) (*report.ComponentResult, error) {
	if cancelled(ctx) {
		return nil, ctx.Err()
	}

	var issues []report.Issue
	score := 0.0

	if m := reDoubleSpace.FindAllString(in.Text, -1); len(m) > 0 {
		issues = append(issues, report.Issue{
			Category:    report.CategoryFormatting,
			Severity:    report.SeverityLow,
			Description: fmt.Sprintf("Found %d instances of irregular spacing", len(m)),
			Details:     map[string]string{"spacing_issues_count": fmt.Sprintf("%d", len(m))},
		})
	}

	if reIrregularBreak.MatchString(in.Text) {
		issues = append(issues, report.Issue{
			Category:    report.CategoryFormatting,
			Severity:    report.SeverityLow,
			Description: "Document has irregular line breaks (3+ consecutive newlines)",
		})
	}

	lines := strings.Split(in.Text, "\n")
	tabLines, spaceLines := 0, 0
	for _, line := range lines {
		if strings.HasPrefix(line, "\t") {
			tabLines++
		} else if reSpaceIndent.MatchString(line) {
			spaceLines++
		}
	}
	if tabLines > 0 && spaceLines > 0 {
		score += 10
		issues = append(issues, report.Issue{
			Category:    report.CategoryFormatting,
			Severity:    report.SeverityMedium,
			Description: "Document has mixed indentation (both tabs and spaces)",
			Details: map[string]string{
				"tab_lines":          fmt.Sprintf("%d", tabLines),
				"space_indent_lines": fmt.Sprintf("%d", spaceLines),
			},
		})
	}

	if cancelled(ctx) {
		return nil, ctx.Err()
	}

	garbled := garbledWordCount(in.Text)
	if garbled > 5 {
		issues = append(issues, report.Issue{
			Category:    report.CategoryFormatting,
			Severity:    report.SeverityMedium,
			Description: fmt.Sprintf("Detected %d potential spelling errors or garbled words", garbled),
			Details:     map[string]string{"garbled_words": fmt.Sprintf("%d", garbled)},
		})
	}
	if garbled > 10 {
		score += 20
	}

	for _, is := range issues {
		score += severityScore(is.Severity) * 0.1
	}
	score = capScore(score)

	return &report.ComponentResult{
		IsValid: score < 50,
		Issues:  issues,
		Score:   score,
	}, nil
}

// garbledWordCount is a cheap misspelling proxy: alphabetic words of four or
// more letters containing no vowel at all are almost always OCR damage or
// fabricated filler.
func garbledWordCount(text string) int {
	const limit = 10000
	if len(text) > limit {
		text = text[:limit]
	}
	count := 0
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if reLetters.MatchString(w) && !reVowel.MatchString(w) {
			count++
		}
	}
	return count
}
