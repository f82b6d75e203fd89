package report

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// RenderMarkdown renders the report as markdown. The rendering is lossless
// for the audited facts: risk level and overall score re-parse exactly via
// ParseMarkdownFacts.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Document Fraud Risk Report\n\n")
	fmt.Fprintf(&b, "**Document ID:** `%s`\n", r.DocumentID)
	fmt.Fprintf(&b, "**File Name:** %s\n", r.FileName)
	fmt.Fprintf(&b, "**Analyzed:** %s\n\n", r.AnalyzedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	fmt.Fprintf(&b, "## Risk Assessment\n\n")
	fmt.Fprintf(&b, "- **Overall Risk Score:** %.2f/100\n", r.Risk.OverallScore)
	fmt.Fprintf(&b, "- **Risk Level:** %s\n", r.Risk.RiskLevel)
	fmt.Fprintf(&b, "- **Confidence:** %.3f\n", r.Risk.Confidence)
	fmt.Fprintf(&b, "- **Recommendation:** %s\n", r.Risk.Recommendation)
	if r.RequiresManualReview {
		fmt.Fprintf(&b, "- **Requires Manual Review:** yes\n")
	} else {
		fmt.Fprintf(&b, "- **Requires Manual Review:** no\n")
	}
	b.WriteString("\n")

	if len(r.Risk.Factors) > 0 {
		fmt.Fprintf(&b, "### Contributing Factors\n\n")
		fmt.Fprintf(&b, "| Component | Score | Weight | Contribution | Rationale |\n")
		fmt.Fprintf(&b, "|---|---|---|---|---|\n")
		for _, f := range r.Risk.Factors {
			fmt.Fprintf(&b, "| %s | %.2f | %.4f | %.2f | %s |\n",
				f.Component, f.Score, f.Weight, f.Contribution, f.Rationale)
		}
		b.WriteString("\n")
	}

	if len(r.Risk.Recommendations) > 0 {
		fmt.Fprintf(&b, "### Recommendations\n\n")
		for _, rec := range r.Risk.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Issues Summary\n\n")
	fmt.Fprintf(&b, "- **Total Issues Found:** %d\n", r.TotalIssues)
	fmt.Fprintf(&b, "- **Critical Issues:** %d\n\n", r.CriticalIssues)

	writeComponent := func(name string, c *ComponentResult) {
		if c == nil {
			return
		}
		fmt.Fprintf(&b, "### %s\n\n", name)
		fmt.Fprintf(&b, "- Valid: %t\n", c.IsValid)
		fmt.Fprintf(&b, "- Component Score: %.2f\n", c.Score)
		for _, is := range c.Issues {
			fmt.Fprintf(&b, "- [%s] %s\n", is.Severity, is.Description)
		}
		b.WriteString("\n")
	}
	writeComponent("Format Validation", r.Format)
	writeComponent("Structure Validation", r.Structure)
	writeComponent("Content Validation", r.Content)

	if img := r.Image; img != nil {
		fmt.Fprintf(&b, "### Image Analysis\n\n")
		fmt.Fprintf(&b, "- Authentic: %t\n", img.IsAuthentic)
		fmt.Fprintf(&b, "- AI-Generated: %t (confidence %.3f)\n", img.IsAIGenerated, img.AIConfidence)
		fmt.Fprintf(&b, "- Tampered: %t (confidence %.3f)\n", img.IsTampered, img.TamperConfidence)
		fmt.Fprintf(&b, "- Metadata Risk: %.3f\n", img.MetadataRisk)
		fmt.Fprintf(&b, "- Image Risk: %.2f/100\n", img.ImageRisk)
		fmt.Fprintf(&b, "- Images Analyzed: %d\n", img.ImagesAnalyzed)
		if img.InsufficientResolution {
			fmt.Fprintf(&b, "- Insufficient resolution: confidence reduced\n")
		}
		for _, reg := range img.SuspiciousRegions {
			fmt.Fprintf(&b, "- Suspicious region: (%d,%d) %dx%d\n", reg.X, reg.Y, reg.Width, reg.Height)
		}
		for _, is := range img.MetadataFindings {
			fmt.Fprintf(&b, "- [%s] %s\n", is.Severity, is.Description)
		}
		for _, is := range img.ForensicFindings {
			fmt.Fprintf(&b, "- [%s] %s\n", is.Severity, is.Description)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Processing\n\n")
	fmt.Fprintf(&b, "- **Processing Time:** %.3fs\n", r.ProcessingTime.Seconds())
	names := make([]string, 0, len(r.Engines))
	for _, e := range r.Engines {
		names = append(names, fmt.Sprintf("%s (%s)", e.Name, e.Status))
	}
	fmt.Fprintf(&b, "- **Engines:** %s\n", strings.Join(names, ", "))

	return b.String()
}

// MarkdownFacts are the audited facts recoverable from a rendered report.
type MarkdownFacts struct {
	DocumentID   string
	OverallScore float64
	RiskLevel    RiskLevel
}

// ParseMarkdownFacts re-parses the facts written by RenderMarkdown. Used to
// prove the markdown rendering is lossless for score and level.
func ParseMarkdownFacts(md string) (MarkdownFacts, error) {
	var facts MarkdownFacts
	sc := bufio.NewScanner(strings.NewReader(md))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "**Document ID:**"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "**Document ID:**"))
			facts.DocumentID = strings.Trim(v, "`")
		case strings.HasPrefix(line, "- **Overall Risk Score:**"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "- **Overall Risk Score:**"))
			v = strings.TrimSuffix(v, "/100")
			score, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return facts, fmt.Errorf("parse overall score %q: %w", v, err)
			}
			facts.OverallScore = score
		case strings.HasPrefix(line, "- **Risk Level:**"):
			facts.RiskLevel = RiskLevel(strings.TrimSpace(strings.TrimPrefix(line, "- **Risk Level:**")))
		}
	}
	if err := sc.Err(); err != nil {
		return facts, err
	}
	if facts.DocumentID == "" || facts.RiskLevel == "" {
		return facts, fmt.Errorf("markdown is missing audited facts")
	}
	return facts, nil
}
