package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/veridoc/veridoc/internal/app/ui"
	"github.com/veridoc/veridoc/internal/report"
)

// PrintReport renders a full analysis report to the console with severity
// colors. Layout mirrors the report structure: verdict, contributing
// factors, issues, engine disclosure, recommendations.
func PrintReport(r *report.Report) {
	levelColor := riskColor(r.Risk.RiskLevel)

	fmt.Printf("\n%sDocument: %s%s\n", ui.ColorWhite, displayName(r), ui.ColorReset)
	fmt.Printf("%s - Document ID: %s%s\n", ui.ColorGray, r.DocumentID, ui.ColorReset)
	fmt.Printf("%s - Analyzed: %s%s\n", ui.ColorGray, r.AnalyzedAt.Format(time.RFC3339), ui.ColorReset)
	fmt.Printf("%s - Processing time: %s%s\n", ui.ColorGray, r.ProcessingTime.Round(time.Millisecond), ui.ColorReset)

	fmt.Printf("\n%sRisk: %.2f/100 [%s]%s", levelColor, r.Risk.OverallScore, r.Risk.RiskLevel, ui.ColorReset)
	fmt.Printf("  %s(confidence %.3f)%s\n", ui.ColorGray, r.Risk.Confidence, ui.ColorReset)
	fmt.Printf("%sRecommendation: %s%s\n", levelColor, r.Risk.Recommendation, ui.ColorReset)
	if r.RequiresManualReview {
		fmt.Printf("%s!! Manual review required%s\n", ui.ColorRed, ui.ColorReset)
	}

	if len(r.Risk.Factors) > 0 {
		fmt.Printf("\n%sContributing factors:%s\n", ui.ColorWhite, ui.ColorReset)
		for _, f := range r.Risk.Factors {
			fmt.Printf(" %-12s score %6.2f x weight %.4f = %6.2f  %s%s%s\n",
				f.Component, f.Score, f.Weight, f.Contribution, ui.ColorGray, f.Rationale, ui.ColorReset)
		}
	}

	printIssues(collectIssues(r))
	printImageAnalysis(r.Image)
	printEngines(r.Engines)

	if len(r.Risk.Recommendations) > 0 {
		fmt.Printf("\n%sRecommended actions:%s\n", ui.ColorWhite, ui.ColorReset)
		for _, rec := range r.Risk.Recommendations {
			fmt.Printf(" - %s\n", rec)
		}
	}
	fmt.Println()
}

func displayName(r *report.Report) string {
	if r.FileName != "" {
		return r.FileName
	}
	return r.DocumentID
}

func collectIssues(r *report.Report) []report.Issue {
	var issues []report.Issue
	for _, c := range []*report.ComponentResult{r.Format, r.Structure, r.Content} {
		if c != nil {
			issues = append(issues, c.Issues...)
		}
	}
	if r.Image != nil {
		issues = append(issues, r.Image.MetadataFindings...)
		issues = append(issues, r.Image.ForensicFindings...)
	}
	return issues
}

// printIssues prints every issue found, worst severity first, duplicates
// collapsed with an occurrence count.
func printIssues(issues []report.Issue) {
	if len(issues) == 0 {
		fmt.Printf("\n%sNo issues found.%s\n", ui.ColorGreen, ui.ColorReset)
		return
	}

	aggregated := aggregateIssues(issues)
	sort.Slice(aggregated, func(i, j int) bool {
		wi, wj := report.SeverityWeight(aggregated[i].Issue.Severity), report.SeverityWeight(aggregated[j].Issue.Severity)
		if wi == wj {
			if aggregated[i].Issue.Category == aggregated[j].Issue.Category {
				return aggregated[i].Issue.Description < aggregated[j].Issue.Description
			}
			return aggregated[i].Issue.Category < aggregated[j].Issue.Category
		}
		return wi > wj
	})

	fmt.Printf("\n%sIssues found:%s\n", ui.ColorWhite, ui.ColorReset)
	for _, item := range aggregated {
		is := item.Issue
		fmt.Printf("\n%s[%s] (%s) %s%s\n", severityColor(is.Severity), is.Severity, is.Category, is.Description, ui.ColorReset)
		if item.Count > 1 {
			fmt.Printf("%s - Occurrences: %d%s\n", ui.ColorGray, item.Count, ui.ColorReset)
		}
		if is.Location != "" {
			fmt.Printf("%s - Location: %s%s\n", ui.ColorGray, is.Location, ui.ColorReset)
		}
		if len(is.Details) > 0 {
			keys := make([]string, 0, len(is.Details))
			for k := range is.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s - %s: %s%s\n", ui.ColorGray, k, is.Details[k], ui.ColorReset)
			}
		}
	}
}

func printImageAnalysis(img *report.ImageAnalysisResult) {
	if img == nil {
		return
	}

	fmt.Printf("\n%sImage forensics (%d analyzed):%s\n", ui.ColorWhite, img.ImagesAnalyzed, ui.ColorReset)
	flag := func(label string, set bool, conf float64) {
		color := ui.ColorGreen
		mark := "clear"
		if set {
			color = ui.ColorRed
			mark = "FLAGGED"
		}
		fmt.Printf(" %-22s %s%s%s (confidence %.2f)\n", label, color, mark, ui.ColorReset, conf)
	}
	flag("AI generation", img.IsAIGenerated, img.AIConfidence)
	flag("Tampering", img.IsTampered, img.TamperConfidence)
	fmt.Printf(" %-22s %.2f\n", "Clone confidence", img.CloneConfidence)
	fmt.Printf(" %-22s %.2f\n", "Metadata risk", img.MetadataRisk)
	fmt.Printf(" %-22s %.2f\n", "Image risk", img.ImageRisk)
	if img.InsufficientResolution {
		fmt.Printf(" %s(low resolution, confidence attenuated)%s\n", ui.ColorGray, ui.ColorReset)
	}
	for _, rg := range img.SuspiciousRegions {
		fmt.Printf(" %ssuspicious region at (%d,%d) %dx%d%s\n", ui.ColorGray, rg.X, rg.Y, rg.Width, rg.Height, ui.ColorReset)
	}
}

func printEngines(runs []report.EngineRun) {
	if len(runs) == 0 {
		return
	}
	fmt.Printf("\n%sEngines:%s\n", ui.ColorWhite, ui.ColorReset)
	for _, er := range runs {
		var color string
		switch er.Status {
		case report.EngineCompleted:
			color = ui.ColorGreen
		case report.EngineSkipped:
			color = ui.ColorGray
		case report.EngineTimedOut:
			color = ui.ColorYellow
		default:
			color = ui.ColorRed
		}
		if er.Error != "" {
			fmt.Printf(" [%s%s%s] %s: %s\n", color, er.Status, ui.ColorReset, er.Name, er.Error)
		} else {
			fmt.Printf(" [%s%s%s] %s\n", color, er.Status, ui.ColorReset, er.Name)
		}
	}
}

type consoleIssue struct {
	Issue report.Issue
	Count int
}

func aggregateIssues(issues []report.Issue) []consoleIssue {
	type key struct {
		Category    report.Category
		Severity    report.Severity
		Description string
	}

	grouped := make(map[key]*consoleIssue)
	order := make([]key, 0, len(issues))
	for _, is := range issues {
		k := key{Category: is.Category, Severity: is.Severity, Description: is.Description}
		if existing, ok := grouped[k]; ok {
			existing.Count++
			if existing.Issue.Location == "" && is.Location != "" {
				existing.Issue.Location = is.Location
			}
			continue
		}
		cp := is
		grouped[k] = &consoleIssue{Issue: cp, Count: 1}
		order = append(order, k)
	}

	out := make([]consoleIssue, 0, len(grouped))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out
}

// SaveJSONReport writes the report to veridoc_report_<id>_<timestamp>.json
// in the given directory ("" means working directory) and returns the path.
func SaveJSONReport(dir string, r *report.Report) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	sanitized := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, r.DocumentID)

	filename := fmt.Sprintf("veridoc_report_%s_%s.json", sanitized, timestamp)
	if dir != "" {
		filename = filepath.Join(dir, filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(r); err != nil {
		return "", err
	}
	return filename, nil
}

func severityColor(s report.Severity) string {
	switch s {
	case report.SeverityCritical:
		return ui.ColorCritical
	case report.SeverityHigh:
		return ui.ColorHigh
	case report.SeverityMedium:
		return ui.ColorMedium
	case report.SeverityLow:
		return ui.ColorLow
	default:
		return ui.ColorWhite
	}
}

func riskColor(level report.RiskLevel) string {
	switch level {
	case report.RiskCritical:
		return ui.ColorCritical
	case report.RiskHigh:
		return ui.ColorHigh
	case report.RiskMedium:
		return ui.ColorMedium
	case report.RiskLow:
		return ui.ColorGreen
	default:
		return ui.ColorWhite
	}
}
