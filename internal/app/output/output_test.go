package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/veridoc/veridoc/internal/report"
)

func TestSaveJSONReportRoundTrip(t *testing.T) {
	tmp := t.TempDir()

	in := &report.Report{
		DocumentID: "doc-123",
		FileName:   "invoice.pdf",
		AnalyzedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Risk: report.RiskScore{
			OverallScore:   43.5,
			RiskLevel:      report.RiskMedium,
			Recommendation: report.RecommendReview,
		},
	}

	path, err := SaveJSONReport(tmp, in)
	if err != nil {
		t.Fatalf("SaveJSONReport() error: %v", err)
	}
	if filepath.Dir(path) != tmp {
		t.Fatalf("report written to %q, want directory %q", path, tmp)
	}
	if !strings.Contains(filepath.Base(path), "doc-123") {
		t.Fatalf("filename %q does not include the document id", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var out report.Report
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if out.DocumentID != in.DocumentID || out.Risk.OverallScore != in.Risk.OverallScore {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestSaveJSONReportSanitizesID(t *testing.T) {
	tmp := t.TempDir()

	path, err := SaveJSONReport(tmp, &report.Report{DocumentID: "../../etc/passwd"})
	if err != nil {
		t.Fatalf("SaveJSONReport() error: %v", err)
	}
	base := filepath.Base(path)
	if strings.ContainsAny(base, "/\\") || strings.Contains(base, "..") {
		t.Fatalf("unsafe filename %q", base)
	}
	if filepath.Dir(path) != tmp {
		t.Fatalf("report escaped directory: %q", path)
	}
}

func TestAggregateIssuesCollapsesDuplicates(t *testing.T) {
	issues := []report.Issue{
		{Category: report.CategoryFormatting, Severity: report.SeverityLow, Description: "irregular spacing"},
		{Category: report.CategoryFormatting, Severity: report.SeverityLow, Description: "irregular spacing", Location: "page 2"},
		{Category: report.CategoryContent, Severity: report.SeverityHigh, Description: "sensitive data detected"},
	}

	got := aggregateIssues(issues)
	if len(got) != 2 {
		t.Fatalf("aggregated into %d groups, want 2", len(got))
	}
	if got[0].Count != 2 {
		t.Fatalf("duplicate count = %d, want 2", got[0].Count)
	}
	if got[0].Issue.Location != "page 2" {
		t.Fatalf("location not backfilled: %q", got[0].Issue.Location)
	}
}

func TestCollectIssuesSpansComponents(t *testing.T) {
	r := &report.Report{
		Format: &report.ComponentResult{Issues: []report.Issue{
			{Category: report.CategoryFormatting, Severity: report.SeverityLow, Description: "a"},
		}},
		Content: &report.ComponentResult{Issues: []report.Issue{
			{Category: report.CategoryContent, Severity: report.SeverityMedium, Description: "b"},
		}},
		Image: &report.ImageAnalysisResult{
			MetadataFindings: []report.Issue{
				{Category: report.CategoryImage, Severity: report.SeverityMedium, Description: "c"},
			},
			ForensicFindings: []report.Issue{
				{Category: report.CategoryImage, Severity: report.SeverityCritical, Description: "d"},
			},
		},
	}

	if got := collectIssues(r); len(got) != 4 {
		t.Fatalf("collected %d issues, want 4", len(got))
	}
}
