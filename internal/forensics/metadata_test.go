package forensics

import (
	"bytes"
	"context"
	"image/jpeg"
	"math"
	"testing"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/report"
)

func TestAnalyzeMetadataMissingEXIF(t *testing.T) {
	cfg := config.Default().Forensics
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatImage(32, 32, 128), nil); err != nil {
		t.Fatalf("jpeg.Encode() error: %v", err)
	}

	res, err := analyzeMetadata(context.Background(), buf.Bytes(), "scan.jpg", cfg.Metadata)
	if err != nil {
		t.Fatalf("analyzeMetadata() error: %v", err)
	}
	if res.HasEXIF {
		t.Fatal("HasEXIF = true for a bare encode")
	}
	if math.Abs(res.Risk-cfg.Metadata.MissingEXIF) > 1e-9 {
		t.Fatalf("Risk = %v, want %v", res.Risk, cfg.Metadata.MissingEXIF)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("Findings = %v, want the missing-EXIF finding only", res.Findings)
	}
	if res.Findings[0].Severity != report.SeverityMedium {
		t.Fatalf("severity = %s, want %s", res.Findings[0].Severity, report.SeverityMedium)
	}
	if res.Findings[0].Location != "scan.jpg" {
		t.Fatalf("location = %q, want the file name", res.Findings[0].Location)
	}
}

func TestAnalyzeMetadataCancel(t *testing.T) {
	cfg := config.Default().Forensics
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := analyzeMetadata(ctx, nil, "x.jpg", cfg.Metadata); err == nil {
		t.Fatal("expected context error after cancel")
	}
}
