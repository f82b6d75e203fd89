package forensics

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/report"
)

// MetadataResult is the metadata-forensics signal for one image. Each flag
// adds a fixed configured increment to the risk subtotal, capped at 1.0.
type MetadataResult struct {
	HasEXIF            bool
	EditingSoftware    string
	TimestampInversion bool
	HasCameraInfo      bool
	Risk               float64
	Findings           []report.Issue
}

var editingSoftware = []string{
	"photoshop", "gimp", "paint", "lightroom", "affinity", "corel", "pixelmator", "canva",
}

const exifTimeLayout = "2006:01:02 15:04:05"

func analyzeMetadata(ctx context.Context, src []byte, fileName string, cfg config.Metadata) (MetadataResult, error) {
	var res MetadataResult
	if cancelled(ctx) {
		return res, ctx.Err()
	}

	x, err := exif.Decode(bytes.NewReader(src))
	if err != nil || x == nil {
		// Stripped or absent metadata is itself a signal: legitimate
		// scans and camera captures normally carry EXIF.
		res.Risk = cfg.MissingEXIF
		res.Findings = append(res.Findings, report.Issue{
			Category:    report.CategoryImage,
			Severity:    report.SeverityMedium,
			Description: "Image has no EXIF metadata (may have been stripped or generated)",
			Location:    fileName,
		})
		return res, nil
	}
	res.HasEXIF = true

	if sw := exifString(x, exif.Software); sw != "" {
		lower := strings.ToLower(sw)
		for _, editor := range editingSoftware {
			if strings.Contains(lower, editor) {
				res.EditingSoftware = sw
				res.Risk += cfg.EditingSoftware
				res.Findings = append(res.Findings, report.Issue{
					Category:    report.CategoryImage,
					Severity:    report.SeverityHigh,
					Description: "Image shows signs of editing (software: " + sw + ")",
					Location:    fileName,
					Details:     map[string]string{"software": sw},
				})
				break
			}
		}
	}

	modified := exifTime(x, exif.DateTime)
	original := exifTime(x, exif.DateTimeOriginal)
	if !modified.IsZero() && !original.IsZero() && modified.Before(original) {
		res.TimestampInversion = true
		res.Risk += cfg.TimestampOrder
		res.Findings = append(res.Findings, report.Issue{
			Category:    report.CategoryImage,
			Severity:    report.SeverityMedium,
			Description: "EXIF timestamps are inverted: modified before captured",
			Location:    fileName,
			Details: map[string]string{
				"modified": modified.Format(time.RFC3339),
				"captured": original.Format(time.RFC3339),
			},
		})
	}

	maker := exifString(x, exif.Make)
	model := exifString(x, exif.Model)
	res.HasCameraInfo = maker != "" || model != ""
	if !res.HasCameraInfo {
		res.Risk += cfg.MissingCamera
		res.Findings = append(res.Findings, report.Issue{
			Category:    report.CategoryImage,
			Severity:    report.SeverityLow,
			Description: "Missing capture-device fields in EXIF metadata",
			Location:    fileName,
		})
	}

	if res.Risk > 1.0 {
		res.Risk = 1.0
	}
	return res, nil
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func exifTime(x *exif.Exif, name exif.FieldName) time.Time {
	s := exifString(x, name)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(exifTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
