package validate

import (
	"context"

	"github.com/veridoc/veridoc/internal/report"
)

// Input is the text-side view of a document handed to each validator. Image
// buffers never reach this package.
type Input struct {
	Text         string
	FileName     string
	DocumentType string
	PageCount    int
}

// Validator scores one aspect of a document. Implementations are stateless
// and safe for concurrent use across documents.
type Validator interface {
	Name() string
	Validate(ctx context.Context, in Input) (*report.ComponentResult, error)
}

// Registry returns the full validator set in a fixed order.
func Registry() []Validator {
	return []Validator{
		&FormatValidator{},
		&StructureValidator{},
		&ContentValidator{},
	}
}

// severityScore maps issue severity to its base score contribution.
func severityScore(s report.Severity) float64 {
	switch s {
	case report.SeverityCritical:
		return 100
	case report.SeverityHigh:
		return 60
	case report.SeverityMedium:
		return 30
	default:
		return 10
	}
}

func capScore(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
